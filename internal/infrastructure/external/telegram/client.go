// Package telegram posts staff notices through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// DefaultBaseURL is the public Bot API endpoint.
const DefaultBaseURL = "https://api.telegram.org"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig configures the bot client.
type ClientConfig struct {
	Token   string
	BaseURL string
	Timeout time.Duration

	// FloodRetries bounds how many 429 responses carrying retry_after are
	// waited out before the error is returned.
	FloodRetries int
	// MaxFloodWait is the longest retry_after the client agrees to sleep.
	MaxFloodWait time.Duration

	Logger *slog.Logger
}

// DefaultClientConfig returns the production settings for token.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:        token,
		BaseURL:      DefaultBaseURL,
		Timeout:      15 * time.Second,
		FloodRetries: 2,
		MaxFloodWait: 30 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Message is the subset of a Bot API message the relay reads back.
type Message struct {
	MessageID int64 `json:"message_id"`
	Date      int64 `json:"date"`
	Chat      *struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	} `json:"chat,omitempty"`
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	DisableNotification   bool   `json:"disable_notification,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// envelope wraps every Bot API reply.
type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client calls the Bot API over plain HTTPS.
type Client struct {
	endpoint     string
	http         *http.Client
	floodRetries int
	maxFloodWait time.Duration
	log          *slog.Logger
}

// NewClient fills unset fields of config with defaults and builds a client.
func NewClient(config ClientConfig) *Client {
	defaults := DefaultClientConfig(config.Token)
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.MaxFloodWait <= 0 {
		config.MaxFloodWait = defaults.MaxFloodWait
	}
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		endpoint:     strings.TrimRight(config.BaseURL, "/") + "/bot" + config.Token + "/",
		http:         &http.Client{Timeout: config.Timeout},
		floodRetries: config.FloodRetries,
		maxFloodWait: config.MaxFloodWait,
		log:          log.With("component", "telegram_bot"),
	}
}

// SendMessageParams describes a plain text message.
type SendMessageParams struct {
	ChatID              int64
	Text                string
	DisableNotification bool
	DisableWebPreview   bool
}

// SendMessage posts a plain text message.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) (*Message, error) {
	req := sendMessageRequest{
		ChatID:                params.ChatID,
		Text:                  params.Text,
		DisableNotification:   params.DisableNotification,
		DisableWebPagePreview: params.DisableWebPreview,
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", req, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// NotifyStaff posts text to a staff chat without link previews.
func (c *Client) NotifyStaff(ctx context.Context, chatID int64, text string) error {
	msg, err := c.SendMessage(ctx, SendMessageParams{ChatID: chatID, Text: text, DisableWebPreview: true})
	if err == nil {
		c.log.Info("staff notice posted", "chat_id", chatID, "message_id", msg.MessageID)
		return nil
	}

	reason := "notice not delivered"
	if IsChatNotFound(err) {
		reason = "staff chat not found"
	} else if IsBotBlocked(err) {
		reason = "bot has no access to staff chat"
	}
	return shared.NewTransportError("notification", "NotifyStaff", reason, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Transport
// ─────────────────────────────────────────────────────────────────────────────

// call runs method and waits out flood-wait rejections. Nothing else is retried.
func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}

	for attempt := 1; ; attempt++ {
		err := c.once(ctx, method, body, out)
		wait, ok := c.floodWait(err, attempt)
		if !ok {
			return err
		}

		c.log.Warn("flood wait", "method", method, "wait", wait.String(), "attempt", attempt)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(wait):
		}
	}
}

// floodWait reports how long to sleep before attempt+1, if at all.
func (c *Client) floodWait(err error, attempt int) (time.Duration, bool) {
	botErr, ok := asAPIError(err)
	if !ok || !botErr.IsFloodWait() || attempt > c.floodRetries {
		return 0, false
	}
	wait := time.Duration(botErr.RetryAfter) * time.Second
	return wait, wait <= c.maxFloodWait
}

func (c *Client) once(ctx context.Context, method string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error embeds the URL and with it the token.
		return fmt.Errorf("%s: %w", method, errors.Unwrap(err))
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s reply (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if !env.OK {
		return &APIError{Code: env.ErrorCode, Description: env.Description, RetryAfter: env.Parameters.RetryAfter}
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a rejection reported by the Bot API.
type APIError struct {
	Code        int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bot api %d: %s", e.Code, e.Description)
}

// IsFloodWait reports a 429 that says how long to back off.
func (e *APIError) IsFloodWait() bool {
	return e.Code == http.StatusTooManyRequests && e.RetryAfter > 0
}

func asAPIError(err error) (*APIError, bool) {
	var botErr *APIError
	ok := errors.As(err, &botErr)
	return botErr, ok
}

// IsChatNotFound reports a 400 about an unknown chat.
func IsChatNotFound(err error) bool {
	botErr, ok := asAPIError(err)
	return ok && botErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(botErr.Description), "chat not found")
}

// IsBotBlocked reports that the bot was removed from or blocked by the chat.
func IsBotBlocked(err error) bool {
	botErr, ok := asAPIError(err)
	return ok && botErr.Code == http.StatusForbidden
}
