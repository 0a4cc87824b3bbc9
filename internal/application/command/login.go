package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM LOGIN COMMANDS
// Two-step phone login that yields the string session used by plan delivery.
// The half-finished login lives in a PendingStore with a TTL between steps.
// ══════════════════════════════════════════════════════════════════════════════

// SentCode is what the gateway returns after asking Telegram for a code.
type SentCode struct {
	PhoneCodeHash string

	// Session is the serialized, not yet authorized MTProto session.
	Session []byte
}

// LoginGateway performs the Telegram side of a phone login.
type LoginGateway interface {
	// SendCode opens a fresh session and requests a login code for phone.
	SendCode(ctx context.Context, phone string) (*SentCode, error)

	// SignIn completes the login on the given session and returns the
	// resulting string session. password is used only when Telegram asks for it.
	SignIn(ctx context.Context, sess []byte, phone, code, phoneCodeHash, password string) (string, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Request code
// ─────────────────────────────────────────────────────────────────────────────

// RequestCodeCommand starts a login.
type RequestCodeCommand struct {
	Phone string
}

// Validate validates the command.
func (c RequestCodeCommand) Validate() error {
	if strings.TrimSpace(c.Phone) == "" {
		return shared.NewDomainError("session", "RequestCode", shared.ErrInvalidInput, "phone_number is required")
	}
	return nil
}

// RequestCodeResult contains the hash the caller must echo back.
type RequestCodeResult struct {
	PhoneCodeHash string    `json:"phone_code_hash"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// RequestCodeHandler handles the RequestCodeCommand.
type RequestCodeHandler struct {
	gateway LoginGateway
	store   session.PendingStore
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
}

// NewRequestCodeHandler creates a new RequestCodeHandler.
func NewRequestCodeHandler(gateway LoginGateway, store session.PendingStore, ttl time.Duration, logger *slog.Logger) *RequestCodeHandler {
	if ttl <= 0 {
		ttl = session.DefaultPendingTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RequestCodeHandler{
		gateway: gateway,
		store:   store,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle requests a code and parks the pending login.
func (h *RequestCodeHandler) Handle(ctx context.Context, cmd RequestCodeCommand) (*RequestCodeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	sent, err := h.gateway.SendCode(ctx, cmd.Phone)
	if err != nil {
		return nil, ensureTaxonomy("session", "SendCode", "failed to request login code", err)
	}

	now := h.now().UTC()
	pending := session.PendingLogin{
		Phone:         cmd.Phone,
		PhoneCodeHash: sent.PhoneCodeHash,
		Session:       sent.Session,
		CreatedAt:     now,
	}
	if err := h.store.Save(ctx, pending, h.ttl); err != nil {
		return nil, fmt.Errorf("save pending login: %w", err)
	}

	h.logger.Info("login code requested", "ttl", h.ttl.String())

	return &RequestCodeResult{
		PhoneCodeHash: sent.PhoneCodeHash,
		ExpiresAt:     now.Add(h.ttl),
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Complete login
// ─────────────────────────────────────────────────────────────────────────────

// CompleteLoginCommand finishes a login with the received code.
type CompleteLoginCommand struct {
	Phone         string
	Code          string
	PhoneCodeHash string
	Password      string
}

// Validate validates the command.
func (c CompleteLoginCommand) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Phone) == "" {
		missing = append(missing, "phone_number")
	}
	if strings.TrimSpace(c.Code) == "" {
		missing = append(missing, "verification_code")
	}
	if strings.TrimSpace(c.PhoneCodeHash) == "" {
		missing = append(missing, "phone_code_hash")
	}
	if len(missing) > 0 {
		return shared.NewDomainError("session", "CompleteLogin", shared.ErrInvalidInput,
			strings.Join(missing, ", ")+" required")
	}
	return nil
}

// CompleteLoginResult carries the authorized string session.
type CompleteLoginResult struct {
	Session string `json:"tg_session"`
}

// CompleteLoginHandler handles the CompleteLoginCommand.
type CompleteLoginHandler struct {
	gateway LoginGateway
	store   session.PendingStore
	logger  *slog.Logger
}

// NewCompleteLoginHandler creates a new CompleteLoginHandler.
func NewCompleteLoginHandler(gateway LoginGateway, store session.PendingStore, logger *slog.Logger) *CompleteLoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompleteLoginHandler{
		gateway: gateway,
		store:   store,
		logger:  logger,
	}
}

// Handle signs in. The pending login is evicted on success and kept on
// failure so the user can retry until it expires.
func (h *CompleteLoginHandler) Handle(ctx context.Context, cmd CompleteLoginCommand) (*CompleteLoginResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	pending, err := h.store.Get(ctx, cmd.Phone)
	if err != nil {
		if errors.Is(err, session.ErrPendingLoginNotFound) {
			return nil, shared.WrapError("session", "CompleteLogin", shared.ErrNotFound,
				"no login in progress for this phone number", err)
		}
		return nil, fmt.Errorf("load pending login: %w", err)
	}

	if pending.PhoneCodeHash != cmd.PhoneCodeHash {
		return nil, shared.NewDomainError("session", "CompleteLogin", shared.ErrInvalidInput,
			"phone_code_hash does not match the pending login")
	}

	str, err := h.gateway.SignIn(ctx, pending.Session, cmd.Phone, cmd.Code, cmd.PhoneCodeHash, cmd.Password)
	if err != nil {
		if errors.Is(err, session.ErrPasswordRequired) {
			return nil, shared.WrapError("session", "CompleteLogin", shared.ErrUnauthorized,
				"two-factor password required", err)
		}
		if shared.IsValidationError(err) || shared.IsUnauthorized(err) {
			return nil, err
		}
		return nil, ensureTaxonomy("session", "SignIn", "failed to sign in", err)
	}

	if err := h.store.Delete(ctx, cmd.Phone); err != nil {
		h.logger.Warn("failed to evict pending login", "error", err)
	}

	h.logger.Info("telegram login completed")

	return &CompleteLoginResult{Session: str}, nil
}
