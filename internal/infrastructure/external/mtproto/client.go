// Package mtproto runs per-request Telegram user sessions over MTProto and
// exposes them as a delivery.Messenger and a login gateway.
package mtproto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/tgerr"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

const errDomain = "delivery"

// ErrSessionRequired is returned when no string session was supplied.
var ErrSessionRequired = errors.New("mtproto: session is required")

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains the application credentials shared by every session.
type Config struct {
	AppID   int
	AppHash string

	// DeviceModel is shown in the account's active sessions list.
	DeviceModel string

	// RunTimeout bounds a whole session, connect to disconnect.
	RunTimeout time.Duration

	Logger *slog.Logger
}

// Validate checks the credentials.
func (c Config) Validate() error {
	if c.AppID <= 0 || c.AppHash == "" {
		return errors.New("mtproto: app id and app hash are required")
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client dials a fresh connection per call. It holds no session itself.
type Client struct {
	config Config
	logger *slog.Logger
}

// NewClient creates a new client.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DeviceModel == "" {
		config.DeviceModel = "mentor-relay"
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = 5 * time.Minute
	}
	return &Client{
		config: config,
		logger: config.Logger.With("component", "mtproto"),
	}, nil
}

// newTelegram builds a gotd client over storage.
func (c *Client) newTelegram(storage session.Storage) *telegram.Client {
	return telegram.NewClient(c.config.AppID, c.config.AppHash, telegram.Options{
		SessionStorage: storage,
		NoUpdates:      true,
		Device: telegram.DeviceConfig{
			DeviceModel:   c.config.DeviceModel,
			SystemVersion: "linux",
			AppVersion:    "1.0",
		},
	})
}

// WithSession connects with the given Telethon string session and runs fn
// with a messenger bound to that connection. The messenger must not be used
// after fn returns.
func (c *Client) WithSession(ctx context.Context, sess string, fn func(ctx context.Context, m delivery.Messenger) error) error {
	const op = "WithSession"

	sess = strings.TrimSpace(sess)
	if sess == "" {
		return shared.WrapError(errDomain, op, shared.ErrUnauthorized, "session header is missing", ErrSessionRequired)
	}

	data, err := session.TelethonSession(sess)
	if err != nil {
		return shared.WrapError(errDomain, op, shared.ErrUnauthorized, "session is not a valid string session", err)
	}

	storage := &session.StorageMemory{}
	if err := (&session.Loader{Storage: storage}).Save(ctx, data); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RunTimeout)
	defer cancel()

	client := c.newTelegram(storage)

	var fnErr error
	runErr := client.Run(ctx, func(ctx context.Context) error {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return mapRPCError(op, err)
		}
		if !status.Authorized {
			return shared.NewDomainError(errDomain, op, shared.ErrUnauthorized, "session is not authorized")
		}

		fnErr = fn(ctx, newMessenger(client.API(), c.logger))
		return nil
	})

	if fnErr != nil {
		return fnErr
	}
	if runErr != nil {
		var domainErr *shared.DomainError
		if errors.As(runErr, &domainErr) {
			return runErr
		}
		return mapRPCError(op, runErr)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// Peer errors that mean the handle itself is wrong.
var resolutionRPCErrors = []string{
	"USERNAME_INVALID",
	"USERNAME_NOT_OCCUPIED",
	"PEER_ID_INVALID",
}

// Session errors that mean the caller has to log in again.
var unauthorizedRPCErrors = []string{
	"AUTH_KEY_UNREGISTERED",
	"AUTH_KEY_INVALID",
	"SESSION_REVOKED",
	"SESSION_EXPIRED",
	"USER_DEACTIVATED",
}

func mapRPCError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case tgerr.Is(err, resolutionRPCErrors...):
		return shared.NewResolutionError(errDomain, op, "telegram handle does not resolve", err)
	case tgerr.Is(err, unauthorizedRPCErrors...), tgerr.IsCode(err, 401):
		return shared.WrapError(errDomain, op, shared.ErrUnauthorized, "telegram session rejected", err)
	default:
		return shared.NewTransportError(errDomain, op, "telegram request failed", err)
	}
}
