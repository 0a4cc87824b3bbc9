package mtproto

import (
	"context"
	"errors"
	"fmt"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
	domainsession "github.com/dvmn-mentors/mentor-relay/internal/domain/session"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// Gateway implements command.LoginGateway over MTProto.
type Gateway struct {
	client *Client
}

var _ command.LoginGateway = (*Gateway)(nil)

// NewGateway creates a login gateway sharing the client's credentials.
func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

// SendCode performs auth.sendCode on a brand new session and returns the
// serialized session so the sign-in can resume on the same auth key.
func (g *Gateway) SendCode(ctx context.Context, phone string) (*command.SentCode, error) {
	const op = "SendCode"

	storage := &session.StorageMemory{}
	tc := g.client.newTelegram(storage)

	var hash string
	err := tc.Run(ctx, func(ctx context.Context) error {
		sent, err := tc.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
		if err != nil {
			return err
		}
		switch s := any(sent).(type) {
		case *tg.AuthSentCode:
			hash = s.PhoneCodeHash
			return nil
		default:
			return fmt.Errorf("unexpected sent code %T", sent)
		}
	})
	if err != nil {
		if tgerr.Is(err, "PHONE_NUMBER_INVALID", "PHONE_NUMBER_BANNED") {
			return nil, shared.WrapError("session", op, shared.ErrInvalidInput, "phone number rejected by telegram", err)
		}
		return nil, mapRPCError(op, err)
	}

	raw, err := storage.LoadSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("read fresh session: %w", err)
	}

	g.client.logger.Info("login code sent")
	return &command.SentCode{PhoneCodeHash: hash, Session: raw}, nil
}

// SignIn finishes the login on sess and returns the Telethon string session.
func (g *Gateway) SignIn(ctx context.Context, sess []byte, phone, code, phoneCodeHash, password string) (string, error) {
	const op = "SignIn"

	storage := &session.StorageMemory{}
	if len(sess) > 0 {
		if err := storage.StoreSession(ctx, sess); err != nil {
			return "", fmt.Errorf("restore pending session: %w", err)
		}
	}
	tc := g.client.newTelegram(storage)

	err := tc.Run(ctx, func(ctx context.Context) error {
		_, err := tc.Auth().SignIn(ctx, phone, code, phoneCodeHash)
		if errors.Is(err, auth.ErrPasswordAuthNeeded) {
			if password == "" {
				return domainsession.ErrPasswordRequired
			}
			_, err = tc.Auth().Password(ctx, password)
		}
		return err
	})
	switch {
	case err == nil:
	case errors.Is(err, domainsession.ErrPasswordRequired):
		return "", err
	case errors.Is(err, auth.ErrPasswordInvalid):
		return "", shared.WrapError("session", op, shared.ErrUnauthorized, "two-factor password is wrong", err)
	case tgerr.Is(err, "PHONE_CODE_INVALID", "PHONE_CODE_EMPTY", "PHONE_CODE_EXPIRED"):
		return "", shared.WrapError("session", op, shared.ErrInvalidInput, "verification code rejected", err)
	default:
		return "", mapRPCError(op, err)
	}

	data, err := (&session.Loader{Storage: storage}).Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load authorized session: %w", err)
	}
	return EncodeTelethon(data)
}
