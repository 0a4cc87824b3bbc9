// Package session models the short-lived state of a Telegram phone login.
package session

import (
	"context"
	"errors"
	"time"
)

// DefaultPendingTTL bounds how long a sent login code stays redeemable.
const DefaultPendingTTL = 10 * time.Minute

// ErrPendingLoginNotFound is returned when no login is pending for a phone,
// either because none was started or because it expired.
var ErrPendingLoginNotFound = errors.New("session: no pending login for phone")

// ErrPasswordRequired is returned when the account has two-factor
// authentication enabled and no password was supplied.
var ErrPasswordRequired = errors.New("session: two-factor password required")

// PendingLogin is a login waiting for the user to enter the received code.
type PendingLogin struct {
	Phone         string    `json:"phone"`
	PhoneCodeHash string    `json:"phone_code_hash"`
	Session       []byte    `json:"session"`
	CreatedAt     time.Time `json:"created_at"`
}

// PendingStore keeps pending logins keyed by phone number with a TTL.
type PendingStore interface {
	// Save stores p under p.Phone, replacing an older entry.
	Save(ctx context.Context, p PendingLogin, ttl time.Duration) error

	// Get returns the pending login or ErrPendingLoginNotFound.
	Get(ctx context.Context, phone string) (*PendingLogin, error)

	// Delete evicts the entry. Deleting a missing entry is not an error.
	Delete(ctx context.Context, phone string) error
}
