package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
)

// PendingLoginStore implements session.PendingStore on Redis. Phone numbers
// never appear in key names.
type PendingLoginStore struct {
	cache *Cache
}

var _ session.PendingStore = (*PendingLoginStore)(nil)

// NewPendingLoginStore creates a new store.
func NewPendingLoginStore(cache *Cache) *PendingLoginStore {
	return &PendingLoginStore{cache: cache}
}

// pendingKey is the prefix plus hex blake2b-256 of the normalized phone.
func pendingKey(phone string) string {
	sum := blake2b.Sum256([]byte(strings.TrimSpace(phone)))
	return PrefixPendingLogin + hex.EncodeToString(sum[:])
}

// Save stores p for ttl, replacing an older entry.
func (s *PendingLoginStore) Save(ctx context.Context, p session.PendingLogin, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = session.DefaultPendingTTL
	}
	if err := s.cache.Set(ctx, pendingKey(p.Phone), p, ttl); err != nil {
		return fmt.Errorf("save pending login: %w", err)
	}
	return nil
}

// Get returns the pending login or session.ErrPendingLoginNotFound.
func (s *PendingLoginStore) Get(ctx context.Context, phone string) (*session.PendingLogin, error) {
	var p session.PendingLogin
	if err := s.cache.Get(ctx, pendingKey(phone), &p); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, session.ErrPendingLoginNotFound
		}
		return nil, fmt.Errorf("get pending login: %w", err)
	}
	return &p, nil
}

// Delete evicts the entry.
func (s *PendingLoginStore) Delete(ctx context.Context, phone string) error {
	if err := s.cache.Delete(ctx, pendingKey(phone)); err != nil {
		return fmt.Errorf("delete pending login: %w", err)
	}
	return nil
}
