// Package memory provides in-process stores for single instance deployments
// and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
)

type pendingEntry struct {
	login     session.PendingLogin
	expiresAt time.Time
}

// PendingLoginStore implements session.PendingStore in memory. Expired
// entries are dropped lazily on access and by Purge.
type PendingLoginStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
	now     func() time.Time
}

var _ session.PendingStore = (*PendingLoginStore)(nil)

// NewPendingLoginStore creates an empty store.
func NewPendingLoginStore() *PendingLoginStore {
	return &PendingLoginStore{
		entries: make(map[string]pendingEntry),
		now:     time.Now,
	}
}

func normalizePhone(phone string) string {
	return strings.TrimSpace(phone)
}

// Save stores p for ttl, replacing an older entry.
func (s *PendingLoginStore) Save(_ context.Context, p session.PendingLogin, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = session.DefaultPendingTTL
	}

	stored := p
	stored.Session = append([]byte(nil), p.Session...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[normalizePhone(p.Phone)] = pendingEntry{login: stored, expiresAt: s.now().Add(ttl)}
	return nil
}

// Get returns a copy of the pending login or session.ErrPendingLoginNotFound.
func (s *PendingLoginStore) Get(_ context.Context, phone string) (*session.PendingLogin, error) {
	key := normalizePhone(phone)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, session.ErrPendingLoginNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.entries, key)
		return nil, session.ErrPendingLoginNotFound
	}

	login := entry.login
	login.Session = append([]byte(nil), entry.login.Session...)
	return &login, nil
}

// Delete evicts the entry.
func (s *PendingLoginStore) Delete(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, normalizePhone(phone))
	return nil
}

// Purge drops every expired entry and returns how many were removed.
func (s *PendingLoginStore) Purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (s *PendingLoginStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
