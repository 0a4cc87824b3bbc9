package redis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
)

func newTestStore(t *testing.T) (*PendingLoginStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	cache, err := NewCache(context.Background(), Config{URL: "redis://" + mr.Addr() + "/0"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return NewPendingLoginStore(cache), mr
}

func TestPendingLoginStore_SaveGetDelete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	created := time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)

	err := store.Save(ctx, session.PendingLogin{
		Phone:         "+79990001122",
		PhoneCodeHash: "hash",
		Session:       []byte(`{"Version":1}`),
		CreatedAt:     created,
	}, 5*time.Minute)
	require.NoError(t, err)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], PrefixPendingLogin))
	assert.NotContains(t, keys[0], "79990001122")
	assert.Equal(t, 5*time.Minute, mr.TTL(keys[0]))

	got, err := store.Get(ctx, "+79990001122")
	require.NoError(t, err)
	assert.Equal(t, "hash", got.PhoneCodeHash)
	assert.Equal(t, []byte(`{"Version":1}`), got.Session)
	assert.True(t, created.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, "+79990001122"))
	_, err = store.Get(ctx, "+79990001122")
	assert.ErrorIs(t, err, session.ErrPendingLoginNotFound)
}

func TestPendingLoginStore_Expires(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+1", PhoneCodeHash: "h"}, time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "+1")
	assert.ErrorIs(t, err, session.ErrPendingLoginNotFound)
}

func TestPendingLoginStore_DefaultTTLAndMissingDelete(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+2"}, 0))
	assert.Equal(t, session.DefaultPendingTTL, mr.TTL(pendingKey("+2")))

	assert.NoError(t, store.Delete(ctx, "+never-saved"))
}

func TestPendingKey_Stable(t *testing.T) {
	assert.Equal(t, pendingKey("+79990001122"), pendingKey(" +79990001122 "))
	assert.NotEqual(t, pendingKey("+79990001122"), pendingKey("+79990001123"))
	assert.Len(t, pendingKey("x"), len(PrefixPendingLogin)+64)
}
