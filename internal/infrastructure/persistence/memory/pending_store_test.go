package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestStore() (*PendingLoginStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 3, 12, 10, 0, 0, 0, time.UTC)}
	store := NewPendingLoginStore()
	store.now = clock.now
	return store, clock
}

func TestPendingLoginStore_Roundtrip(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	raw := []byte("session")

	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+7999", PhoneCodeHash: "h", Session: raw}, time.Minute))
	raw[0] = 'X'

	got, err := store.Get(ctx, " +7999 ")
	require.NoError(t, err)
	assert.Equal(t, "h", got.PhoneCodeHash)
	assert.Equal(t, []byte("session"), got.Session, "stored bytes are copied")

	require.NoError(t, store.Delete(ctx, "+7999"))
	_, err = store.Get(ctx, "+7999")
	assert.ErrorIs(t, err, session.ErrPendingLoginNotFound)
}

func TestPendingLoginStore_LazyExpiry(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+1"}, time.Minute))
	clock.t = clock.t.Add(time.Minute)

	_, err := store.Get(ctx, "+1")
	assert.ErrorIs(t, err, session.ErrPendingLoginNotFound)
	assert.Zero(t, store.Len())
}

func TestPendingLoginStore_Purge(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+1"}, time.Minute))
	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+2"}, time.Hour))
	require.NoError(t, store.Save(ctx, session.PendingLogin{Phone: "+3"}, 0))
	clock.t = clock.t.Add(30 * time.Minute)

	assert.Equal(t, 2, store.Purge())
	assert.Equal(t, 1, store.Len())

	_, err := store.Get(ctx, "+2")
	assert.NoError(t, err)
}
