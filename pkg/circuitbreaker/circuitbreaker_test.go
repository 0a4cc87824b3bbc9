package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int, transitions *[]string) (*Breaker, *clock) {
	c := &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := New(Settings{
		Name:             "mentors",
		FailureThreshold: threshold,
		CoolDown:         time.Minute,
		OnChange: func(_ string, from, to State) {
			*transitions = append(*transitions, from.String()+"->"+to.String())
		},
	})
	b.now = c.now
	return b, c
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	var transitions []string
	b, _ := newTestBreaker(2, &transitions)
	boom := errors.New("boom")
	ctx := context.Background()

	assert.ErrorIs(t, b.Execute(ctx, func(context.Context) error { return boom }), boom)
	assert.Equal(t, StateClosed, b.State())
	assert.ErrorIs(t, b.Execute(ctx, func(context.Context) error { return boom }), boom)
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
	assert.Equal(t, []string{"closed->open"}, transitions)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	var transitions []string
	b, _ := newTestBreaker(2, &transitions)

	require.NoError(t, b.Allow())
	b.Record(errors.New("x"))
	require.NoError(t, b.Allow())
	b.Record(nil)
	require.NoError(t, b.Allow())
	b.Record(errors.New("x"))

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	var transitions []string
	b, c := newTestBreaker(1, &transitions)

	require.NoError(t, b.Allow())
	b.Record(errors.New("down"))
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	c.advance(time.Minute)
	require.NoError(t, b.Allow(), "cool-down elapsed, probe admitted")
	assert.ErrorIs(t, b.Allow(), ErrOpen, "only one probe at a time")

	b.Record(errors.New("still down"))
	assert.Equal(t, StateOpen, b.State())

	c.advance(time.Minute)
	require.NoError(t, b.Allow())
	b.Record(nil)

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_IgnoresUncountedErrors(t *testing.T) {
	notFound := errors.New("404")
	b := New(Settings{FailureThreshold: 1, Counts: func(err error) bool { return !errors.Is(err, notFound) }})

	require.NoError(t, b.Allow())
	b.Record(notFound)

	assert.Equal(t, StateClosed, b.State())
}
