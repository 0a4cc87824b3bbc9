package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

func TestNoteExtractor_StripsMarker(t *testing.T) {
	backend := newFakeBackend()
	extractor := NewNoteExtractor(backend, discardLogger())

	got, err := extractor.Extract(context.Background(), []mentoring.Note{
		{ID: "n1", Content: "prefix $: the actual comment"},
	}, mentoring.MarkerPlanComment)

	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "the actual comment", got.Text)
	assert.Equal(t, "n1", got.NoteID)
	assert.Equal(t, []string{"n1"}, backend.hiddenNotes)
}

func TestNoteExtractor_NoMatch(t *testing.T) {
	backend := newFakeBackend()
	extractor := NewNoteExtractor(backend, discardLogger())

	got, err := extractor.Extract(context.Background(), []mentoring.Note{
		{ID: "n1", Content: "$: already used", Hidden: true},
		{ID: "n2", Content: "ac: leave reason"},
	}, mentoring.MarkerPlanComment)

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, backend.hiddenNotes)
}

func TestNoteExtractor_SingleShotAcrossRefetch(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder(mentoring.Order{
		ID: "o1",
		Student: &mentoring.Student{Notes: []mentoring.Note{
			{ID: "n1", Content: "note"},
			{ID: "n2", Content: "$: read chapter 3"},
		}},
	})
	extractor := NewNoteExtractor(backend, discardLogger())
	ctx := context.Background()

	order, err := backend.GetOrder(ctx, "o1")
	require.NoError(t, err)
	first, err := extractor.Extract(ctx, order.Student.Notes, mentoring.MarkerPlanComment)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "read chapter 3", first.Text)

	order, err = backend.GetOrder(ctx, "o1")
	require.NoError(t, err)
	second, err := extractor.Extract(ctx, order.Student.Notes, mentoring.MarkerPlanComment)
	require.NoError(t, err)
	assert.Nil(t, second)

	assert.Equal(t, []string{"n2"}, backend.hiddenNotes)
}

func TestNoteExtractor_HideFailureIsSurfaced(t *testing.T) {
	backend := newFakeBackend()
	backend.hideErr = errors.New("connection refused")
	extractor := NewNoteExtractor(backend, discardLogger())

	got, err := extractor.Extract(context.Background(), []mentoring.Note{
		{ID: "n1", Content: "$: comment"},
	}, mentoring.MarkerPlanComment)

	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, shared.IsTransport(err))
	assert.Contains(t, err.Error(), "connection refused")
}
