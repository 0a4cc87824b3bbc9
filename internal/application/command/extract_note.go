// Package command contains write operations (CQRS - Commands).
// Commands are the only place where the relay changes remote state:
// hiding consumed notes and sending messages.
package command

import (
	"context"
	"log/slog"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTE EXTRACTOR
// Consumes the first visible note carrying a marker. The note is hidden on
// the backend before its text is handed out, so it is never extracted twice.
// ══════════════════════════════════════════════════════════════════════════════

// Extraction is the text taken from a consumed note.
type Extraction struct {
	NoteID string
	Text   string
}

// NoteExtractor finds and consumes marker notes.
type NoteExtractor struct {
	hider  mentoring.NoteHider
	logger *slog.Logger
}

// NewNoteExtractor creates a new NoteExtractor.
func NewNoteExtractor(hider mentoring.NoteHider, logger *slog.Logger) *NoteExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteExtractor{
		hider:  hider,
		logger: logger,
	}
}

// Extract consumes the first actionable note for marker. It returns nil when
// no note matches. A failed hide is returned as an error and nothing is
// extracted.
func (e *NoteExtractor) Extract(ctx context.Context, notes []mentoring.Note, marker string) (*Extraction, error) {
	note, ok := mentoring.FirstActionable(notes, marker)
	if !ok {
		return nil, nil
	}

	if err := e.hider.HideNote(ctx, note.ID); err != nil {
		return nil, ensureTaxonomy("mentoring", "HideNote", "failed to hide consumed note", err)
	}

	e.logger.Debug("note consumed", "note_id", note.ID, "marker", marker)

	return &Extraction{
		NoteID: note.ID,
		Text:   note.StripMarker(marker),
	}, nil
}

// ensureTaxonomy keeps errors that already carry a taxonomy kind and wraps
// anything else as a transport failure.
func ensureTaxonomy(domain, op, message string, err error) error {
	if shared.IsResolution(err) || shared.IsTransport(err) || shared.IsParse(err) {
		return err
	}
	return shared.NewTransportError(domain, op, message, err)
}
