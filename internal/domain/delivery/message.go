// Package delivery describes outbound plan messages, their delivery outcomes
// and the messaging channel they travel through.
package delivery

import (
	"strings"
	"time"
)

// Template placeholders.
const (
	PlaceholderGist    = "{gist}"
	PlaceholderComment = "{comment}"
)

// DefaultPlanTemplate is the weekly plan greeting sent when the caller gives none.
const DefaultPlanTemplate = "#ЕженедельныйПлан\n\n" +
	"Приветосий :)\n" +
	"Держи планчик на новую неделю:\n" +
	PlaceholderGist + "\n\n"

// commentSeparator precedes a comment appended to templates without {comment}.
const commentSeparator = "-----\n\n"

// OutboundMessage is a rendered message ready for sending.
type OutboundMessage struct {
	Handle string
	Text   string

	// Gist is the value the text was rendered with and the dedup key.
	Gist string
}

// Message is a message already present in the channel history.
type Message struct {
	ID     int
	Text   string
	SentAt time.Time
}

// Render substitutes gist and comment into template. Unknown placeholders
// stay verbatim. A comment given to a template without {comment} is
// appended after a separator.
func Render(template, gist, comment string) string {
	if template == "" {
		template = DefaultPlanTemplate
	}

	text := strings.NewReplacer(
		PlaceholderGist, gist,
		PlaceholderComment, comment,
	).Replace(template)

	if comment != "" && !strings.Contains(template, PlaceholderComment) {
		text += commentSeparator + comment + "\n"
	}

	return text
}

// ══════════════════════════════════════════════════════════════════════════════
// OUTCOMES
// ══════════════════════════════════════════════════════════════════════════════

// Outcome is the result of one plan delivery attempt.
type Outcome string

const (
	OutcomeSent       Outcome = "SENT"
	OutcomeDuplicate  Outcome = "DUPLICATE"
	OutcomeSendFailed Outcome = "SEND_FAILED"
)

// Status is the coarse tag reported per order in batch runs.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Status maps an outcome to its batch tag.
func (o Outcome) Status() Status {
	switch o {
	case OutcomeSent:
		return StatusOK
	case OutcomeDuplicate:
		return StatusWarning
	default:
		return StatusError
	}
}
