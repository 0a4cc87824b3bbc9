// Package mentoring contains the read-only projections of the mentoring
// backend: orders, students, notes and weekly plans. Values are fetched
// fresh per request and never cached.
package mentoring

import (
	"strings"
)

// Note markers used as out-of-band triggers inside student notes.
const (
	// MarkerPlanComment prefixes a comment attached to the next weekly plan.
	MarkerPlanComment = "$:"

	// MarkerLeaveComment prefixes the reason for an academic leave.
	MarkerLeaveComment = "ac:"
)

// ══════════════════════════════════════════════════════════════════════════════
// ORDER
// ══════════════════════════════════════════════════════════════════════════════

// Order links a student to a mentor engagement.
type Order struct {
	ID     string
	Active bool

	// Student may be nil when the backend omitted it.
	Student *Student

	// Plan is nil when no weekly plan is attached.
	Plan *PlanRef
}

// HasPlan reports whether a weekly plan is attached to the order.
func (o Order) HasPlan() bool {
	return o.Plan != nil && o.Plan.ID != ""
}

// Deliverable reports whether the order takes part in batch plan delivery.
func (o Order) Deliverable() bool {
	return o.Active && o.HasPlan()
}

// PlanRef is the reference to a weekly plan embedded in an order.
type PlanRef struct {
	ID string
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student is the mentored person behind an order.
type Student struct {
	ID      string
	Profile Profile

	// Notes keep the order in which the backend returned them.
	Notes []Note
}

// Profile holds the handles used to reach the student.
type Profile struct {
	TelegramHandle string
	DvmnUsername   string
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTE
// ══════════════════════════════════════════════════════════════════════════════

// Note is a free-text annotation on a student record.
type Note struct {
	ID      string
	Content string
	Hidden  bool
}

// IsActionable reports whether the note is visible and carries the marker.
func (n Note) IsActionable(marker string) bool {
	return !n.Hidden && marker != "" && strings.Contains(n.Content, marker)
}

// StripMarker removes everything up to and including the first marker
// occurrence, plus a single space right after it.
func (n Note) StripMarker(marker string) string {
	idx := strings.Index(n.Content, marker)
	if idx < 0 {
		return n.Content
	}
	rest := n.Content[idx+len(marker):]
	return strings.TrimPrefix(rest, " ")
}

// FirstActionable returns the first actionable note in collection order.
func FirstActionable(notes []Note, marker string) (Note, bool) {
	for _, n := range notes {
		if n.IsActionable(marker) {
			return n, true
		}
	}
	return Note{}, false
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY PLAN
// ══════════════════════════════════════════════════════════════════════════════

// WeeklyPlan is a study assignment delivered to a student.
type WeeklyPlan struct {
	ID string

	// Gist references the plan content. It doubles as the delivery dedup key.
	Gist string

	Status string
}
