package mentoring

import "context"

// Backend defines the operations consumed from the mentoring backend.
type Backend interface {
	// GetOrder fetches an order with its student, notes and plan reference.
	GetOrder(ctx context.Context, orderID string) (*Order, error)

	// GetWeeklyPlan fetches a weekly plan by ID.
	GetWeeklyPlan(ctx context.Context, planID string) (*WeeklyPlan, error)

	// GetMentorOrders fetches every order of a mentor in backend order.
	GetMentorOrders(ctx context.Context, mentorID string) ([]Order, error)

	// HideNote marks a note hidden. Hiding an already hidden note is a no-op.
	HideNote(ctx context.Context, noteID string) error
}

// NoteHider is the write side of Backend used by note extraction.
type NoteHider interface {
	HideNote(ctx context.Context, noteID string) error
}
