package delivery

import "context"

// Messenger is the messaging channel used for per-student delivery.
type Messenger interface {
	// FindLatest returns the most recent message exchanged with handle whose
	// text contains text, or nil when there is none.
	FindLatest(ctx context.Context, handle, text string) (*Message, error)

	// Send delivers msg with link previews suppressed.
	Send(ctx context.Context, msg OutboundMessage) error
}
