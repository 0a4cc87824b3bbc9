// Package query contains read operations (CQRS - Queries).
// Queries never change backend state.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/attendance"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET STUDY DAYS QUERY
// Counts the days a student studied within the recent window, based on the
// DVMN history timeline.
// ══════════════════════════════════════════════════════════════════════════════

// GetStudyDaysQuery represents a request for a student's recent study days.
type GetStudyDaysQuery struct {
	// OrderID is the order whose student is inspected.
	OrderID string

	// WindowDays is the look-back window. Zero means the handler default.
	WindowDays int
}

// Validate validates the query.
func (q GetStudyDaysQuery) Validate() error {
	if strings.TrimSpace(q.OrderID) == "" {
		return shared.NewDomainError("attendance", "GetStudyDays", shared.ErrInvalidInput, "order_id is required")
	}
	if q.WindowDays < 0 {
		return shared.NewDomainError("attendance", "GetStudyDays", shared.ErrInvalidInput, "window must not be negative")
	}
	return nil
}

// GetStudyDaysResult contains the count.
type GetStudyDaysResult struct {
	OrderID    string `json:"order_id"`
	Username   string `json:"username"`
	WindowDays int    `json:"window_days"`
	StudyDays  int    `json:"study_days"`
}

// OrderGetter fetches a single order.
type OrderGetter interface {
	GetOrder(ctx context.Context, orderID string) (*mentoring.Order, error)
}

// GetStudyDaysHandler handles GetStudyDaysQuery.
type GetStudyDaysHandler struct {
	orders OrderGetter
	source attendance.TimelineSource
	format attendance.DateFormat
	window int
	now    func() time.Time
}

// NewGetStudyDaysHandler creates a new GetStudyDaysHandler.
func NewGetStudyDaysHandler(orders OrderGetter, source attendance.TimelineSource, format attendance.DateFormat) *GetStudyDaysHandler {
	return &GetStudyDaysHandler{
		orders: orders,
		source: source,
		format: format,
		window: attendance.DefaultWindowDays,
		now:    time.Now,
	}
}

// WithDefaultWindow sets the window used when a query gives none.
func (h *GetStudyDaysHandler) WithDefaultWindow(days int) *GetStudyDaysHandler {
	if days > 0 {
		h.window = days
	}
	return h
}

// Handle executes the query.
func (h *GetStudyDaysHandler) Handle(ctx context.Context, q GetStudyDaysQuery) (*GetStudyDaysResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	window := q.WindowDays
	if window == 0 {
		window = h.window
	}

	order, err := h.orders.GetOrder(ctx, q.OrderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil || order.Student == nil || order.Student.Profile.DvmnUsername == "" {
		return nil, shared.NewResolutionError("mentoring", "ResolveOrder",
			fmt.Sprintf("order %s has no dvmn username", q.OrderID), nil)
	}
	username := order.Student.Profile.DvmnUsername

	lines, err := h.source.FetchTimeline(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch timeline: %w", err)
	}

	days, err := attendance.CountRecentStudyDays(lines, window, h.now(), h.format)
	if err != nil {
		return nil, fmt.Errorf("count study days for %s: %w", username, err)
	}

	return &GetStudyDaysResult{
		OrderID:    q.OrderID,
		Username:   username,
		WindowDays: window,
		StudyDays:  days,
	}, nil
}
