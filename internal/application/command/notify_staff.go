package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
	"github.com/dvmn-mentors/mentor-relay/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STAFF NOTICES
// Academic leave and internship requests posted to the staff chats.
// ══════════════════════════════════════════════════════════════════════════════

// LeaveDateLayout is how leave dates appear in the staff chat.
const LeaveDateLayout = "02 01 2006 г."

// StaffNotifier posts text to a staff chat.
type StaffNotifier interface {
	NotifyStaff(ctx context.Context, chatID int64, text string) error
}

// StaffChats identifies the chats that receive staff notices.
type StaffChats struct {
	// Mentors receives academic leave notices.
	Mentors int64

	// Head receives internship requests.
	Head int64
}

// StaffNoticeResult describes a posted notice.
type StaffNoticeResult struct {
	OrderID string `json:"order_id"`
	ChatID  int64  `json:"chat_id"`
	Text    string `json:"text"`
}

// resolveProfile returns the student profile of an order or a resolution error.
func resolveProfile(order *mentoring.Order) (mentoring.Profile, error) {
	if order == nil || order.Student == nil {
		return mentoring.Profile{}, shared.NewResolutionError("mentoring", "ResolveOrder", "order has no student", nil)
	}
	p := order.Student.Profile
	if p.DvmnUsername == "" && p.TelegramHandle == "" {
		return mentoring.Profile{}, shared.NewResolutionError("mentoring", "ResolveOrder",
			fmt.Sprintf("student of order %s has an empty profile", order.ID), nil)
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Academic leave
// ─────────────────────────────────────────────────────────────────────────────

// AcademicLeaveCommand announces that a student goes on academic leave.
type AcademicLeaveCommand struct {
	OrderID string
	From    time.Time
	To      time.Time

	// Reason is optional. When empty, the first "ac:" note is used.
	Reason string
}

// Validate validates the command.
func (c AcademicLeaveCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return shared.NewDomainError("staff", "AcademicLeave", shared.ErrInvalidInput, "order_id is required")
	}
	if c.From.IsZero() || c.To.IsZero() {
		return shared.NewDomainError("staff", "AcademicLeave", shared.ErrInvalidInput, "date_from and date_to are required")
	}
	if c.To.Before(c.From) {
		return shared.NewDomainError("staff", "AcademicLeave", shared.ErrInvalidInput, "date_to is before date_from")
	}
	return nil
}

// AcademicLeaveHandler handles the AcademicLeaveCommand.
type AcademicLeaveHandler struct {
	backend   mentoring.Backend
	notifier  StaffNotifier
	extractor *NoteExtractor
	chatID    int64
	logger    *slog.Logger
}

// NewAcademicLeaveHandler creates a new AcademicLeaveHandler.
func NewAcademicLeaveHandler(backend mentoring.Backend, notifier StaffNotifier, chats StaffChats, logger *slog.Logger) *AcademicLeaveHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AcademicLeaveHandler{
		backend:   backend,
		notifier:  notifier,
		extractor: NewNoteExtractor(backend, logger),
		chatID:    chats.Mentors,
		logger:    logger,
	}
}

// Handle posts the leave notice to the mentors chat.
func (h *AcademicLeaveHandler) Handle(ctx context.Context, cmd AcademicLeaveCommand) (*StaffNoticeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.backend.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, ensureTaxonomy("mentoring", "GetOrder", "failed to fetch order", err)
	}
	profile, err := resolveProfile(order)
	if err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	if reason == "" {
		extraction, err := h.extractor.Extract(ctx, order.Student.Notes, mentoring.MarkerLeaveComment)
		if err != nil {
			return nil, fmt.Errorf("extract leave reason: %w", err)
		}
		if extraction != nil {
			reason = extraction.Text
		}
	}

	text := FormatAcademicLeave(profile, cmd.From, cmd.To, reason)
	if err := h.notifier.NotifyStaff(ctx, h.chatID, text); err != nil {
		return nil, ensureTaxonomy("staff", "NotifyStaff", "failed to post academic leave", err)
	}

	h.logger.Info("academic leave posted", "order_id", cmd.OrderID, "chat_id", h.chatID)

	return &StaffNoticeResult{OrderID: cmd.OrderID, ChatID: h.chatID, Text: text}, nil
}

// FormatAcademicLeave renders the academic leave notice. Dates are printed
// as the calendar days they carry, without zone conversion.
func FormatAcademicLeave(p mentoring.Profile, from, to time.Time, reason string) string {
	var b strings.Builder
	b.WriteString("#академ\n\n")
	fmt.Fprintf(&b, "Dvmn: %s, tg: %s\n", p.DvmnUsername, p.TelegramHandle)
	fmt.Fprintf(&b, "%s - %s\n",
		timeutil.FormatDate(from, LeaveDateLayout, timeutil.MoscowTZ),
		timeutil.FormatDate(to, LeaveDateLayout, timeutil.MoscowTZ))
	if reason != "" {
		b.WriteString(reason)
		b.WriteString("\n")
	}
	return b.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Internship
// ─────────────────────────────────────────────────────────────────────────────

// InternshipCommand queues a student for an internship.
type InternshipCommand struct {
	OrderID string
}

// Validate validates the command.
func (c InternshipCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return shared.NewDomainError("staff", "Internship", shared.ErrInvalidInput, "order_id is required")
	}
	return nil
}

// InternshipHandler handles the InternshipCommand.
type InternshipHandler struct {
	backend  mentoring.Backend
	notifier StaffNotifier
	chatID   int64
	logger   *slog.Logger
}

// NewInternshipHandler creates a new InternshipHandler.
func NewInternshipHandler(backend mentoring.Backend, notifier StaffNotifier, chats StaffChats, logger *slog.Logger) *InternshipHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternshipHandler{
		backend:  backend,
		notifier: notifier,
		chatID:   chats.Head,
		logger:   logger,
	}
}

// Handle posts the internship request to the head chat.
func (h *InternshipHandler) Handle(ctx context.Context, cmd InternshipCommand) (*StaffNoticeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	order, err := h.backend.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return nil, ensureTaxonomy("mentoring", "GetOrder", "failed to fetch order", err)
	}
	profile, err := resolveProfile(order)
	if err != nil {
		return nil, err
	}

	text := FormatInternship(profile)
	if err := h.notifier.NotifyStaff(ctx, h.chatID, text); err != nil {
		return nil, ensureTaxonomy("staff", "NotifyStaff", "failed to post internship request", err)
	}

	h.logger.Info("internship request posted", "order_id", cmd.OrderID, "chat_id", h.chatID)

	return &StaffNoticeResult{OrderID: cmd.OrderID, ChatID: h.chatID, Text: text}, nil
}

// FormatInternship renders the internship request.
func FormatInternship(p mentoring.Profile) string {
	return "#стажировка\n\n" +
		"Добавь, плз, этого ученика в очередь на стажировку\n" +
		fmt.Sprintf("Dvmn: %s, tg: %s\n", p.DvmnUsername, p.TelegramHandle)
}
