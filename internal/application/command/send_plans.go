package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND PLANS COMMAND
// Delivers weekly plans to every active order of a mentor. Item failures are
// recorded in that item's outcome and never stop the batch.
// ══════════════════════════════════════════════════════════════════════════════

// SendPlansCommand contains the data needed for a batch delivery.
type SendPlansCommand struct {
	MentorID string
	Template string
}

// Validate validates the command.
func (c SendPlansCommand) Validate() error {
	if strings.TrimSpace(c.MentorID) == "" {
		return shared.NewDomainError("delivery", "SendPlans", shared.ErrInvalidInput, "mentor_id is required")
	}
	return nil
}

// OrderOutcome is the per-order record of a batch run.
type OrderOutcome struct {
	OrderID string           `json:"order_id"`
	Status  delivery.Status  `json:"status"`
	Outcome delivery.Outcome `json:"outcome,omitempty"`
	Handle  string           `json:"handle,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// BatchReport is the result of a batch run. Outcomes follow the order in
// which the backend returned the orders.
type BatchReport struct {
	RunID      string         `json:"run_id"`
	MentorID   string         `json:"mentor_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Outcomes   []OrderOutcome `json:"outcomes"`

	// Skipped counts inactive orders and orders without a plan.
	Skipped int `json:"skipped"`
}

// BatchSummary aggregates a run without any per-student data.
type BatchSummary struct {
	RunID      string
	MentorID   string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Sent       int
	Duplicates int
	Failed     int
	Skipped    int
}

// Summary aggregates the report.
func (r *BatchReport) Summary() BatchSummary {
	s := BatchSummary{
		RunID:      r.RunID,
		MentorID:   r.MentorID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Total:      len(r.Outcomes),
		Skipped:    r.Skipped,
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case delivery.StatusOK:
			s.Sent++
		case delivery.StatusWarning:
			s.Duplicates++
		default:
			s.Failed++
		}
	}
	return s
}

// RunRecorder stores batch summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, summary BatchSummary) error
}

// ══════════════════════════════════════════════════════════════════════════════
// BATCH DISTRIBUTOR
// ══════════════════════════════════════════════════════════════════════════════

// BatchDistributor drives a PlanDistributor over all orders of a mentor.
type BatchDistributor struct {
	backend     mentoring.Backend
	distributor *PlanDistributor
	recorder    RunRecorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewBatchDistributor creates a new BatchDistributor. recorder may be nil.
func NewBatchDistributor(backend mentoring.Backend, distributor *PlanDistributor, recorder RunRecorder, logger *slog.Logger) *BatchDistributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchDistributor{
		backend:     backend,
		distributor: distributor,
		recorder:    recorder,
		logger:      logger,
		now:         time.Now,
	}
}

// DistributeAll delivers plans for every deliverable order of mentorID.
// Only a failure to list the orders is returned as an error.
func (b *BatchDistributor) DistributeAll(ctx context.Context, mentorID, template string) (*BatchReport, error) {
	report := &BatchReport{
		RunID:     uuid.NewString(),
		MentorID:  mentorID,
		StartedAt: b.now().UTC(),
		Outcomes:  []OrderOutcome{},
	}

	orders, err := b.backend.GetMentorOrders(ctx, mentorID)
	if err != nil {
		return nil, ensureTaxonomy("mentoring", "GetMentorOrders", "failed to list mentor orders", err)
	}

	for _, order := range orders {
		if !order.Deliverable() {
			report.Skipped++
			continue
		}

		result, err := b.distributor.Distribute(ctx, order, template)
		report.Outcomes = append(report.Outcomes, toOutcome(result, err))

		if err != nil {
			b.logger.Warn("plan delivery failed",
				"run_id", report.RunID,
				"order_id", order.ID,
				"error", err,
			)
		}
	}

	report.FinishedAt = b.now().UTC()

	summary := report.Summary()
	b.logger.Info("batch delivery finished",
		"run_id", report.RunID,
		"mentor_id", mentorID,
		"sent", summary.Sent,
		"duplicates", summary.Duplicates,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)

	if b.recorder != nil {
		if err := b.recorder.RecordRun(ctx, summary); err != nil {
			b.logger.Warn("failed to record batch run", "run_id", report.RunID, "error", err)
		}
	}

	return report, nil
}

func toOutcome(result DeliveryResult, err error) OrderOutcome {
	o := OrderOutcome{
		OrderID: result.OrderID,
		Outcome: result.Outcome,
		Handle:  result.Handle,
	}
	if err != nil {
		o.Status = delivery.StatusError
		o.Error = err.Error()
		return o
	}
	o.Status = result.Outcome.Status()
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SendPlansHandler handles the SendPlansCommand.
type SendPlansHandler struct {
	batch *BatchDistributor
}

// NewSendPlansHandler creates a new SendPlansHandler.
func NewSendPlansHandler(batch *BatchDistributor) *SendPlansHandler {
	return &SendPlansHandler{batch: batch}
}

// Handle runs the batch.
func (h *SendPlansHandler) Handle(ctx context.Context, cmd SendPlansCommand) (*BatchReport, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.batch.DistributeAll(ctx, cmd.MentorID, cmd.Template)
}
