package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEND PLAN COMMAND
// Delivers the weekly plan of one order to its student, unless the channel
// already holds a message with the same gist.
// ══════════════════════════════════════════════════════════════════════════════

// SendPlanCommand contains the data needed to deliver one plan.
type SendPlanCommand struct {
	// OrderID is the mentoring backend order UUID.
	OrderID string

	// Template is the message template. Empty uses delivery.DefaultPlanTemplate.
	Template string
}

// Validate validates the command.
func (c SendPlanCommand) Validate() error {
	if strings.TrimSpace(c.OrderID) == "" {
		return shared.NewDomainError("delivery", "SendPlan", shared.ErrInvalidInput, "order_id is required")
	}
	return nil
}

// DeliveryResult describes what happened to one plan delivery.
type DeliveryResult struct {
	OrderID string           `json:"order_id"`
	Handle  string           `json:"handle,omitempty"`
	Gist    string           `json:"gist,omitempty"`
	Outcome delivery.Outcome `json:"outcome,omitempty"`

	// Comment is the operator comment attached to the message, if any.
	Comment string `json:"comment,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN DISTRIBUTOR
// ══════════════════════════════════════════════════════════════════════════════

// PlanDistributor renders and sends the weekly plan of a single order.
//
// The duplicate check precedes the send within one call, but nothing locks
// across calls: two concurrent deliveries of the same gist may both send.
type PlanDistributor struct {
	backend   mentoring.Backend
	messenger delivery.Messenger
	extractor *NoteExtractor
	logger    *slog.Logger
}

// NewPlanDistributor creates a new PlanDistributor.
func NewPlanDistributor(backend mentoring.Backend, messenger delivery.Messenger, logger *slog.Logger) *PlanDistributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanDistributor{
		backend:   backend,
		messenger: messenger,
		extractor: NewNoteExtractor(backend, logger),
		logger:    logger,
	}
}

// Distribute delivers the plan of order. On a failed send the result carries
// OutcomeSendFailed together with the transport error.
func (d *PlanDistributor) Distribute(ctx context.Context, order mentoring.Order, template string) (DeliveryResult, error) {
	result := DeliveryResult{OrderID: order.ID}

	// Step 1: resolve student and plan
	handle, plan, err := d.resolve(ctx, order)
	if err != nil {
		return result, err
	}
	result.Handle = handle
	result.Gist = plan.Gist

	// Step 2: consume the plan comment, if any
	extraction, err := d.extractor.Extract(ctx, order.Student.Notes, mentoring.MarkerPlanComment)
	if err != nil {
		return result, fmt.Errorf("extract plan comment: %w", err)
	}
	if extraction != nil {
		result.Comment = extraction.Text
	}

	// Step 3: render
	msg := delivery.OutboundMessage{
		Handle: handle,
		Text:   delivery.Render(template, plan.Gist, result.Comment),
		Gist:   plan.Gist,
	}

	// Step 4: look for a prior delivery of the same gist
	prior, err := d.messenger.FindLatest(ctx, handle, plan.Gist)
	if err != nil {
		return result, ensureTaxonomy("delivery", "FindLatest", "failed to search message history", err)
	}
	if prior != nil {
		d.logger.Info("plan already delivered",
			"order_id", order.ID,
			"handle", handle,
			"message_id", prior.ID,
		)
		result.Outcome = delivery.OutcomeDuplicate
		return result, nil
	}

	// Step 5: send
	if err := d.messenger.Send(ctx, msg); err != nil {
		result.Outcome = delivery.OutcomeSendFailed
		return result, ensureTaxonomy("delivery", "Send", "failed to send plan", err)
	}

	d.logger.Info("plan delivered",
		"order_id", order.ID,
		"handle", handle,
		"with_comment", result.Comment != "",
	)
	result.Outcome = delivery.OutcomeSent
	return result, nil
}

func (d *PlanDistributor) resolve(ctx context.Context, order mentoring.Order) (string, *mentoring.WeeklyPlan, error) {
	if order.Student == nil {
		return "", nil, shared.NewResolutionError("mentoring", "ResolveOrder",
			fmt.Sprintf("order %s has no student", order.ID), nil)
	}

	handle := strings.TrimSpace(order.Student.Profile.TelegramHandle)
	if handle == "" {
		return "", nil, shared.NewResolutionError("mentoring", "ResolveOrder",
			fmt.Sprintf("student of order %s has no telegram handle", order.ID), nil)
	}

	if !order.HasPlan() {
		return "", nil, shared.NewResolutionError("mentoring", "ResolveOrder",
			fmt.Sprintf("order %s has no weekly plan", order.ID), nil)
	}

	plan, err := d.backend.GetWeeklyPlan(ctx, order.Plan.ID)
	if err != nil {
		return "", nil, ensureTaxonomy("mentoring", "GetWeeklyPlan", "failed to fetch weekly plan", err)
	}
	if plan == nil || strings.TrimSpace(plan.Gist) == "" {
		return "", nil, shared.NewResolutionError("mentoring", "ResolveOrder",
			fmt.Sprintf("weekly plan %s has no gist", order.Plan.ID), nil)
	}

	return handle, plan, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SendPlanHandler handles the SendPlanCommand.
type SendPlanHandler struct {
	backend     mentoring.Backend
	distributor *PlanDistributor
}

// NewSendPlanHandler creates a new SendPlanHandler.
func NewSendPlanHandler(backend mentoring.Backend, distributor *PlanDistributor) *SendPlanHandler {
	return &SendPlanHandler{
		backend:     backend,
		distributor: distributor,
	}
}

// Handle fetches the order and delivers its plan.
func (h *SendPlanHandler) Handle(ctx context.Context, cmd SendPlanCommand) (DeliveryResult, error) {
	if err := cmd.Validate(); err != nil {
		return DeliveryResult{OrderID: cmd.OrderID}, err
	}

	order, err := h.backend.GetOrder(ctx, cmd.OrderID)
	if err != nil {
		return DeliveryResult{OrderID: cmd.OrderID}, ensureTaxonomy("mentoring", "GetOrder", "failed to fetch order", err)
	}
	if order == nil {
		return DeliveryResult{OrderID: cmd.OrderID}, shared.NewResolutionError("mentoring", "GetOrder",
			"order not found", shared.ErrNotFound)
	}

	return h.distributor.Distribute(ctx, *order, cmd.Template)
}
