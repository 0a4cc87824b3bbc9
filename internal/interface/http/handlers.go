package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
	"github.com/dvmn-mentors/mentor-relay/internal/application/query"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
	"github.com/dvmn-mentors/mentor-relay/pkg/logger"
)

// SessionHeader carries the Telegram string session of the operator.
const SessionHeader = "session"

func notConfigured(w http.ResponseWriter, r *http.Request, what string) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", what+" is not configured", nil)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		writeJSON(w, r, http.StatusOK, map[string]string{
			"status": "healthy",
			"uptime": s.Uptime().String(),
		})
		return
	}

	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// ══════════════════════════════════════════════════════════════════════════════
// STAFF NOTICES
// ══════════════════════════════════════════════════════════════════════════════

// handleAcademicLeave handles POST /academic_leave/.
func (s *Server) handleAcademicLeave(w http.ResponseWriter, r *http.Request) {
	if s.deps.AcademicLeave == nil {
		notConfigured(w, r, "Academic leave")
		return
	}

	q := r.URL.Query()
	req := academicLeaveRequest{
		OrderID:  q.Get("order_uuid"),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
		Reason:   strings.TrimSpace(q.Get("reason")),
	}
	if !s.bind(w, r, &req) {
		return
	}

	from, err := parseDate(req.DateFrom)
	if err != nil {
		writeError(w, r, shared.WrapError("http", "AcademicLeave", shared.ErrValidation, "date_from is not a date", err), nil)
		return
	}
	to, err := parseDate(req.DateTo)
	if err != nil {
		writeError(w, r, shared.WrapError("http", "AcademicLeave", shared.ErrValidation, "date_to is not a date", err), nil)
		return
	}

	result, err := s.deps.AcademicLeave.Handle(r.Context(), command.AcademicLeaveCommand{
		OrderID: req.OrderID,
		From:    from,
		To:      to,
		Reason:  req.Reason,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// handleInternship handles POST /internship/.
func (s *Server) handleInternship(w http.ResponseWriter, r *http.Request) {
	if s.deps.Internship == nil {
		notConfigured(w, r, "Internship")
		return
	}

	req := orderRequest{OrderID: r.URL.Query().Get("order_uuid")}
	if !s.bind(w, r, &req) {
		return
	}

	result, err := s.deps.Internship.Handle(r.Context(), command.InternshipCommand{OrderID: req.OrderID})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN DELIVERY
// ══════════════════════════════════════════════════════════════════════════════

// sendPlanResponse is the body of POST /send_plan/.
type sendPlanResponse struct {
	OrderID string           `json:"order_id"`
	Outcome delivery.Outcome `json:"outcome"`
}

// sessionFrom returns the session header or writes 401.
func sessionFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	sess := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sess == "" {
		writeError(w, r, shared.NewDomainError("http", "Session", shared.ErrUnauthorized, "session header is required"), nil)
		return "", false
	}
	return sess, true
}

// handleSendPlan handles POST /send_plan/.
func (s *Server) handleSendPlan(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil || s.deps.Backend == nil {
		notConfigured(w, r, "Plan delivery")
		return
	}

	q := r.URL.Query()
	req := sendPlanRequest{OrderID: q.Get("order_uuid"), Template: q.Get("template")}
	if !s.bind(w, r, &req) {
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var result command.DeliveryResult
	err := s.deps.Sessions.WithSession(r.Context(), sess, func(ctx context.Context, m delivery.Messenger) error {
		distributor := command.NewPlanDistributor(s.deps.Backend, m, logger.FromContext(ctx))
		var err error
		result, err = command.NewSendPlanHandler(s.deps.Backend, distributor).Handle(ctx, command.SendPlanCommand{
			OrderID:  req.OrderID,
			Template: req.Template,
		})
		return err
	})

	resp := sendPlanResponse{OrderID: req.OrderID, Outcome: result.Outcome}
	if err != nil {
		if result.Outcome == delivery.OutcomeSendFailed {
			writeJSONError(w, r, http.StatusBadGateway, "send_failed", errorMessage(err, http.StatusBadGateway), resp)
			logger.FromContext(r.Context()).Warn("plan send failed", "order_id", req.OrderID, "error", err)
			return
		}
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, resp)
}

// handleSendPlans handles POST /send_plans/. Item failures stay inside the
// report and the response is 200.
func (s *Server) handleSendPlans(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions == nil || s.deps.Backend == nil {
		notConfigured(w, r, "Plan delivery")
		return
	}

	q := r.URL.Query()
	req := sendPlansRequest{MentorID: q.Get("mentor_uuid"), Template: q.Get("template")}
	if !s.bind(w, r, &req) {
		return
	}
	sess, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	var report *command.BatchReport
	err := s.deps.Sessions.WithSession(r.Context(), sess, func(ctx context.Context, m delivery.Messenger) error {
		log := logger.FromContext(ctx)
		distributor := command.NewPlanDistributor(s.deps.Backend, m, log)
		batch := command.NewBatchDistributor(s.deps.Backend, distributor, s.deps.Recorder, log)
		var err error
		report, err = command.NewSendPlansHandler(batch).Handle(ctx, command.SendPlansCommand{
			MentorID: req.MentorID,
			Template: req.Template,
		})
		return err
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, report)
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

// studyDaysResponse is the body of GET /get_study_days/.
type studyDaysResponse struct {
	OrderID    string `json:"order_id"`
	StudyDays  int    `json:"study_days"`
	WindowDays int    `json:"window_days"`
}

// handleGetStudyDays handles GET /get_study_days/.
func (s *Server) handleGetStudyDays(w http.ResponseWriter, r *http.Request) {
	if s.deps.StudyDays == nil {
		notConfigured(w, r, "Attendance")
		return
	}

	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, r, err, nil)
		return
	}
	req := studyDaysRequest{OrderID: r.URL.Query().Get("order_uuid"), Days: days}
	if !s.bind(w, r, &req) {
		return
	}

	result, err := s.deps.StudyDays.Handle(r.Context(), query.GetStudyDaysQuery{
		OrderID:    req.OrderID,
		WindowDays: req.Days,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, studyDaysResponse{
		OrderID:    result.OrderID,
		StudyDays:  result.StudyDays,
		WindowDays: result.WindowDays,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM LOGIN
// ══════════════════════════════════════════════════════════════════════════════

type requestCodeResponse struct {
	Message       string `json:"message"`
	PhoneCodeHash string `json:"phone_code_hash"`
}

type completeLoginResponse struct {
	Message   string `json:"message"`
	TgSession string `json:"tg_session"`
}

// handleRequestCode handles POST /auth/verification_code.
func (s *Server) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	if s.deps.RequestCode == nil {
		notConfigured(w, r, "Telegram login")
		return
	}

	var req requestCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	if !s.bind(w, r, &req) {
		return
	}

	result, err := s.deps.RequestCode.Handle(r.Context(), command.RequestCodeCommand{Phone: req.Phone})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, requestCodeResponse{
		Message:       "Verification code sent",
		PhoneCodeHash: result.PhoneCodeHash,
	})
}

// handleCompleteLogin handles POST /auth/session.
func (s *Server) handleCompleteLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteLogin == nil {
		notConfigured(w, r, "Telegram login")
		return
	}

	var req completeLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, nil)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Code = strings.TrimSpace(req.Code)
	if !s.bind(w, r, &req) {
		return
	}

	result, err := s.deps.CompleteLogin.Handle(r.Context(), command.CompleteLoginCommand{
		Phone:         req.Phone,
		Code:          req.Code,
		PhoneCodeHash: req.PhoneCodeHash,
		Password:      req.Password,
	})
	if err != nil {
		writeError(w, r, err, nil)
		return
	}

	writeJSON(w, r, http.StatusOK, completeLoginResponse{
		Message:   "Session created",
		TgSession: result.Session,
	})
}
