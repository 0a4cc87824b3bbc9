package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
	"github.com/dvmn-mentors/mentor-relay/internal/application/query"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

const (
	testOrderID  = "8d6a1c2e-6a31-4f2b-93a0-0f7b7c1f0a11"
	testOrder2ID = "1b7e0c55-35e4-4c2c-b3f1-2d1a6a9e8b22"
	testMentorID = "5f0c9a8b-7d6e-4c3b-a291-8e7f6d5c4b33"
	testSession  = "1AgAAAAA"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// Backend and messenger
// ─────────────────────────────────────────────────────────────────────────────

type fakeBackend struct {
	orders       map[string]*mentoring.Order
	plans        map[string]*mentoring.WeeklyPlan
	mentorOrders map[string][]mentoring.Order
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders:       map[string]*mentoring.Order{},
		plans:        map[string]*mentoring.WeeklyPlan{},
		mentorOrders: map[string][]mentoring.Order{},
	}
}

func (b *fakeBackend) addOrder(id, handle, planID, gist string, active bool) mentoring.Order {
	o := mentoring.Order{
		ID:      id,
		Active:  active,
		Student: &mentoring.Student{ID: "s-" + id, Profile: mentoring.Profile{TelegramHandle: handle, DvmnUsername: handle}},
		Plan:    &mentoring.PlanRef{ID: planID},
	}
	b.orders[id] = &o
	b.plans[planID] = &mentoring.WeeklyPlan{ID: planID, Gist: gist}
	return o
}

func (b *fakeBackend) GetOrder(_ context.Context, id string) (*mentoring.Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, shared.NewResolutionError("mentoring", "GetOrder", "order not found", shared.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (b *fakeBackend) GetWeeklyPlan(_ context.Context, id string) (*mentoring.WeeklyPlan, error) {
	p, ok := b.plans[id]
	if !ok {
		return nil, shared.NewResolutionError("mentoring", "GetWeeklyPlan", "weekly plan not found", shared.ErrNotFound)
	}
	return p, nil
}

func (b *fakeBackend) GetMentorOrders(_ context.Context, id string) ([]mentoring.Order, error) {
	return b.mentorOrders[id], nil
}

func (b *fakeBackend) HideNote(context.Context, string) error { return nil }

type fakeMessenger struct {
	mu      sync.Mutex
	history map[string][]string
	sent    []delivery.OutboundMessage
	sendErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{history: map[string][]string{}}
}

func (m *fakeMessenger) FindLatest(_ context.Context, handle, text string) (*delivery.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.history[handle] {
		if strings.Contains(t, text) {
			return &delivery.Message{ID: i + 1, Text: t}, nil
		}
	}
	return nil, nil
}

func (m *fakeMessenger) Send(_ context.Context, msg delivery.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, msg)
	m.history[msg.Handle] = append(m.history[msg.Handle], msg.Text)
	return nil
}

// fakeSessions accepts only testSession.
type fakeSessions struct {
	messenger *fakeMessenger
	opened    int
}

func (s *fakeSessions) WithSession(ctx context.Context, sess string, fn func(context.Context, delivery.Messenger) error) error {
	if sess != testSession {
		return shared.NewDomainError("telegram", "WithSession", shared.ErrUnauthorized, "session is not authorized")
	}
	s.opened++
	return fn(ctx, s.messenger)
}

type fakeRecorder struct {
	runs []command.BatchSummary
}

func (r *fakeRecorder) RecordRun(_ context.Context, s command.BatchSummary) error {
	r.runs = append(r.runs, s)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Services
// ─────────────────────────────────────────────────────────────────────────────

type fakeLeave struct {
	got command.AcademicLeaveCommand
	err error
}

func (f *fakeLeave) Handle(_ context.Context, cmd command.AcademicLeaveCommand) (*command.StaffNoticeResult, error) {
	f.got = cmd
	if f.err != nil {
		return nil, f.err
	}
	return &command.StaffNoticeResult{OrderID: cmd.OrderID, ChatID: -100, Text: "#академ"}, nil
}

type fakeInternship struct {
	panicWith any
}

func (f *fakeInternship) Handle(_ context.Context, cmd command.InternshipCommand) (*command.StaffNoticeResult, error) {
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return &command.StaffNoticeResult{OrderID: cmd.OrderID, ChatID: 42}, nil
}

type fakeStudyDays struct {
	got query.GetStudyDaysQuery
	err error
}

func (f *fakeStudyDays) Handle(_ context.Context, q query.GetStudyDaysQuery) (*query.GetStudyDaysResult, error) {
	f.got = q
	if f.err != nil {
		return nil, f.err
	}
	window := q.WindowDays
	if window == 0 {
		window = 7
	}
	return &query.GetStudyDaysResult{OrderID: q.OrderID, Username: "alice", WindowDays: window, StudyDays: 3}, nil
}

type fakeRequestCode struct {
	got command.RequestCodeCommand
}

func (f *fakeRequestCode) Handle(_ context.Context, cmd command.RequestCodeCommand) (*command.RequestCodeResult, error) {
	f.got = cmd
	return &command.RequestCodeResult{PhoneCodeHash: "hash-1"}, nil
}

type fakeCompleteLogin struct {
	err error
}

func (f *fakeCompleteLogin) Handle(_ context.Context, _ command.CompleteLoginCommand) (*command.CompleteLoginResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &command.CompleteLoginResult{Session: "1BQANOTE"}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type testEnv struct {
	backend    *fakeBackend
	messenger  *fakeMessenger
	sessions   *fakeSessions
	recorder   *fakeRecorder
	leave      *fakeLeave
	internship *fakeInternship
	studyDays  *fakeStudyDays
	reqCode    *fakeRequestCode
	login      *fakeCompleteLogin
	server     *Server
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		backend:    newFakeBackend(),
		messenger:  newFakeMessenger(),
		recorder:   &fakeRecorder{},
		leave:      &fakeLeave{},
		internship: &fakeInternship{},
		studyDays:  &fakeStudyDays{},
		reqCode:    &fakeRequestCode{},
		login:      &fakeCompleteLogin{},
	}
	env.sessions = &fakeSessions{messenger: env.messenger}

	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	for _, m := range mutate {
		m(&cfg)
	}

	env.server = NewServer(cfg, Dependencies{
		Backend:       env.backend,
		Sessions:      env.sessions,
		Recorder:      env.recorder,
		AcademicLeave: env.leave,
		Internship:    env.internship,
		StudyDays:     env.studyDays,
		RequestCode:   env.reqCode,
		CompleteLogin: env.login,
		Logger:        discardLogger(),
	})
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var body JSONResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

// dataAs re-decodes the envelope data into dst.
func dataAs(t *testing.T, body JSONResponse, dst any) {
	t.Helper()
	raw, err := json.Marshal(body.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}

func detailsAs(t *testing.T, body JSONResponse, dst any) {
	t.Helper()
	require.NotNil(t, body.Error)
	raw, err := json.Marshal(body.Error.Details)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, dst))
}
