package command

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ─────────────────────────────────────────────────────────────────────────────
// Backend
// ─────────────────────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu sync.Mutex

	orders       map[string]*mentoring.Order
	plans        map[string]*mentoring.WeeklyPlan
	mentorOrders map[string][]mentoring.Order

	hideErr     error
	listErr     error
	hiddenNotes []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders:       map[string]*mentoring.Order{},
		plans:        map[string]*mentoring.WeeklyPlan{},
		mentorOrders: map[string][]mentoring.Order{},
	}
}

// GetOrder returns a deep copy so that callers observe hides only after a refetch.
func (b *fakeBackend) GetOrder(_ context.Context, orderID string) (*mentoring.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return nil, shared.NewResolutionError("mentoring", "GetOrder", "order not found", shared.ErrNotFound)
	}
	cp := *o
	if o.Student != nil {
		st := *o.Student
		st.Notes = append([]mentoring.Note(nil), o.Student.Notes...)
		cp.Student = &st
	}
	return &cp, nil
}

func (b *fakeBackend) GetWeeklyPlan(_ context.Context, planID string) (*mentoring.WeeklyPlan, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.plans[planID]
	if !ok {
		return nil, shared.NewResolutionError("mentoring", "GetWeeklyPlan", "weekly plan not found", shared.ErrNotFound)
	}
	return p, nil
}

func (b *fakeBackend) GetMentorOrders(_ context.Context, mentorID string) ([]mentoring.Order, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.mentorOrders[mentorID], nil
}

func (b *fakeBackend) HideNote(_ context.Context, noteID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.hideErr != nil {
		return b.hideErr
	}
	b.hiddenNotes = append(b.hiddenNotes, noteID)
	for _, o := range b.orders {
		if o.Student == nil {
			continue
		}
		for i := range o.Student.Notes {
			if o.Student.Notes[i].ID == noteID {
				o.Student.Notes[i].Hidden = true
			}
		}
	}
	return nil
}

func (b *fakeBackend) addOrder(o mentoring.Order) {
	b.orders[o.ID] = &o
}

// ─────────────────────────────────────────────────────────────────────────────
// Messenger
// ─────────────────────────────────────────────────────────────────────────────

type fakeMessenger struct {
	mu sync.Mutex

	// history holds texts per handle, oldest first.
	history map[string][]string
	sent    []delivery.OutboundMessage

	sendErr map[string]error
	findErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		history: map[string][]string{},
		sendErr: map[string]error{},
	}
}

func (m *fakeMessenger) FindLatest(_ context.Context, handle, text string) (*delivery.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return nil, m.findErr
	}
	msgs := m.history[handle]
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.Contains(msgs[i], text) {
			return &delivery.Message{ID: i + 1, Text: msgs[i]}, nil
		}
	}
	return nil, nil
}

func (m *fakeMessenger) Send(_ context.Context, msg delivery.OutboundMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.sendErr[msg.Handle]; err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	m.history[msg.Handle] = append(m.history[msg.Handle], msg.Text)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Staff notifier, run recorder, login
// ─────────────────────────────────────────────────────────────────────────────

type postedNotice struct {
	ChatID int64
	Text   string
}

type fakeNotifier struct {
	posted []postedNotice
	err    error
}

func (n *fakeNotifier) NotifyStaff(_ context.Context, chatID int64, text string) error {
	if n.err != nil {
		return n.err
	}
	n.posted = append(n.posted, postedNotice{ChatID: chatID, Text: text})
	return nil
}

type fakeRecorder struct {
	runs []BatchSummary
	err  error
}

func (r *fakeRecorder) RecordRun(_ context.Context, s BatchSummary) error {
	r.runs = append(r.runs, s)
	return r.err
}

type fakeGateway struct {
	sent      *SentCode
	sendErr   error
	session   string
	signInErr error
	signIns   int
}

func (g *fakeGateway) SendCode(context.Context, string) (*SentCode, error) {
	return g.sent, g.sendErr
}

func (g *fakeGateway) SignIn(_ context.Context, _ []byte, _, _, _, _ string) (string, error) {
	g.signIns++
	return g.session, g.signInErr
}

type fakePendingStore struct {
	entries map[string]session.PendingLogin
	ttls    map[string]time.Duration
}

func newFakePendingStore() *fakePendingStore {
	return &fakePendingStore{
		entries: map[string]session.PendingLogin{},
		ttls:    map[string]time.Duration{},
	}
}

func (s *fakePendingStore) Save(_ context.Context, p session.PendingLogin, ttl time.Duration) error {
	s.entries[p.Phone] = p
	s.ttls[p.Phone] = ttl
	return nil
}

func (s *fakePendingStore) Get(_ context.Context, phone string) (*session.PendingLogin, error) {
	p, ok := s.entries[phone]
	if !ok {
		return nil, session.ErrPendingLoginNotFound
	}
	return &p, nil
}

func (s *fakePendingStore) Delete(_ context.Context, phone string) error {
	delete(s.entries, phone)
	return nil
}
