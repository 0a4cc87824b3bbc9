// Package http exposes the relay operations over a JSON HTTP API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
	"github.com/dvmn-mentors/mentor-relay/internal/application/query"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/mentoring"
	"github.com/dvmn-mentors/mentor-relay/internal/interface/http/handlers"
	"github.com/dvmn-mentors/mentor-relay/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config controls the listener and the middleware stack.
type Config struct {
	Host string
	Port int

	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	// Nil or empty leaves CORS headers off.
	AllowedOrigins []string

	// RateLimitPerMinute is the sustained per-IP rate. Zero turns the
	// limiter off. RateLimitBurst defaults to the per-minute rate.
	RateLimitPerMinute int
	RateLimitBurst     int

	// Version is echoed by /health.
	Version string
}

// DefaultConfig allows a long WriteTimeout since send_plans walks a whole
// order list in one request.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8000,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       5 * time.Minute,
		IdleTimeout:        time.Minute,
		MaxHeaderBytes:     1 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 120,
		RateLimitBurst:     20,
		Version:            "v1",
	}
}

// Address is the host:port the server listens on.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// SessionRunner opens a messaging session from a caller supplied string
// session. The messenger is valid only inside fn.
type SessionRunner interface {
	WithSession(ctx context.Context, sess string, fn func(ctx context.Context, m delivery.Messenger) error) error
}

// AcademicLeaveService posts academic leave notices.
type AcademicLeaveService interface {
	Handle(ctx context.Context, cmd command.AcademicLeaveCommand) (*command.StaffNoticeResult, error)
}

// InternshipService posts internship requests.
type InternshipService interface {
	Handle(ctx context.Context, cmd command.InternshipCommand) (*command.StaffNoticeResult, error)
}

// StudyDaysService counts recent study days.
type StudyDaysService interface {
	Handle(ctx context.Context, q query.GetStudyDaysQuery) (*query.GetStudyDaysResult, error)
}

// RequestCodeService starts a Telegram login.
type RequestCodeService interface {
	Handle(ctx context.Context, cmd command.RequestCodeCommand) (*command.RequestCodeResult, error)
}

// CompleteLoginService finishes a Telegram login.
type CompleteLoginService interface {
	Handle(ctx context.Context, cmd command.CompleteLoginCommand) (*command.CompleteLoginResult, error)
}

// Dependencies are the services behind the routes. A nil service answers
// 501 not_implemented.
type Dependencies struct {
	// Plan delivery runs inside a per-request messaging session.
	Backend  mentoring.Backend
	Sessions SessionRunner
	Recorder command.RunRecorder

	AcademicLeave AcademicLeaveService
	Internship    InternshipService
	StudyDays     StudyDaysService
	RequestCode   RequestCodeService
	CompleteLogin CompleteLoginService

	Health *handlers.HealthChecker

	Logger *slog.Logger
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server serves the relay API.
type Server struct {
	config Config
	deps   Dependencies
	logger *slog.Logger

	mux         *http.ServeMux
	srv         *http.Server
	rateLimiter *ipRateLimiter
	validator   *requestValidator

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer registers the routes and builds the middleware stack. It does
// not listen until Start.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config:    config,
		deps:      deps,
		logger:    logger.Component(deps.Logger, "http"),
		mux:       http.NewServeMux(),
		validator: newRequestValidator(),
	}
	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newIPRateLimiter(config.RateLimitPerMinute, config.RateLimitBurst)
	}

	s.routes()

	s.srv = &http.Server{
		Addr:           config.Address(),
		Handler:        chain(s.mux, s.middlewares()...),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}
	return s
}

// Handler is the full stack, usable without a listener.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// routes registers every endpoint. Relay endpoints other than /auth accept
// an optional trailing slash.
func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	// Staff notices
	s.handleBoth(http.MethodPost, "/academic_leave", s.handleAcademicLeave)
	s.handleBoth(http.MethodPost, "/internship", s.handleInternship)

	// Plan delivery
	s.handleBoth(http.MethodPost, "/send_plan", s.handleSendPlan)
	s.handleBoth(http.MethodPost, "/send_plans", s.handleSendPlans)

	// Attendance
	s.handleBoth(http.MethodGet, "/get_study_days", s.handleGetStudyDays)

	// Telegram login
	s.mux.HandleFunc("POST /auth/verification_code", s.handleRequestCode)
	s.mux.HandleFunc("POST /auth/session", s.handleCompleteLogin)
}

func (s *Server) handleBoth(method, path string, h http.HandlerFunc) {
	pattern := method + " " + path
	s.mux.HandleFunc(pattern, h)
	s.mux.HandleFunc(pattern+"/{$}", h)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

var errAlreadyRunning = errors.New("http server already running")

// Start listens and blocks until the server stops. A graceful Shutdown
// returns nil.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errAlreadyRunning
	}
	s.running, s.startedAt = true, time.Now()
	s.mu.Unlock()

	s.logger.Info("listening", "address", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return nil
}

// StartAsync runs Start in a goroutine. The channel yields its error, if
// any, and is then closed.
func (s *Server) StartAsync() <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := s.Start(); err != nil {
			done <- err
		}
	}()
	return done
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	if !wasRunning {
		return nil
	}
	s.logger.Info("draining connections")
	return s.srv.Shutdown(ctx)
}

// Uptime is zero while the server is stopped.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
