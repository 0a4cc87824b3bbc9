// Package app assembles the relay from configuration. Both the HTTP service
// and relayctl build their collaborators here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dvmn-mentors/mentor-relay/config"
	"github.com/dvmn-mentors/mentor-relay/internal/application/command"
	"github.com/dvmn-mentors/mentor-relay/internal/application/query"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/attendance"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/delivery"
	"github.com/dvmn-mentors/mentor-relay/internal/domain/session"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/external/dvmn"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/external/mentors"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/external/mtproto"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/external/telegram"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/persistence/memory"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/persistence/postgres"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/persistence/redis"
	"github.com/dvmn-mentors/mentor-relay/internal/infrastructure/scheduler"
	httpserver "github.com/dvmn-mentors/mentor-relay/internal/interface/http"
	"github.com/dvmn-mentors/mentor-relay/internal/interface/http/handlers"
	"github.com/dvmn-mentors/mentor-relay/pkg/circuitbreaker"
	"github.com/dvmn-mentors/mentor-relay/pkg/retry"
)

// App holds the wired collaborators and the handlers built on them.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Backend  *mentors.Client
	Sessions *mtproto.Client
	Bot      *telegram.Client
	Scraper  *dvmn.TimelineScraper

	// Journal is nil when no database is configured.
	Journal *postgres.RunJournal

	AcademicLeave *command.AcademicLeaveHandler
	Internship    *command.InternshipHandler
	StudyDays     *query.GetStudyDaysHandler
	RequestCode   *command.RequestCodeHandler
	CompleteLogin *command.CompleteLoginHandler

	Health    *handlers.HealthChecker
	Scheduler *scheduler.Scheduler

	db      *postgres.Connection
	cache   *redis.Cache
	pending *memory.PendingLoginStore
}

// New connects the optional stores and builds every handler.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Config: cfg, Logger: log}

	// ─────────────────────────────────────────────────────────────────────────
	// External clients
	// ─────────────────────────────────────────────────────────────────────────
	backend, err := mentors.NewClient(mentorsClientConfig(cfg, log))
	if err != nil {
		return nil, fmt.Errorf("mentors client: %w", err)
	}
	a.Backend = backend

	a.Sessions, err = mtproto.NewClient(mtproto.Config{
		AppID:       cfg.Telegram.APIID,
		AppHash:     cfg.Telegram.APIHash,
		DeviceModel: cfg.Telegram.DeviceModel,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("mtproto client: %w", err)
	}

	botConfig := telegram.DefaultClientConfig(cfg.Telegram.BotToken)
	botConfig.BaseURL = cfg.Telegram.BotBaseURL
	botConfig.Logger = log
	a.Bot = telegram.NewClient(botConfig)

	a.Scraper = dvmn.NewTimelineScraper(dvmn.Config{
		HistoryURL: cfg.Attendance.HistoryURL,
		Timeout:    cfg.Attendance.Timeout,
		Logger:     log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// Stores
	// ─────────────────────────────────────────────────────────────────────────
	a.Health = handlers.NewHealthChecker(cfg.App.Version)
	a.Scheduler = scheduler.New(scheduler.Config{Logger: log})

	store, err := a.pendingStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Database.Enabled() {
		if err := a.connectDatabase(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// Handlers
	// ─────────────────────────────────────────────────────────────────────────
	format, err := dateFormat(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	chats := command.StaffChats{Mentors: cfg.Telegram.MentorsChatID, Head: cfg.Telegram.MentorsHeadChatID}
	a.AcademicLeave = command.NewAcademicLeaveHandler(backend, a.Bot, chats, log)
	a.Internship = command.NewInternshipHandler(backend, a.Bot, chats, log)
	a.StudyDays = query.NewGetStudyDaysHandler(backend, a.Scraper, format).WithDefaultWindow(cfg.Attendance.WindowDays)

	gateway := mtproto.NewGateway(a.Sessions)
	a.RequestCode = command.NewRequestCodeHandler(gateway, store, cfg.Auth.PendingTTL, log)
	a.CompleteLogin = command.NewCompleteLoginHandler(gateway, store, log)

	return a, nil
}

func (a *App) pendingStore(ctx context.Context) (session.PendingStore, error) {
	cfg := a.Config
	if !cfg.Redis.Enabled() {
		a.pending = memory.NewPendingLoginStore()
		err := a.Scheduler.Register(scheduler.JobFunc{
			JobName: "purge-pending-logins",
			Fn: func(context.Context) error {
				if n := a.pending.Purge(); n > 0 {
					a.Logger.Debug("purged expired pending logins", "count", n)
				}
				return nil
			},
		}, scheduler.Every(cfg.Auth.PurgeInterval))
		if err != nil {
			return nil, err
		}
		a.Logger.Info("using in-memory pending login store")
		return a.pending, nil
	}

	cache, err := redis.NewCache(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.cache = cache
	a.Health.AddCheck("redis", handlers.PingCheck(cache))
	a.Logger.Info("Redis connection established")
	return redis.NewPendingLoginStore(cache), nil
}

func (a *App) connectDatabase(ctx context.Context) error {
	cfg := a.Config.Database
	settings := postgres.DefaultPoolSettings()
	if cfg.MaxConns > 0 {
		settings.MaxConns = int32(cfg.MaxConns)
	}
	settings.MaxConnLifetime = cfg.ConnMaxLifetime
	settings.MaxConnIdleTime = cfg.ConnMaxIdleTime
	settings.ConnectTimeout = cfg.ConnectTimeout

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.URL, settings)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.db = conn
	a.Journal = postgres.NewRunJournal(conn)
	a.Health.AddCheck("database", handlers.PingCheck(conn))
	a.Logger.Info("database connection established")
	return nil
}

// ErrNoDatabase is returned by journal operations without DATABASE_URL.
var ErrNoDatabase = errors.New("DATABASE_URL is not set")

// Migrator returns the run journal migrator.
func (a *App) Migrator() (*postgres.Migrator, error) {
	if a.db == nil {
		return nil, ErrNoDatabase
	}
	return postgres.NewMigrator(a.db), nil
}

// Migrate applies pending run journal migrations.
func (a *App) Migrate(ctx context.Context) (int, error) {
	m, err := a.Migrator()
	if err != nil {
		return 0, err
	}
	return m.Migrate(ctx)
}

// Recorder returns the run journal, or nil without a database.
func (a *App) Recorder() command.RunRecorder {
	if a.Journal == nil {
		return nil
	}
	return a.Journal
}

// WithSession opens a user session and runs fn with its messenger.
func (a *App) WithSession(ctx context.Context, sess string, fn func(ctx context.Context, m delivery.Messenger) error) error {
	return a.Sessions.WithSession(ctx, sess, fn)
}

// HTTPDependencies returns the dependencies of the HTTP server.
func (a *App) HTTPDependencies() httpserver.Dependencies {
	return httpserver.Dependencies{
		Backend:       a.Backend,
		Sessions:      a.Sessions,
		Recorder:      a.Recorder(),
		AcademicLeave: a.AcademicLeave,
		Internship:    a.Internship,
		StudyDays:     a.StudyDays,
		RequestCode:   a.RequestCode,
		CompleteLogin: a.CompleteLogin,
		Health:        a.Health,
		Logger:        a.Logger,
	}
}

// Close releases the store connections.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
		a.db = nil
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.Logger.Warn("failed to close redis", "error", err)
		}
		a.cache = nil
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func mentorsClientConfig(cfg *config.Config, log *slog.Logger) mentors.ClientConfig {
	c := mentors.DefaultClientConfig(cfg.Mentors.Login, cfg.Mentors.Password)
	c.BaseURL = cfg.Mentors.BaseURL
	c.Timeout = cfg.Mentors.RequestTimeout
	c.RequestsPerSecond = cfg.Mentors.RequestsPerSecond
	c.Retry = retry.DefaultPolicy()
	c.Retry.Attempts = cfg.Mentors.MaxRetries + 1
	c.Retry.BaseDelay = cfg.Mentors.RetryBaseDelay
	c.Breaker = circuitbreaker.Settings{
		Name:             "mentors-api",
		FailureThreshold: cfg.Mentors.CircuitBreakerThreshold,
		CoolDown:         cfg.Mentors.CircuitBreakerTimeout,
	}
	c.Logger = log
	return c
}

func dateFormat(cfg *config.Config) (attendance.DateFormat, error) {
	locale, err := attendance.ParseLocale(cfg.Attendance.Locale)
	if err != nil {
		return attendance.DateFormat{}, fmt.Errorf("attendance locale: %w", err)
	}
	format := attendance.DefaultDateFormat()
	format.Locale = locale
	if cfg.Attendance.Layout != "" {
		format.Layout = cfg.Attendance.Layout
	}
	format.Marker = cfg.Attendance.Marker
	if cfg.App.Location != nil {
		format.Location = cfg.App.Location
	}
	return format, nil
}
