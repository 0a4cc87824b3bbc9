// Package main is the entry point of the mentor relay HTTP service.
//
// The service sits between the mentoring backend and Telegram: it delivers
// weekly plans to students, posts staff notices, counts study days from the
// DVMN history and runs the Telegram login flow that issues user sessions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvmn-mentors/mentor-relay/config"
	"github.com/dvmn-mentors/mentor-relay/internal/app"
	httpserver "github.com/dvmn-mentors/mentor-relay/internal/interface/http"
	"github.com/dvmn-mentors/mentor-relay/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration and logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting mentor relay",
		"env", cfg.App.Environment,
		"debug", cfg.App.Debug,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Collaborators and handlers
	// ─────────────────────────────────────────────────────────────────────────
	relay, err := app.New(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		log.Info("closing connections...")
		relay.Close()
	}()

	if relay.Journal != nil {
		applied, err := relay.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("migrations completed", "applied", applied)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Background jobs
	// ─────────────────────────────────────────────────────────────────────────
	if err := relay.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer func() {
		if err := relay.Scheduler.Stop(); err != nil {
			log.Warn("failed to stop scheduler", "error", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpConfig.RateLimitPerMinute = cfg.HTTP.RateLimit
	httpConfig.RateLimitBurst = cfg.HTTP.RateLimitBurst
	httpConfig.Version = cfg.App.Version

	server := httpserver.NewServer(httpConfig, relay.HTTPDependencies())
	errCh := server.StartAsync()

	log.Info("mentor relay is running", "http_address", httpConfig.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Graceful shutdown
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			log.Error("http server error", "error", err)
			return err
		}
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", "error", err)
		return err
	}

	log.Info("shutdown completed successfully")
	return nil
}

// setupLogger installs the process logger. Production logs JSON.
func setupLogger(cfg *config.Config) *slog.Logger {
	format := logger.Format(cfg.Log.Format)
	if format == "" {
		format = logger.FormatText
		if cfg.IsProduction() {
			format = logger.FormatJSON
		}
	}

	return logger.Setup(logger.Options{
		Level:  cfg.Log.Level,
		Format: format,
		Debug:  cfg.App.Debug,
		Attrs: []slog.Attr{
			slog.String("service", cfg.App.Name),
			slog.String("version", cfg.App.Version),
		},
	})
}
