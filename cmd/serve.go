package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"newspaper/internal/api"
	"newspaper/internal/config"
	"newspaper/internal/logging"
	"newspaper/internal/scheduler"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, task workers and the digest scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), runServe)
		},
	}
}

// withApp loads configuration, builds the logger and the app and runs fn.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, closer, err := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer closer.Close()
	slog.SetDefault(log)

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize app",
			"error", err)

		return err
	}
	defer a.close(ctx)

	return fn(ctx, a)
}

func runServe(ctx context.Context, a *app) error {
	log := a.log
	start := time.Now()

	if strings.TrimSpace(a.cfg.JWTSecret) == "" {
		log.ErrorContext(ctx, "JWT_SECRET is required",
			"envVar", "JWT_SECRET")

		return errors.New("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.queue.Start(ctx); err != nil {
		return fmt.Errorf("start task queue: %w", err)
	}
	log.InfoContext(ctx, "Task queue is started",
		"workers", a.cfg.TaskWorkers,
		"queueSize", a.cfg.TaskQueueSize)

	loc, err := a.cfg.DigestLocation()
	if err != nil {
		return fmt.Errorf("load digest timezone (%s): %w", a.cfg.DigestTimezone, err)
	}

	opts := scheduler.Options{
		DigestSpec: a.cfg.DigestSchedule,
		Location:   loc,
		Alerter:    a.alerter,
	}
	if a.importer.Enabled() {
		opts.Importer = a.importer
		opts.ImportSpec = a.cfg.ImportSchedule
	}

	sched := scheduler.New(ctx, a.notifier, opts, log)

	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", sched.DigestSpec(),
			"timezone", loc.String())

		return err
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", sched.DigestSpec(),
		"timezone", loc.String(),
		"importEnabled", opts.Importer != nil)

	server := api.NewServer(a.db, a.publish, api.JWTAuth(a.cfg.JWTSecret), log).HTTPServer(a.cfg.HTTPAddr)

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	log.InfoContext(ctx, "HTTP server is started",
		"addr", a.cfg.HTTPAddr)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serveErr:
		if err != nil {
			log.ErrorContext(ctx, "HTTP server failed",
				"error", err,
				"addr", a.cfg.HTTPAddr)
		}
	}

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		log.ErrorContext(ctx, "Failed to shut down HTTP server",
			"error", shutdownErr)
	}
	log.InfoContext(ctx, "HTTP server is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	return err
}
