package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultDigestSpec = "27 1 * * 3"
	digestTimeout     = time.Hour
	importTimeout     = 15 * time.Minute
	alertTimeout      = 30 * time.Second
)

type Digester interface {
	SendWeeklyDigest(ctx context.Context) error
}

type Importer interface {
	Import(ctx context.Context) error
}

type Alerter interface {
	Alert(ctx context.Context, text string)
}

type Options struct {
	DigestSpec string
	Location   *time.Location
	// Importer and ImportSpec are optional.
	Importer   Importer
	ImportSpec string
	Alerter    Alerter
}

type Scheduler struct {
	ctx        context.Context
	cron       *cron.Cron
	digester   Digester
	importer   Importer
	alerter    Alerter
	digestSpec string
	importSpec string
	log        *slog.Logger
}

func New(ctx context.Context, digester Digester, opts Options, log *slog.Logger) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	digestSpec := opts.DigestSpec
	if digestSpec == "" {
		digestSpec = DefaultDigestSpec
	}

	cronLog := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		ctx:        ctx,
		cron:       c,
		digester:   digester,
		importer:   opts.Importer,
		alerter:    opts.Alerter,
		digestSpec: digestSpec,
		importSpec: opts.ImportSpec,
		log:        log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.digestSpec, s.sendWeeklyDigest); err != nil {
		return fmt.Errorf("add digest job (spec = %s): %w", s.digestSpec, err)
	}

	if s.importer != nil && s.importSpec != "" {
		if _, err := s.cron.AddFunc(s.importSpec, s.importFeeds); err != nil {
			return fmt.Errorf("add import job (spec = %s): %w", s.importSpec, err)
		}
	}

	s.cron.Start()

	return nil
}

// Stop stops scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) DigestSpec() string {
	return s.digestSpec
}

func (s *Scheduler) sendWeeklyDigest() {
	ctx, cancel := context.WithTimeout(s.ctx, digestTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	start := time.Now()

	if err := s.digester.SendWeeklyDigest(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to send weekly digest",
			"error", err,
			"spec", s.digestSpec,
			"durationMs", time.Since(start).Milliseconds())

		s.alert(ctx, "Weekly digest failed: "+err.Error())

		return
	}

	s.log.InfoContext(ctx, "Weekly digest job is done",
		"spec", s.digestSpec,
		"durationMs", time.Since(start).Milliseconds())
}

func (s *Scheduler) importFeeds() {
	ctx, cancel := context.WithTimeout(s.ctx, importTimeout)
	defer cancel()

	if ctx.Err() != nil {
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	}

	if err := s.importer.Import(ctx); err != nil {
		s.log.ErrorContext(ctx, "Failed to import feeds",
			"error", err,
			"spec", s.importSpec)

		s.alert(ctx, "Feed import failed: "+err.Error())
	}
}

// alert outlives the job context, which is already done when a job timed out.
func (s *Scheduler) alert(ctx context.Context, text string) {
	if s.alerter == nil {
		return
	}

	alertCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
	defer cancel()

	s.alerter.Alert(alertCtx, text)
}

type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("Cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("Cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
