package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"newspaper/internal/alert"
	"newspaper/internal/config"
	"newspaper/internal/database"
	"newspaper/internal/importer"
	"newspaper/internal/mailer"
	"newspaper/internal/notify"
	"newspaper/internal/publish"
	"newspaper/internal/ratelimiter"
	"newspaper/internal/render"
	"newspaper/internal/summarizer"
	"newspaper/internal/tasks"
)

// app holds the components shared by all commands.
type app struct {
	cfg      config.Config
	db       *database.Database
	limiter  *ratelimiter.RateLimiter
	notifier *notify.Notifier
	queue    *tasks.Queue
	publish  *publish.Service
	importer *importer.Importer
	alerter  *alert.Telegram
	log      *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		return nil, fmt.Errorf("initialize db (path = %s): %w", cfg.DBPath, err)
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	provider, err := initMailProvider(ctx, cfg, log)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	limiter := ratelimiter.New(provider, cfg.MailDomainGap, log)

	renderer, err := render.New(initSummarizer(ctx, cfg, log), cfg.SiteURL, log)
	if err != nil {
		limiter.Stop()
		return nil, errors.Join(fmt.Errorf("initialize renderer: %w", err), db.Close())
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		limiter: limiter,
		alerter: initAlerter(ctx, cfg, log),
		log:     log,
	}

	a.notifier = notify.New(db, renderer, limiter, notify.Options{Dedupe: cfg.NotifyDedupe}, log)

	a.queue = tasks.New(tasks.Options{
		Workers:   cfg.TaskWorkers,
		QueueSize: cfg.TaskQueueSize,
		Timeout:   cfg.TaskTimeout,
		OnFailure: a.taskFailed,
	}, log)
	a.queue.Register(tasks.NotifySubscribers, a.notifier.NotifySubscribers)

	a.publish = publish.New(db, a.queue, log)

	a.importer = importer.New(db, a.publish, importer.Options{
		Feeds:    cfg.ImportFeeds,
		Category: cfg.ImportCategory,
		AuthorID: cfg.ImportAuthorID,
	}, log)

	return a, nil
}

func (a *app) close(ctx context.Context) {
	a.queue.Stop()
	a.limiter.Stop()

	if err := a.db.Close(); err != nil {
		a.log.ErrorContext(ctx, "Failed to close db",
			"error", err,
			"dbPath", a.cfg.DBPath)
	}
}

func (a *app) taskFailed(ctx context.Context, task tasks.Task, err error) {
	a.alerter.Alert(ctx, fmt.Sprintf("Task %s (id = %s, arg = %d) failed: %v",
		task.Name, task.ID, task.Arg, err))
}

func initMailProvider(ctx context.Context, cfg config.Config, log *slog.Logger) (mailer.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailTransport)) {
	case "log":
		log.WarnContext(ctx, "Log mail transport is used so emails are not delivered",
			"envVar", "MAIL_TRANSPORT")

		return mailer.NewLogProvider(log), nil
	case "", "smtp":
		p, err := mailer.NewSMTPProvider(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			SSL:      cfg.SMTPSSL,
			From:     cfg.MailFrom,
			Attempts: cfg.MailRetryAttempts,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("initialize SMTP provider: %w", err)
		}

		log.InfoContext(ctx, "SMTP provider is initialized",
			"host", cfg.SMTPHost,
			"port", cfg.SMTPPort,
			"ssl", cfg.SMTPSSL)

		return p, nil
	default:
		return nil, fmt.Errorf("unknown mail transport %q", cfg.MailTransport)
	}
}

func initSummarizer(ctx context.Context, cfg config.Config, log *slog.Logger) summarizer.Summarizer {
	apiKey := strings.TrimSpace(cfg.OpenAIAPIKey)
	if apiKey == "" {
		log.WarnContext(ctx, "OPENAI_API_KEY is missing so fallback will be used",
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	s, err := summarizer.NewOpenAISummarizer(apiKey)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create OpenAI summarizer so fallback will be used",
			"error", err,
			"envVar", "OPENAI_API_KEY")

		return nil
	}

	log.InfoContext(ctx, "OpenAI summarizer is initialized",
		"provider", "openai")

	return summarizer.NewCached(s, summarizer.DefaultCacheMaxEntries, summarizer.DefaultCacheTTL)
}

func initAlerter(ctx context.Context, cfg config.Config, log *slog.Logger) *alert.Telegram {
	alerter, err := alert.NewTelegram(cfg.TelegramToken, cfg.TelegramAdminChatID, log)
	if errors.Is(err, alert.ErrNotConfigured) {
		log.InfoContext(ctx, "Telegram alerts are disabled",
			"envVar", "TELEGRAM_TOKEN")

		return nil
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to create Telegram alerter so alerts are disabled",
			"error", err)

		return nil
	}

	log.InfoContext(ctx, "Telegram alerter is initialized",
		"chatID", cfg.TelegramAdminChatID)

	return alerter
}
