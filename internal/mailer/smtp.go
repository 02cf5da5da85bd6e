package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/wneessen/go-mail"
)

const (
	smtpTimeout    = 30 * time.Second
	retryDelay     = time.Second
	retryMaxDelay  = 2 * time.Minute
	retryMaxJitter = 10 * time.Second
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	SSL      bool
	From     string
	Attempts uint
}

// SMTPProvider sends multipart (plaintext + HTML) messages over SMTP.
type SMTPProvider struct {
	client   *mail.Client
	from     string
	attempts uint
	log      *slog.Logger
}

func NewSMTPProvider(cfg SMTPConfig, log *slog.Logger) (*SMTPProvider, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, errors.New("SMTP host is empty")
	}

	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, errors.New("from address is empty")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(smtpTimeout),
	}

	if cfg.SSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create SMTP client: %w", err)
	}

	return &SMTPProvider{
		client:   client,
		from:     from,
		attempts: max(cfg.Attempts, 1),
		log:      log,
	}, nil
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	m, err := p.buildMessage(msg)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			start := time.Now()

			if sendErr := p.client.DialAndSendWithContext(ctx, m); sendErr != nil {
				p.log.WarnContext(ctx, "SMTP send failed",
					"error", sendErr,
					"to", msg.To,
					"durationMs", time.Since(start).Milliseconds())

				return sendErr
			}

			p.log.DebugContext(ctx, "SMTP send completed",
				"to", msg.To,
				"subject", msg.Subject,
				"durationMs", time.Since(start).Milliseconds())

			return nil
		},
		retry.Attempts(p.attempts),
		retry.Delay(retryDelay),
		retry.MaxDelay(retryMaxDelay),
		retry.MaxJitter(retryMaxJitter),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			p.log.InfoContext(ctx, "Retrying email send after error",
				"attempt", n,
				"error", err,
				"to", msg.To)
		}),
	)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}

	return nil
}

func (p *SMTPProvider) buildMessage(msg Message) (*mail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	m := mail.NewMsg()

	if err := m.From(p.from); err != nil {
		return nil, fmt.Errorf("set from address: %w", err)
	}

	if err := m.To(strings.TrimSpace(msg.To)); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}

	m.Subject(msg.Subject)

	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	case msg.HTML != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.Text)
	}

	return m, nil
}
