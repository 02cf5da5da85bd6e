package mailer

import (
	"context"
	"log/slog"
)

// LogProvider logs messages instead of sending them.
type LogProvider struct {
	log *slog.Logger
}

func NewLogProvider(log *slog.Logger) *LogProvider {
	return &LogProvider{log: log}
}

func (p *LogProvider) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	p.log.InfoContext(ctx, "Mock email",
		"to", msg.To,
		"subject", msg.Subject,
		"htmlLength", len(msg.HTML),
		"textLength", len(msg.Text))

	return nil
}
