// Package mailer delivers notification emails through a pluggable provider.
package mailer

import (
	"context"
	"errors"
	"strings"
)

// Message is a single outbound email with an HTML body and a plaintext fallback.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Provider sends one message to one recipient.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return errors.New("recipient is empty")
	}

	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("subject is empty")
	}

	if m.HTML == "" && m.Text == "" {
		return errors.New("body is empty")
	}

	return nil
}

// Domain returns the lower-cased domain part of the recipient address.
func (m Message) Domain() string {
	to := strings.TrimSpace(m.To)

	at := strings.LastIndexByte(to, '@')
	if at < 0 || at == len(to)-1 {
		return ""
	}

	return strings.ToLower(strings.TrimSuffix(to[at+1:], ">"))
}
