package alert

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "digest failed", want: "digest failed"},
		{name: "special", input: "task (id=1) failed.", want: `task \(id\=1\) failed\.`},
		{name: "backslash", input: `a\b`, want: `a\\b`},
		{name: "unicode", input: "ошибка_1", want: `ошибка\_1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeMarkdownV2(tt.input); got != tt.want {
				t.Fatalf("escapeMarkdownV2(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("привет", 3); got != "при" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateRunes("short", 10); got != "short" {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := truncateRunes("text", 0); got != "" {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestFormatAlert(t *testing.T) {
	got := formatAlert("  weekly digest failed: smtp.example.com unreachable ")
	want := "*Newspaper alert*\n\nweekly digest failed: smtp\\.example\\.com unreachable"

	if got != want {
		t.Fatalf("formatAlert() = %q, want %q", got, want)
	}
}

func TestNewTelegramRequiresConfig(t *testing.T) {
	if _, err := NewTelegram("", 1, slog.Default()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for empty token, got %v", err)
	}
	if _, err := NewTelegram("token", 0, slog.Default()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured for empty chat, got %v", err)
	}
}

func TestAlertSendsMessage(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		texts []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseMultipartForm(1 << 20)

		mu.Lock()
		paths = append(paths, r.URL.Path)
		texts = append(texts, r.FormValue("text"))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`))
	}))
	defer server.Close()

	alerter, err := NewTelegram("123:abc", 42, slog.Default(), bot.WithServerURL(server.URL))
	if err != nil {
		t.Fatalf("create alerter: %v", err)
	}

	alerter.Alert(context.Background(), "task failed")

	mu.Lock()
	defer mu.Unlock()

	if len(paths) != 1 || !strings.HasSuffix(paths[0], "/sendMessage") {
		t.Fatalf("expected one sendMessage call, got %v", paths)
	}
	if !strings.Contains(texts[0], "task failed") {
		t.Fatalf("unexpected message text: %q", texts[0])
	}
}

func TestNilAlerterIsNoop(t *testing.T) {
	var alerter *Telegram
	alerter.Alert(context.Background(), "ignored")
}
