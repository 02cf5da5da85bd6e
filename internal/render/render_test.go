package render

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"newspaper/internal/domain"
	"newspaper/internal/summarizer"
)

type stubSummarizer struct {
	summary string
	err     error
}

func (s *stubSummarizer) Summarize(_ context.Context, _ summarizer.Input) (string, error) {
	return s.summary, s.err
}

func newTestRenderer(t *testing.T, s summarizer.Summarizer) *Renderer {
	t.Helper()

	r, err := New(s, "https://news.example/", slog.Default())
	if err != nil {
		t.Fatalf("create renderer: %v", err)
	}
	return r
}

func testPost() *domain.Post {
	return &domain.Post{
		ID:        7,
		Author:    domain.User{Username: "konstantin"},
		Type:      domain.PostTypeNews,
		Title:     "Bridge <reopened>",
		Content:   "The bridge reopened today after repairs.\nDetails: https://city.example/bridge",
		CreatedAt: time.Date(2026, 10, 14, 12, 30, 0, 0, time.UTC),
		Categories: []domain.Category{
			{ID: 1, Name: "City"},
		},
	}
}

func TestPostNotification(t *testing.T) {
	r := newTestRenderer(t, nil)

	msg, err := r.PostNotification(context.Background(), testPost())
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if msg.Subject != "New post: Bridge <reopened>" {
		t.Fatalf("unexpected subject: %q", msg.Subject)
	}

	if msg.To != "" {
		t.Fatalf("expected no recipient, got %q", msg.To)
	}

	if !strings.Contains(msg.HTML, "Bridge &lt;reopened&gt;") {
		t.Fatalf("expected escaped title in HTML")
	}

	if !strings.Contains(msg.HTML, `<a href="https://city.example/bridge">https://city.example/bridge</a>`) {
		t.Fatalf("expected content URL to be linkified, got:\n%s", msg.HTML)
	}

	if !strings.Contains(msg.HTML, "https://news.example/news/7") {
		t.Fatalf("expected post URL in HTML")
	}

	if strings.Contains(msg.Text, "<h1>") || strings.Contains(msg.Text, "<a ") {
		t.Fatalf("expected no markup in plain text, got:\n%s", msg.Text)
	}

	if !strings.Contains(msg.Text, "konstantin") {
		t.Fatalf("expected author in plain text, got:\n%s", msg.Text)
	}

	if !strings.Contains(msg.Text, "Read on the site (https://news.example/news/7)") {
		t.Fatalf("expected link target in plain text, got:\n%s", msg.Text)
	}
}

func TestTeaserUsesSummarizer(t *testing.T) {
	r := newTestRenderer(t, &stubSummarizer{summary: "Bridge is open again."})

	if got := r.teaser(context.Background(), testPost()); got != "Bridge is open again." {
		t.Fatalf("unexpected teaser: %q", got)
	}
}

func TestTeaserFallsBackOnError(t *testing.T) {
	r := newTestRenderer(t, &stubSummarizer{err: errors.New("quota")})

	got := r.teaser(context.Background(), testPost())
	if !strings.HasPrefix(got, "The bridge reopened today") || !strings.HasSuffix(got, "…") {
		t.Fatalf("unexpected fallback teaser: %q", got)
	}
}

func TestWeeklyDigest(t *testing.T) {
	r := newTestRenderer(t, nil)

	first := testPost()
	second := testPost()
	second.ID = 8
	second.Title = "Second story"

	msg, err := r.WeeklyDigest(context.Background(), domain.User{
		Username: "reader",
		Email:    "reader@example.com",
	}, []domain.Post{*first, *second})
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	if msg.Subject != DigestSubject || msg.To != "reader@example.com" {
		t.Fatalf("unexpected header: %q to %q", msg.Subject, msg.To)
	}

	for _, want := range []string{"Hello, reader!", "https://news.example/news/7", "https://news.example/news/8", "Second story"} {
		if !strings.Contains(msg.HTML, want) {
			t.Fatalf("expected %q in HTML", want)
		}
	}
}

func TestPlainText(t *testing.T) {
	html := `<html><head><title>t</title><style>p{}</style></head><body>
<h1>Title</h1>
<p>First<br>second</p>
<p><a href="https://a.example">A link</a> and <a href="https://b.example">https://b.example</a></p>
</body></html>`

	got, err := PlainText(html)
	if err != nil {
		t.Fatalf("plain text: %v", err)
	}

	want := "Title\n\nFirst\nsecond\n\nA link (https://a.example) and https://b.example"
	if got != want {
		t.Fatalf("unexpected plain text:\n%q\nwant:\n%q", got, want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"short", "hello  world", 50, "hello world"},
		{"cut", "abcdef", 3, "abc…"},
		{"runes", "привет мир", 6, "привет…"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := truncate(test.in, test.limit); got != test.want {
				t.Errorf("truncate() = %q, want %q", got, test.want)
			}
		})
	}
}
