package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/v3/option"
)

func TestCleanTeaser(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{name: "plain", output: "The bridge opens on Friday.", want: "The bridge opens on Friday."},
		{name: "first line", output: "\n  First line.\nSecond line.", want: "First line."},
		{name: "label", output: "Teaser: Rates stay at 5%.", want: "Rates stay at 5%."},
		{name: "quotes", output: `"Storm moves east."`, want: "Storm moves east."},
		{name: "guillemets", output: "«Мост откроют в пятницу.»", want: "Мост откроют в пятницу."},
		{name: "inner colon kept", output: "Update: the vote is delayed.", want: "Update: the vote is delayed."},
		{name: "empty", output: " \n ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanTeaser(tt.output); got != tt.want {
				t.Fatalf("cleanTeaser(%q) = %q, want %q", tt.output, got, tt.want)
			}
		})
	}
}

func TestCleanTeaserLimitsLength(t *testing.T) {
	got := cleanTeaser(strings.Repeat("я", maxTeaserRunes+10))

	if n := len([]rune(got)); n != maxTeaserRunes+1 || !strings.HasSuffix(got, "…") {
		t.Fatalf("expected %d runes with ellipsis, got %d", maxTeaserRunes+1, n)
	}
}

func TestTeaserPrompt(t *testing.T) {
	prompt, err := teaserPrompt(Input{Title: " Bridge opens ", Text: " Traffic resumes. "})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}

	if want := "Headline: Bridge opens\n\nPost:\nTraffic resumes."; prompt != want {
		t.Fatalf("unexpected prompt: %q", prompt)
	}

	long, err := teaserPrompt(Input{Text: strings.Repeat("a", maxInputRunes+100)})
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if !strings.HasSuffix(long, "…") || len([]rune(long)) != len("Post:\n")+maxInputRunes+1 {
		t.Fatalf("expected body to be cut to %d runes", maxInputRunes)
	}

	if _, err = teaserPrompt(Input{Title: "Only title"}); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestSummarizeRaisesBudgetWhenIncomplete(t *testing.T) {
	var (
		mu      sync.Mutex
		budgets []float64
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		budgets = append(budgets, body["max_output_tokens"].(float64))
		first := len(budgets) == 1
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")

		if first {
			_, _ = w.Write([]byte(`{"id":"resp_1","object":"response","status":"incomplete",` +
				`"incomplete_details":{"reason":"max_output_tokens"},"output":[]}`))
			return
		}

		_, _ = w.Write([]byte(`{"id":"resp_2","object":"response","status":"completed","output":[` +
			`{"type":"message","id":"msg_1","role":"assistant","status":"completed","content":[` +
			`{"type":"output_text","text":"Teaser: \"The bridge reopens on Friday.\"\nExtra","annotations":[]}]}]}`))
	}))
	defer server.Close()

	s, err := NewOpenAISummarizer("test-key", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("create summarizer: %v", err)
	}

	got, err := s.Summarize(context.Background(), Input{Title: "Bridge", Text: "The bridge reopens on Friday."})
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if got != "The bridge reopens on Friday." {
		t.Fatalf("unexpected teaser: %q", got)
	}

	mu.Lock()
	defer mu.Unlock()

	if len(budgets) != 2 || budgets[0] != float64(teaserMaxOutputTokens) || budgets[1] != float64(2*teaserMaxOutputTokens) {
		t.Fatalf("unexpected output budgets: %v", budgets)
	}
}

func TestSummarizeRejectsEmptyOutput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"resp_1","object":"response","status":"completed","output":[]}`))
	}))
	defer server.Close()

	s, err := NewOpenAISummarizer("test-key", option.WithBaseURL(server.URL+"/"), option.WithMaxRetries(0))
	if err != nil {
		t.Fatalf("create summarizer: %v", err)
	}

	if _, err = s.Summarize(context.Background(), Input{Text: "Body"}); !errors.Is(err, errEmptyTeaser) {
		t.Fatalf("expected errEmptyTeaser, got %v", err)
	}
}
