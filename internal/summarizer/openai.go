package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	teaserModel = openai.ChatModelGPT5Mini2025_08_07

	// Reasoning tokens count against the budget, so a one-sentence teaser
	// still needs some headroom.
	teaserMaxOutputTokens      int64 = 256
	teaserMaxOutputTokensLimit int64 = 1024

	maxInputRunes  = 6000
	maxTeaserRunes = 280

	systemPrompt = `Write a teaser for the news post in one short sentence.

Rules:
- ≤25 words (hard limit 40).
- Keep the key fact and critical context (dates, numbers, names).
- Do not repeat the headline verbatim.
- Neutral tone, no emojis, no hashtags, no links.
- Output exactly one line in the same language as the input, without a label or quotes.`
)

var errEmptyTeaser = errors.New("teaser is empty")

// OpenAISummarizer writes email teasers with OpenAI's Responses API.
type OpenAISummarizer struct {
	client openai.Client
}

func NewOpenAISummarizer(apiKey string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
	}, nil
}

// Summarize returns a single-line teaser. An answer cut off by the output
// budget is retried with a doubled budget up to the limit.
func (s *OpenAISummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	prompt, err := teaserPrompt(input)
	if err != nil {
		return "", err
	}

	budget := teaserMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, teaserParams(prompt, budget))
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && budget < teaserMaxOutputTokensLimit {
				budget = min(budget*2, teaserMaxOutputTokensLimit)
				continue
			}

			return "", fmt.Errorf("response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason, budget)
		}

		teaser := cleanTeaser(resp.OutputText())
		if teaser == "" {
			return "", fmt.Errorf("%w (status = %s)", errEmptyTeaser, resp.Status)
		}

		return teaser, nil
	}
}

func teaserParams(prompt string, maxOutputTokens int64) responses.ResponseNewParams {
	return responses.ResponseNewParams{
		Model:           teaserModel,
		ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Reasoning: responses.ReasoningParam{
			Effort: openai.ReasoningEffortLow,
		},
		Instructions: openai.String(systemPrompt),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
}

// teaserPrompt joins the headline and the body. Long bodies are cut, the
// opening paragraphs carry the news.
func teaserPrompt(input Input) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	if utf8.RuneCountInString(text) > maxInputRunes {
		text = string([]rune(text)[:maxInputRunes]) + "…"
	}

	var b strings.Builder
	if title := strings.TrimSpace(input.Title); title != "" {
		b.WriteString("Headline: ")
		b.WriteString(title)
		b.WriteString("\n\n")
	}
	b.WriteString("Post:\n")
	b.WriteString(text)

	return b.String(), nil
}

// cleanTeaser keeps the first non-empty line without labels or wrapping quotes.
func cleanTeaser(output string) string {
	var line string
	for l := range strings.SplitSeq(output, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	if label, rest, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(label), "teaser") {
		line = strings.TrimSpace(rest)
	}

	line = strings.TrimSpace(strings.Trim(line, `"'“”«»`))

	if utf8.RuneCountInString(line) > maxTeaserRunes {
		line = strings.TrimSpace(string([]rune(line)[:maxTeaserRunes])) + "…"
	}

	return line
}
