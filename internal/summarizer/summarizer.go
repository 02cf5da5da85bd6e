package summarizer

import (
	"context"
)

// Input describes the payload for a teaser request.
type Input struct {
	// Title is the post headline.
	Title string
	// Text contains the post body as plain text.
	Text string
}

// Summarizer produces a one-line teaser for a post.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
