// Package render builds notification and digest emails from posts.
package render

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"newspaper/internal/domain"
	"newspaper/internal/mailer"
	"newspaper/internal/summarizer"

	"mvdan.cc/xurls/v2"
)

const (
	DigestSubject       = "Weekly News Update"
	postSubjectPrefix   = "New post: "
	teaserFallbackRunes = 50
	teaserTimeout       = 30 * time.Second
)

//go:embed templates/*.html
var templatesFS embed.FS

type Renderer struct {
	tmpl       *template.Template
	urlRe      *regexp.Regexp
	summarizer summarizer.Summarizer
	siteURL    string
	log        *slog.Logger
}

type postView struct {
	Post    *domain.Post
	Teaser  string
	Content template.HTML
	URL     string
}

type digestItem struct {
	Title     string
	Author    string
	CreatedAt time.Time
	Teaser    string
	URL       string
}

type digestView struct {
	Username string
	Items    []digestItem
	SiteURL  string
}

// New parses the embedded templates. s may be nil, in which case teasers
// are cut from the post content.
func New(s summarizer.Summarizer, siteURL string, log *slog.Logger) (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	urlRe, err := xurls.StrictMatchingScheme("https?://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	return &Renderer{
		tmpl:       tmpl,
		urlRe:      urlRe,
		summarizer: s,
		siteURL:    strings.TrimRight(strings.TrimSpace(siteURL), "/"),
		log:        log,
	}, nil
}

// PostNotification renders the email sent to subscribers of a post's categories.
// The returned message has no recipient.
func (r *Renderer) PostNotification(ctx context.Context, post *domain.Post) (mailer.Message, error) {
	view := postView{
		Post:    post,
		Teaser:  r.teaser(ctx, post),
		Content: r.linkify(post.Content),
		URL:     r.PostURL(post.ID),
	}

	return r.execute("post.html", postSubjectPrefix+post.Title, view)
}

// WeeklyDigest renders one batched email listing posts for a user.
func (r *Renderer) WeeklyDigest(
	ctx context.Context,
	user domain.User,
	posts []domain.Post,
) (mailer.Message, error) {
	view := digestView{
		Username: user.Username,
		Items:    make([]digestItem, 0, len(posts)),
		SiteURL:  r.siteURL,
	}

	for i := range posts {
		post := &posts[i]

		view.Items = append(view.Items, digestItem{
			Title:     post.Title,
			Author:    post.Author.Username,
			CreatedAt: post.CreatedAt,
			Teaser:    r.teaser(ctx, post),
			URL:       r.PostURL(post.ID),
		})
	}

	msg, err := r.execute("digest.html", DigestSubject, view)
	if err != nil {
		return mailer.Message{}, err
	}

	msg.To = user.Email

	return msg, nil
}

func (r *Renderer) PostURL(postID int64) string {
	return r.siteURL + "/news/" + strconv.FormatInt(postID, 10)
}

func (r *Renderer) execute(name, subject string, data any) (mailer.Message, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return mailer.Message{}, fmt.Errorf("execute template %s: %w", name, err)
	}

	html := buf.String()

	text, err := PlainText(html)
	if err != nil {
		return mailer.Message{}, fmt.Errorf("convert to plain text: %w", err)
	}

	return mailer.Message{
		Subject: subject,
		HTML:    html,
		Text:    text,
	}, nil
}

func (r *Renderer) teaser(ctx context.Context, post *domain.Post) string {
	if r.summarizer != nil && strings.TrimSpace(post.Content) != "" {
		summarizeCtx, cancel := context.WithTimeout(ctx, teaserTimeout)
		defer cancel()

		summary, err := r.summarizer.Summarize(summarizeCtx, summarizer.Input{
			Title: post.Title,
			Text:  post.Content,
		})
		if err == nil {
			return summary
		}

		r.log.WarnContext(ctx, "Failed to summarize post so fallback will be used",
			"error", err,
			"postID", post.ID)
	}

	return truncate(post.Content, teaserFallbackRunes)
}

// linkify escapes plain text content, turns http(s) URLs into anchors and
// keeps line breaks.
func (r *Renderer) linkify(content string) template.HTML {
	content = strings.TrimSpace(content)

	var b strings.Builder
	last := 0

	for _, loc := range r.urlRe.FindAllStringIndex(content, -1) {
		b.WriteString(template.HTMLEscapeString(content[last:loc[0]]))

		u := template.HTMLEscapeString(content[loc[0]:loc[1]])
		b.WriteString(`<a href="`)
		b.WriteString(u)
		b.WriteString(`">`)
		b.WriteString(u)
		b.WriteString(`</a>`)

		last = loc[1]
	}
	b.WriteString(template.HTMLEscapeString(content[last:]))

	return template.HTML(strings.ReplaceAll(b.String(), "\n", "<br>\n")) //nolint:gosec // Escaped above.
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return strings.TrimSpace(string(runes[:limit])) + "…"
}
