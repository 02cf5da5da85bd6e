// Package importer pulls syndicated RSS/Atom items into the site as posts.
// Imported posts are saved through the publishing service, so subscribers of
// the import category are notified like for any other post.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"time"

	"newspaper/internal/database"
	"newspaper/internal/domain"
	"newspaper/internal/publish"
	"newspaper/internal/render"

	"github.com/mmcdole/gofeed"
)

const (
	DefaultMaxItemAge = 7 * 24 * time.Hour

	httpClientTimeout               = 20 * time.Second
	fetchMaxConcurrencyGrowthFactor = 4
)

type Store interface {
	CreateCategory(ctx context.Context, name string) (int64, error)
	GetImportedPostID(ctx context.Context, feedURL, guid string) (int64, bool, error)
}

type Publisher interface {
	Create(ctx context.Context, authorID int64, draft publish.Draft) (int64, error)
}

type Options struct {
	Feeds      []string
	Category   string
	AuthorID   int64
	MaxItemAge time.Duration
}

type Importer struct {
	store      Store
	publisher  Publisher
	parser     *gofeed.Parser
	feeds      []string
	category   string
	authorID   int64
	maxItemAge time.Duration
	now        func() time.Time
	log        *slog.Logger
}

func New(store Store, publisher Publisher, opts Options, log *slog.Logger) *Importer {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: httpClientTimeout}

	maxItemAge := opts.MaxItemAge
	if maxItemAge <= 0 {
		maxItemAge = DefaultMaxItemAge
	}

	var feeds []string
	for _, f := range opts.Feeds {
		if f = strings.TrimSpace(f); f != "" {
			feeds = append(feeds, f)
		}
	}

	return &Importer{
		store:      store,
		publisher:  publisher,
		parser:     parser,
		feeds:      feeds,
		category:   strings.TrimSpace(opts.Category),
		authorID:   opts.AuthorID,
		maxItemAge: maxItemAge,
		now:        time.Now,
		log:        log,
	}
}

func (i *Importer) Enabled() bool {
	return len(i.feeds) != 0 && i.category != "" && i.authorID != 0
}

// Import fetches all feeds and creates posts for items not seen before.
func (i *Importer) Import(ctx context.Context) error {
	if !i.Enabled() {
		return nil
	}

	categoryID, err := i.store.CreateCategory(ctx, i.category)
	if err != nil {
		return fmt.Errorf("ensure category: %w", err)
	}

	items, fetchErr := i.fetchFeeds(ctx)

	cutoff := i.now().Add(-i.maxItemAge)
	imported := 0
	errs := []error{fetchErr}

	for _, item := range items {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}

		if item.Published.Before(cutoff) {
			continue
		}

		ok, importErr := i.importItem(ctx, categoryID, item)
		if importErr != nil {
			errs = append(errs, fmt.Errorf("import item (feed = %s, guid = %s): %w",
				item.FeedURL, item.GUID, importErr))
			continue
		}

		if ok {
			imported++
		}
	}

	i.log.InfoContext(ctx, "Feeds are imported",
		"feedCount", len(i.feeds),
		"itemCount", len(items),
		"importedCount", imported,
		"category", i.category)

	return errors.Join(errs...)
}

func (i *Importer) importItem(ctx context.Context, categoryID int64, item domain.ImportedItem) (bool, error) {
	if _, ok, err := i.store.GetImportedPostID(ctx, item.FeedURL, item.GUID); err != nil {
		return false, fmt.Errorf("get imported post: %w", err)
	} else if ok {
		return false, nil
	}

	content := item.Content
	if item.Link != "" {
		content = strings.TrimSpace(content + "\n\nSource: " + item.Link)
	}

	_, err := i.publisher.Create(ctx, i.authorID, publish.Draft{
		Title:       item.Title,
		Content:     content,
		Type:        domain.PostTypeNews,
		CategoryIDs: []int64{categoryID},
		CreatedAt:   item.Published,
		Source:      &publish.Source{FeedURL: item.FeedURL, GUID: item.GUID},
	})
	if errors.Is(err, database.ErrAlreadyImported) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create post: %w", err)
	}

	return true, nil
}

func (i *Importer) fetchFeeds(ctx context.Context) ([]domain.ImportedItem, error) {
	var wg sync.WaitGroup

	concurrency := max(min(runtime.NumCPU()*fetchMaxConcurrencyGrowthFactor, len(i.feeds)), 1)
	semCh := make(chan struct{}, concurrency)

	var (
		mu    sync.Mutex
		items []domain.ImportedItem
		errs  []error
	)

	for _, feedURL := range i.feeds {
		wg.Add(1)
		semCh <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-semCh }()

			feed, err := i.parser.ParseURLWithContext(feedURL, ctx)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				errs = append(errs, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err))
				return
			}

			items = append(items, i.itemsFromFeed(ctx, feedURL, feed)...)
		}()
	}

	wg.Wait()

	return items, errors.Join(errs...)
}

func (i *Importer) itemsFromFeed(ctx context.Context, feedURL string, feed *gofeed.Feed) []domain.ImportedItem {
	items := make([]domain.ImportedItem, 0, len(feed.Items))

	for _, it := range feed.Items {
		if it == nil {
			continue
		}

		guid := strings.TrimSpace(it.GUID)
		if guid == "" {
			guid = strings.TrimSpace(it.Link)
		}

		title := strings.TrimSpace(it.Title)
		if guid == "" || title == "" {
			i.log.WarnContext(ctx, "Skipping feed item without GUID or title",
				"feedURL", feedURL,
				"link", it.Link)

			continue
		}

		body := it.Content
		if strings.TrimSpace(body) == "" {
			body = it.Description
		}

		text, err := render.PlainText(body)
		if err != nil {
			i.log.WarnContext(ctx, "Failed to convert feed item to plain text",
				"error", err,
				"feedURL", feedURL,
				"guid", guid)

			text = body
		}

		now := i.now()
		published := now
		switch {
		case it.PublishedParsed != nil:
			published = *it.PublishedParsed
		case it.UpdatedParsed != nil:
			published = *it.UpdatedParsed
		}

		// Publish dates are clamped to the import time.
		if published.After(now) {
			published = now
		}

		items = append(items, domain.ImportedItem{
			FeedURL:   feedURL,
			GUID:      guid,
			Title:     title,
			Content:   text,
			Link:      strings.TrimSpace(it.Link),
			Published: published.UTC(),
		})
	}

	return items
}
