package summarizer

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCacheMaxEntries = 1024
	DefaultCacheTTL        = 8 * 24 * time.Hour
)

// Cached memoizes teasers of an underlying Summarizer in a bounded LRU with expiry.
// Digest runs render the same post for many users, so repeated calls are common.
type Cached struct {
	next       Summarizer
	ttl        time.Duration
	now        func() time.Time
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List
	maxEntries int
}

type cacheEntry struct {
	key       string
	summary   string
	expiresAt time.Time
}

func NewCached(next Summarizer, maxEntries int, ttl time.Duration) *Cached {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}

	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Cached{
		next:       next,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[string]*list.Element, maxEntries),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

func (c *Cached) Summarize(ctx context.Context, input Input) (string, error) {
	key := cacheKey(input)
	now := c.now()

	if summary, ok := c.get(key, now); ok {
		return summary, nil
	}

	summary, err := c.next.Summarize(ctx, input)
	if err != nil {
		return "", err
	}

	c.set(key, summary, now.Add(c.ttl), now)

	return summary, nil
}

func cacheKey(input Input) string {
	title := strings.TrimSpace(input.Title)
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(title + "\x00" + text))

	return hex.EncodeToString(sum[:])
}

func (c *Cached) get(key string, now time.Time) (string, bool) {
	if key == "" {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return "", false
	}

	entry, ok := elem.Value.(*cacheEntry)
	if !ok {
		return "", false
	}

	if now.After(entry.expiresAt) {
		c.removeElement(elem)

		return "", false
	}

	c.order.MoveToFront(elem)

	return entry.summary, true
}

func (c *Cached) set(key, summary string, expiresAt, now time.Time) {
	if key == "" || summary == "" || !expiresAt.After(now) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry, castOk := elem.Value.(*cacheEntry)
		if !castOk {
			return
		}

		entry.summary = summary
		entry.expiresAt = expiresAt
		c.order.MoveToFront(elem)

		return
	}

	elem := c.order.PushFront(&cacheEntry{
		key:       key,
		summary:   summary,
		expiresAt: expiresAt,
	})
	c.entries[key] = elem

	c.evictExpiredLocked(now)
	c.enforceSizeLimitLocked()
}

func (c *Cached) evictExpiredLocked(now time.Time) {
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()

		if entry, ok := elem.Value.(*cacheEntry); ok && now.After(entry.expiresAt) {
			c.removeElement(elem)
		}
		elem = prev
	}
}

func (c *Cached) enforceSizeLimitLocked() {
	for len(c.entries) > c.maxEntries {
		elem := c.order.Back()
		if elem == nil {
			return
		}
		c.removeElement(elem)
	}
}

func (c *Cached) removeElement(elem *list.Element) {
	entry, ok := elem.Value.(*cacheEntry)
	if !ok {
		return
	}

	delete(c.entries, entry.key)
	c.order.Remove(elem)
}
