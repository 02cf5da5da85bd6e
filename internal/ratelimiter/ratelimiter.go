package ratelimiter

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"newspaper/internal/mailer"
)

var ErrStopped = errors.New("rate limiter is stopped")

type request struct {
	ctx      context.Context
	message  mailer.Message
	response chan error
}

// RateLimiter serializes outbound mail and keeps a minimum interval between
// messages addressed to the same recipient domain.
type RateLimiter struct {
	provider mailer.Provider
	interval time.Duration
	queue    chan request
	lastSent map[string]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	log      *slog.Logger
}

func New(provider mailer.Provider, interval time.Duration, log *slog.Logger) *RateLimiter {
	if interval <= 0 {
		interval = defaultDomainInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		provider: provider,
		interval: interval,
		queue:    make(chan request, queueSize),
		lastSent: make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		log:      log,
	}

	go rl.processQueue()

	return rl
}

func (rl *RateLimiter) Send(ctx context.Context, message mailer.Message) error {
	if rl.ctx.Err() != nil {
		return ErrStopped
	}

	req := request{
		ctx:      ctx,
		message:  message,
		response: make(chan error, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.ctx.Done():
		return ErrStopped
	}

	select {
	case err := <-req.response:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.done:
		return ErrStopped
	}
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.done
}

func (rl *RateLimiter) processQueue() {
	defer close(rl.done)

	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- ErrStopped
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := req.ctx.Err(); err != nil {
		req.response <- err
		return
	}

	domain := req.message.Domain()

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[domain]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(rl.interval, lastSent)

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting email",
				"domain", domain,
				"delay", delay,
				"queueLen", len(rl.queue))

			select {
			case <-time.After(delay):
			case <-req.ctx.Done():
				req.response <- req.ctx.Err()
				return
			case <-rl.ctx.Done():
				req.response <- ErrStopped
				return
			}
		}
	}

	err := rl.provider.Send(req.ctx, req.message)

	rl.mu.Lock()
	rl.lastSent[domain] = time.Now()
	rl.mu.Unlock()

	req.response <- err
}

func getDelay(interval time.Duration, lastSent time.Time) time.Duration {
	elapsed := time.Since(lastSent)

	return max(interval-elapsed, 0)
}
