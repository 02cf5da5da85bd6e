// Package notify fans out post notifications to category subscribers and
// builds the weekly digest.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"newspaper/internal/database"
	"newspaper/internal/domain"
	"newspaper/internal/mailer"
)

const DigestWindow = 7 * 24 * time.Hour

type Store interface {
	GetPost(ctx context.Context, postID int64) (*domain.Post, error)
	GetCategorySubscribers(ctx context.Context, categoryID int64) ([]domain.User, error)
	GetSubscribedUsers(ctx context.Context) ([]domain.User, error)
	GetUserPostsBetween(ctx context.Context, userID int64, since, until time.Time) ([]domain.Post, error)
}

type Renderer interface {
	PostNotification(ctx context.Context, post *domain.Post) (mailer.Message, error)
	WeeklyDigest(ctx context.Context, user domain.User, posts []domain.Post) (mailer.Message, error)
}

type Options struct {
	// Dedupe sends one email per distinct subscriber instead of one per
	// (category, subscriber) pair.
	Dedupe bool
	Now    func() time.Time
}

type Notifier struct {
	store    Store
	renderer Renderer
	mail     mailer.Provider
	dedupe   bool
	now      func() time.Time
	log      *slog.Logger
}

func New(
	store Store,
	renderer Renderer,
	mail mailer.Provider,
	opts Options,
	log *slog.Logger,
) *Notifier {
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Notifier{
		store:    store,
		renderer: renderer,
		mail:     mail,
		dedupe:   opts.Dedupe,
		now:      now,
		log:      log,
	}
}

// NotifySubscribers emails every subscriber of every category of the post.
// A missing post is not an error. Without dedupe a user subscribed to two of
// the post's categories receives two emails.
func (n *Notifier) NotifySubscribers(ctx context.Context, postID int64) error {
	post, err := n.store.GetPost(ctx, postID)
	if errors.Is(err, database.ErrNotFound) {
		n.log.DebugContext(ctx, "Post is missing so notification is skipped",
			"postID", postID)

		return nil
	}
	if err != nil {
		return fmt.Errorf("get post: %w", err)
	}

	if len(post.Categories) == 0 {
		return nil
	}

	var (
		msg      mailer.Message
		rendered bool
		sent     int
		errs     []error
	)

	seen := make(map[int64]struct{})

	for _, category := range post.Categories {
		subscribers, subErr := n.store.GetCategorySubscribers(ctx, category.ID)
		if subErr != nil {
			errs = append(errs, fmt.Errorf("get subscribers of category %d: %w", category.ID, subErr))
			continue
		}

		if len(subscribers) == 0 {
			continue
		}

		if !rendered {
			msg, err = n.renderer.PostNotification(ctx, post)
			if err != nil {
				return fmt.Errorf("render post notification: %w", err)
			}
			rendered = true
		}

		for _, user := range subscribers {
			if n.dedupe {
				if _, ok := seen[user.ID]; ok {
					continue
				}
				seen[user.ID] = struct{}{}
			}

			if ctx.Err() != nil {
				return errors.Join(append(errs, ctx.Err())...)
			}

			userMsg := msg
			userMsg.To = user.Email

			if sendErr := n.mail.Send(ctx, userMsg); sendErr != nil {
				errs = append(errs, fmt.Errorf("send to user %d: %w", user.ID, sendErr))
				continue
			}
			sent++
		}
	}

	n.log.InfoContext(ctx, "Post notification is sent",
		"postID", postID,
		"categoryCount", len(post.Categories),
		"emailCount", sent,
		"errorCount", len(errs))

	return errors.Join(errs...)
}

// SendWeeklyDigest emails each subscribed user the posts of the trailing
// week that match their subscriptions. Users without matches get nothing.
func (n *Notifier) SendWeeklyDigest(ctx context.Context) error {
	users, err := n.store.GetSubscribedUsers(ctx)
	if err != nil {
		return fmt.Errorf("get subscribed users: %w", err)
	}

	until := n.now()
	since := until.Add(-DigestWindow)

	var (
		sent int
		errs []error
	)

	for _, user := range users {
		if ctx.Err() != nil {
			return errors.Join(append(errs, ctx.Err())...)
		}

		ok, digestErr := n.sendDigest(ctx, user, since, until)
		if digestErr != nil {
			errs = append(errs, fmt.Errorf("send digest to user %d: %w", user.ID, digestErr))
			continue
		}

		if ok {
			sent++
		}
	}

	n.log.InfoContext(ctx, "Weekly digest is sent",
		"since", since,
		"until", until,
		"userCount", len(users),
		"emailCount", sent,
		"errorCount", len(errs))

	return errors.Join(errs...)
}

func (n *Notifier) sendDigest(
	ctx context.Context,
	user domain.User,
	since time.Time,
	until time.Time,
) (bool, error) {
	posts, err := n.store.GetUserPostsBetween(ctx, user.ID, since, until)
	if err != nil {
		return false, fmt.Errorf("get user posts: %w", err)
	}

	if len(posts) == 0 {
		return false, nil
	}

	msg, err := n.renderer.WeeklyDigest(ctx, user, posts)
	if err != nil {
		return false, fmt.Errorf("render digest: %w", err)
	}

	if err = n.mail.Send(ctx, msg); err != nil {
		return false, err
	}

	return true, nil
}
