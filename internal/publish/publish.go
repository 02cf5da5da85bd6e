// Package publish saves posts and schedules subscriber notifications.
//
// Both creation and update dispatch exactly one notify_subscribers task after
// the post is committed, so every save path notifies the same way.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"newspaper/internal/database"
	"newspaper/internal/domain"
	"newspaper/internal/tasks"
)

var (
	ErrNotAuthor = errors.New("user is not an author")
	ErrNotOwner  = errors.New("post belongs to another author")
	ErrInvalid   = errors.New("invalid post")
)

type Store interface {
	GetUser(ctx context.Context, userID int64) (*domain.User, error)
	GetPost(ctx context.Context, postID int64) (*domain.Post, error)
	GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error)
	CreatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) (int64, error)
	CreateImportedPost(
		ctx context.Context,
		post *domain.Post,
		categoryIDs []int64,
		feedURL string,
		guid string,
		importedAt time.Time,
	) (int64, error)
	UpdatePost(ctx context.Context, post *domain.Post, categoryIDs []int64) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, name string, arg int64) (string, bool)
}

type Draft struct {
	Title       string
	Content     string
	Type        domain.PostType
	CategoryIDs []int64
	// CreatedAt overrides the creation time, e.g. for imported items.
	CreatedAt time.Time
	// Source marks a syndicated item. The post and its import record are
	// saved together so an item never produces two posts.
	Source *Source
}

type Source struct {
	FeedURL string
	GUID    string
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	now        func() time.Time
	log        *slog.Logger
}

func New(store Store, dispatcher Dispatcher, log *slog.Logger) *Service {
	return &Service{
		store:      store,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log,
	}
}

func (s *Service) Create(ctx context.Context, authorID int64, draft Draft) (int64, error) {
	if err := s.requireAuthor(ctx, authorID); err != nil {
		return 0, err
	}

	post, err := s.buildPost(draft)
	if err != nil {
		return 0, err
	}

	if err = s.requireCategories(ctx, draft.CategoryIDs); err != nil {
		return 0, err
	}

	now := s.now().UTC()
	post.AuthorID = authorID
	post.CreatedAt = now
	post.UpdatedAt = now

	if !draft.CreatedAt.IsZero() {
		post.CreatedAt = draft.CreatedAt.UTC()
	}

	var postID int64
	if src := draft.Source; src != nil {
		postID, err = s.store.CreateImportedPost(ctx, post, draft.CategoryIDs, src.FeedURL, src.GUID, now)
	} else {
		postID, err = s.store.CreatePost(ctx, post, draft.CategoryIDs)
	}
	if err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}

	s.log.InfoContext(ctx, "Post is created",
		"postID", postID,
		"authorID", authorID,
		"categoryIDs", draft.CategoryIDs)

	s.notify(ctx, postID)

	return postID, nil
}

func (s *Service) Update(ctx context.Context, authorID, postID int64, draft Draft) error {
	if err := s.requireAuthor(ctx, authorID); err != nil {
		return err
	}

	existing, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return fmt.Errorf("get post: %w", err)
	}

	if existing.AuthorID != authorID {
		return ErrNotOwner
	}

	post, err := s.buildPost(draft)
	if err != nil {
		return err
	}

	if err = s.requireCategories(ctx, draft.CategoryIDs); err != nil {
		return err
	}

	post.ID = postID
	post.AuthorID = authorID
	post.UpdatedAt = s.now().UTC()

	if err = s.store.UpdatePost(ctx, post, draft.CategoryIDs); err != nil {
		return fmt.Errorf("update post: %w", err)
	}

	s.log.InfoContext(ctx, "Post is updated",
		"postID", postID,
		"authorID", authorID,
		"categoryIDs", draft.CategoryIDs)

	s.notify(ctx, postID)

	return nil
}

func (s *Service) requireAuthor(ctx context.Context, userID int64) error {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	if !user.IsAuthor {
		return ErrNotAuthor
	}

	return nil
}

func (s *Service) requireCategories(ctx context.Context, categoryIDs []int64) error {
	for _, categoryID := range categoryIDs {
		_, err := s.store.GetCategory(ctx, categoryID)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: unknown category %d", ErrInvalid, categoryID)
		}
		if err != nil {
			return fmt.Errorf("get category: %w", err)
		}
	}

	return nil
}

func (s *Service) buildPost(draft Draft) (*domain.Post, error) {
	title := strings.TrimSpace(draft.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is empty", ErrInvalid)
	}

	postType := draft.Type
	if postType == "" {
		postType = domain.PostTypeNews
	}

	if !postType.Valid() {
		return nil, fmt.Errorf("%w: unknown post type %q", ErrInvalid, postType)
	}

	return &domain.Post{
		Type:    postType,
		Title:   title,
		Content: strings.TrimSpace(draft.Content),
	}, nil
}

func (s *Service) notify(ctx context.Context, postID int64) {
	taskID, ok := s.dispatcher.Dispatch(ctx, tasks.NotifySubscribers, postID)
	if !ok {
		s.log.WarnContext(ctx, "Notification task is not dispatched",
			"postID", postID,
			"taskID", taskID)
	}
}
