package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"newspaper/internal/domain"
)

const postColumns = `p.id, p.author_id, p.post_type, p.title, p.content, p.created_at, p.updated_at,
	u.id, u.username, u.email, u.is_author`

func (d *Database) CreatePost(
	ctx context.Context,
	post *domain.Post,
	categoryIDs []int64,
) (int64, error) {
	if err := validatePost(post); err != nil {
		return 0, err
	}

	var postID int64

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		postID, err = insertPost(ctx, tx, post, categoryIDs)
		return err
	})
	if err != nil {
		return 0, err
	}

	return postID, nil
}

func insertPost(ctx context.Context, tx *sql.Tx, post *domain.Post, categoryIDs []int64) (int64, error) {
	query := `insert into posts (author_id, post_type, title, content, created_at, updated_at)
	values (?, ?, ?, ?, ?, ?)`

	res, err := tx.ExecContext(ctx, query,
		post.AuthorID,
		string(post.Type),
		strings.TrimSpace(post.Title),
		post.Content,
		post.CreatedAt.UTC().Unix(),
		post.UpdatedAt.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert post: %w", err)
	}

	postID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert ID: %w", err)
	}

	if err = linkCategories(ctx, tx, postID, categoryIDs); err != nil {
		return 0, err
	}

	return postID, nil
}

func (d *Database) UpdatePost(
	ctx context.Context,
	post *domain.Post,
	categoryIDs []int64,
) error {
	if err := validatePost(post); err != nil {
		return err
	}

	return d.withTx(ctx, func(tx *sql.Tx) error {
		query := `update posts
		set post_type = ?, title = ?, content = ?, updated_at = ?
		where id = ?`

		res, err := tx.ExecContext(ctx, query,
			string(post.Type),
			strings.TrimSpace(post.Title),
			post.Content,
			post.UpdatedAt.UTC().Unix(),
			post.ID)
		if err != nil {
			return fmt.Errorf("update post: %w", err)
		}

		if err = requireAffected(res); err != nil {
			return err
		}

		if _, err = tx.ExecContext(ctx, "delete from post_categories where post_id = ?", post.ID); err != nil {
			return fmt.Errorf("delete post categories: %w", err)
		}

		return linkCategories(ctx, tx, post.ID, categoryIDs)
	})
}

// GetPost returns the post with its author and categories, or ErrNotFound.
func (d *Database) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	query := `select ` + postColumns + `
	from posts as p
	join users as u on u.id = p.author_id
	where p.id = ?`

	post, err := scanPost(d.db.QueryRowContext(ctx, query, postID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	post.Categories, err = d.GetPostCategories(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post categories: %w", err)
	}

	return post, nil
}

func (d *Database) GetPostCategories(ctx context.Context, postID int64) ([]domain.Category, error) {
	query := `select c.id, c.name
	from categories as c
	join post_categories as pc on pc.category_id = c.id
	where pc.post_id = ?
	order by c.id`

	rows, err := d.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetPostCategories")

	return scanCategories(rows)
}

// GetUserPostsBetween returns posts created in [since, until] that share at
// least one category with the user's subscriptions. Each post appears once,
// newest first.
func (d *Database) GetUserPostsBetween(
	ctx context.Context,
	userID int64,
	since time.Time,
	until time.Time,
) ([]domain.Post, error) {
	query := `select ` + postColumns + `
	from posts as p
	join users as u on u.id = p.author_id
	where p.created_at >= ?
	and p.created_at <= ?
	and exists (
		select 1
		from post_categories as pc
		join category_subscribers as cs on cs.category_id = pc.category_id
		where pc.post_id = p.id
		and cs.user_id = ?
	)
	order by p.created_at desc, p.id desc`

	rows, err := d.db.QueryContext(ctx, query, since.UTC().Unix(), until.UTC().Unix(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetUserPostsBetween")

	var posts []domain.Post
	for rows.Next() {
		post, scanErr := scanPost(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}
		posts = append(posts, *post)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return posts, nil
}

func validatePost(post *domain.Post) error {
	if post == nil {
		return errors.New("post is nil")
	}

	if strings.TrimSpace(post.Title) == "" {
		return errors.New("post title is empty")
	}

	if !post.Type.Valid() {
		return fmt.Errorf("unknown post type %q", post.Type)
	}

	return nil
}

func linkCategories(ctx context.Context, tx *sql.Tx, postID int64, categoryIDs []int64) error {
	query := "insert or ignore into post_categories (post_id, category_id) values (?, ?)"

	for _, categoryID := range categoryIDs {
		if _, err := tx.ExecContext(ctx, query, postID, categoryID); err != nil {
			return fmt.Errorf("link category %d: %w", categoryID, err)
		}
	}

	return nil
}

func scanPost(row rowScanner) (*domain.Post, error) {
	var (
		p         domain.Post
		postType  string
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(
		&p.ID, &p.AuthorID, &postType, &p.Title, &p.Content, &createdAt, &updatedAt,
		&p.Author.ID, &p.Author.Username, &p.Author.Email, &p.Author.IsAuthor,
	)
	if err != nil {
		return nil, err
	}

	p.Type = domain.PostType(postType)
	p.Title = strings.TrimSpace(p.Title)
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	return &p, nil
}
