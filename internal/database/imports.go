package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"newspaper/internal/domain"
)

var ErrAlreadyImported = errors.New("feed item is already imported")

func (d *Database) GetImportedPostID(ctx context.Context, feedURL, guid string) (int64, bool, error) {
	query := "select post_id from imported_items where feed_url = ? and guid = ?"

	var postID int64

	err := d.db.QueryRowContext(ctx, query, feedURL, guid).Scan(&postID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to scan row: %w", err)
	}

	return postID, true, nil
}

// CreateImportedPost saves the post and records (feedURL, guid) in one
// transaction. It returns ErrAlreadyImported when the item is recorded already.
func (d *Database) CreateImportedPost(
	ctx context.Context,
	post *domain.Post,
	categoryIDs []int64,
	feedURL string,
	guid string,
	importedAt time.Time,
) (int64, error) {
	if err := validatePost(post); err != nil {
		return 0, err
	}

	var postID int64

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool

		query := "select exists (select 1 from imported_items where feed_url = ? and guid = ?)"
		if err := tx.QueryRowContext(ctx, query, feedURL, guid).Scan(&exists); err != nil {
			return fmt.Errorf("check imported item: %w", err)
		}

		if exists {
			return ErrAlreadyImported
		}

		var err error
		if postID, err = insertPost(ctx, tx, post, categoryIDs); err != nil {
			return err
		}

		query = `insert into imported_items (feed_url, guid, post_id, imported_at)
		values (?, ?, ?, ?)`

		if _, err = tx.ExecContext(ctx, query, feedURL, guid, postID, importedAt.UTC().Unix()); err != nil {
			return fmt.Errorf("insert imported item: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return postID, nil
}
