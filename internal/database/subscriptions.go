package database

import (
	"context"
	"fmt"

	"newspaper/internal/domain"
)

func (d *Database) Subscribe(ctx context.Context, userID, categoryID int64) error {
	query := "insert or ignore into category_subscribers (category_id, user_id) values (?, ?)"

	_, err := d.db.ExecContext(ctx, query, categoryID, userID)

	return err
}

func (d *Database) Unsubscribe(ctx context.Context, userID, categoryID int64) error {
	query := "delete from category_subscribers where category_id = ? and user_id = ?"

	_, err := d.db.ExecContext(ctx, query, categoryID, userID)

	return err
}

func (d *Database) IsSubscribed(ctx context.Context, userID, categoryID int64) (bool, error) {
	query := `select exists (
		select 1 from category_subscribers where category_id = ? and user_id = ?
	)`

	var subscribed bool
	if err := d.db.QueryRowContext(ctx, query, categoryID, userID).Scan(&subscribed); err != nil {
		return false, fmt.Errorf("failed to scan row: %w", err)
	}

	return subscribed, nil
}

func (d *Database) GetCategorySubscribers(ctx context.Context, categoryID int64) ([]domain.User, error) {
	query := `select u.id, u.username, u.email, u.is_author
	from users as u
	join category_subscribers as cs on cs.user_id = u.id
	where cs.category_id = ?
	order by u.id`

	rows, err := d.db.QueryContext(ctx, query, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetCategorySubscribers")

	return scanUsers(rows)
}

// GetSubscribedUsers returns every user with at least one category subscription.
func (d *Database) GetSubscribedUsers(ctx context.Context) ([]domain.User, error) {
	query := `select u.id, u.username, u.email, u.is_author
	from users as u
	where exists (
		select 1 from category_subscribers as cs where cs.user_id = u.id
	)
	order by u.id`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetSubscribedUsers")

	return scanUsers(rows)
}
