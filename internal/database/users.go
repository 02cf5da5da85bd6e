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

func (d *Database) CreateUser(ctx context.Context, username, email string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("username is empty")
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return 0, errors.New("email is empty")
	}

	query := "insert into users (username, email, created_at) values (?, ?, ?)"

	res, err := d.db.ExecContext(ctx, query, username, email, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}

	return res.LastInsertId()
}

func (d *Database) GetUser(ctx context.Context, userID int64) (*domain.User, error) {
	query := "select id, username, email, is_author from users where id = ?"

	u, err := scanUser(d.db.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return u, nil
}

func (d *Database) SetUserAuthor(ctx context.Context, userID int64) error {
	query := "update users set is_author = 1 where id = ?"

	res, err := d.db.ExecContext(ctx, query, userID)
	if err != nil {
		return err
	}

	return requireAffected(res)
}

func (d *Database) CreateCategory(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("category name is empty")
	}

	if _, err := d.db.ExecContext(ctx, "insert or ignore into categories (name) values (?)", name); err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}

	var id int64
	if err := d.db.QueryRowContext(ctx, "select id from categories where name = ?", name).Scan(&id); err != nil {
		return 0, fmt.Errorf("select category: %w", err)
	}

	return id, nil
}

func (d *Database) GetCategory(ctx context.Context, categoryID int64) (*domain.Category, error) {
	var c domain.Category

	err := d.db.QueryRowContext(ctx, "select id, name from categories where id = ?", categoryID).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return &c, nil
}

func (d *Database) GetCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := d.db.QueryContext(ctx, "select id, name from categories order by name")
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer d.closeRows(ctx, rows, "GetCategories")

	return scanCategories(rows)
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.IsAuthor); err != nil {
		return nil, err
	}

	u.Username = strings.TrimSpace(u.Username)
	u.Email = strings.TrimSpace(u.Email)

	return &u, nil
}

func scanUsers(rows *sql.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return users, nil
}

func scanCategories(rows *sql.Rows) ([]domain.Category, error) {
	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return categories, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
