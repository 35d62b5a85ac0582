package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/model"
)

type threadRepository struct {
	db *sqlx.DB
}

func NewThreadRepository(db *sqlx.DB) ThreadRepository {
	return &threadRepository{db: db}
}

type threadRow struct {
	model.Thread
	AuthorUsername string `db:"author_username"`
}

func (row threadRow) toModel() model.Thread {
	t := row.Thread
	t.Author = &model.UserSummary{ID: t.UserID, Username: row.AuthorUsername}
	return t
}

const threadSelect = `
	SELECT t.id, t.user_id, t.book_id, t.title, t.content, t.scope, t.page_number,
	       t.created_at, t.updated_at, u.username AS author_username
	FROM threads t
	JOIN users u ON u.id = t.user_id
`

// Create fills in ID and timestamps from the inserted row.
func (r *threadRepository) Create(ctx context.Context, tx *sqlx.Tx, t *model.Thread) error {
	query := `
		INSERT INTO threads (user_id, book_id, title, content, scope, page_number)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	row := tx.QueryRowxContext(ctx, query, t.UserID, t.BookID, t.Title, t.Content, t.Scope, t.PageNumber)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("insert thread: %w", err)
	}
	return nil
}

func (r *threadRepository) GetByID(ctx context.Context, id int64) (*model.Thread, error) {
	var row threadRow
	err := r.db.GetContext(ctx, &row, threadSelect+` WHERE t.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrThreadNotFound
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	t := row.toModel()
	return &t, nil
}

// List builds its WHERE clause from the non-nil filter fields.
func (r *threadRepository) List(ctx context.Context, f model.ThreadFilter) ([]model.Thread, error) {
	var conds []string
	var args []interface{}
	if f.BookID != nil {
		args = append(args, *f.BookID)
		conds = append(conds, fmt.Sprintf("t.book_id = $%d", len(args)))
	}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conds = append(conds, fmt.Sprintf("t.user_id = $%d", len(args)))
	}

	query := threadSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var rows []threadRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	threads := make([]model.Thread, len(rows))
	for i, row := range rows {
		threads[i] = row.toModel()
	}
	return threads, nil
}

// Update writes the editable fields and refreshes t.UpdatedAt.
func (r *threadRepository) Update(ctx context.Context, t *model.Thread) error {
	query := `
		UPDATE threads
		SET title = $1, content = $2, scope = $3, page_number = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`
	err := r.db.QueryRowxContext(ctx, query, t.Title, t.Content, t.Scope, t.PageNumber, t.ID).Scan(&t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrThreadNotFound
		}
		return fmt.Errorf("update thread: %w", err)
	}
	return nil
}

// Delete removes the thread; comments go with it via ON DELETE CASCADE.
func (r *threadRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrThreadNotFound
	}
	return nil
}

func (r *threadRepository) IDsByUser(ctx context.Context, tx *sqlx.Tx, userID int64) ([]int64, error) {
	ids := []int64{}
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM threads WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("list thread ids: %w", err)
	}
	return ids, nil
}

func (r *threadRepository) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete threads by user: %w", err)
	}
	return result.RowsAffected()
}
