package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/model"
)

type readingProgressRepository struct {
	db *sqlx.DB
}

func NewReadingProgressRepository(db *sqlx.DB) ReadingProgressRepository {
	return &readingProgressRepository{db: db}
}

func (r *readingProgressRepository) Upsert(ctx context.Context, rp *model.ReadingProgress) error {
	query := `
		INSERT INTO reading_progress (user_id, book_id, status, current_page)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET status = EXCLUDED.status, current_page = EXCLUDED.current_page, updated_at = NOW()
		RETURNING id, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query, rp.UserID, rp.BookID, rp.Status, rp.CurrentPage)
	if err := row.Scan(&rp.ID, &rp.UpdatedAt); err != nil {
		return fmt.Errorf("upsert reading progress: %w", err)
	}
	return nil
}

func (r *readingProgressRepository) ListByUser(ctx context.Context, userID int64) ([]model.ReadingProgress, error) {
	query := `
		SELECT id, user_id, book_id, status, current_page, updated_at
		FROM reading_progress
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	items := []model.ReadingProgress{}
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list reading progress: %w", err)
	}
	return items, nil
}

func (r *readingProgressRepository) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM reading_progress WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete reading progress: %w", err)
	}
	return result.RowsAffected()
}
