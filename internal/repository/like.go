package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"readingclub/internal/model"
)

type likeRepository struct {
	db *sqlx.DB
}

func NewLikeRepository(db *sqlx.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Insert leans on UNIQUE (user_id, target_type, target_id) so concurrent
// likes can never produce a second row.
func (r *likeRepository) Insert(ctx context.Context, tx *sqlx.Tx, userID int64, target model.Ref) (bool, error) {
	query := `
		INSERT INTO likes (user_id, target_type, target_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, target_type, target_id) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query, userID, target.Type, target.ID)
	if err != nil {
		return false, fmt.Errorf("insert like: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *likeRepository) Delete(ctx context.Context, tx *sqlx.Tx, userID int64, target model.Ref) (bool, error) {
	query := `DELETE FROM likes WHERE user_id = $1 AND target_type = $2 AND target_id = $3`
	result, err := tx.ExecContext(ctx, query, userID, target.Type, target.ID)
	if err != nil {
		return false, fmt.Errorf("delete like: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *likeRepository) Count(ctx context.Context, target model.Ref) (int, error) {
	query := `SELECT COUNT(*) FROM likes WHERE target_type = $1 AND target_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, target.Type, target.ID); err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}

func (r *likeRepository) Exists(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM likes WHERE user_id = $1 AND target_type = $2 AND target_id = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, target.Type, target.ID); err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return exists, nil
}

func (r *likeRepository) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete likes by user: %w", err)
	}
	return result.RowsAffected()
}

func (r *likeRepository) DeleteForTargets(ctx context.Context, tx *sqlx.Tx, targetType model.RefType, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM likes WHERE target_type = $1 AND target_id = ANY($2)`
	result, err := tx.ExecContext(ctx, query, targetType, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete likes for targets: %w", err)
	}
	return result.RowsAffected()
}
