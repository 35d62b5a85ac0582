package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/model"
)

const followRequestColumns = `id, follower_id, followee_id, status, created_at, updated_at`

type followRequestRepository struct {
	db *sqlx.DB
}

func NewFollowRequestRepository(db *sqlx.DB) FollowRequestRepository {
	return &followRequestRepository{db: db}
}

// UpsertPending relies on UNIQUE (follower_id, followee_id). The conditional
// DO UPDATE leaves a pending row untouched, which surfaces as no returned row.
func (r *followRequestRepository) UpsertPending(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (*model.FollowRequest, error) {
	query := `
		INSERT INTO follow_requests (follower_id, followee_id, status)
		VALUES ($1, $2, 'pending')
		ON CONFLICT (follower_id, followee_id) DO UPDATE
		SET status = 'pending', updated_at = NOW()
		WHERE follow_requests.status <> 'pending'
		RETURNING ` + followRequestColumns

	var req model.FollowRequest
	err := tx.GetContext(ctx, &req, query, followerID, followeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrDuplicateRequest
		}
		return nil, fmt.Errorf("failed to upsert follow request: %w", err)
	}
	return &req, nil
}

func (r *followRequestRepository) Transition(ctx context.Context, tx *sqlx.Tx, requestID, followeeID int64, status model.FollowRequestStatus) (*model.FollowRequest, error) {
	query := `
		UPDATE follow_requests
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND followee_id = $3 AND status = 'pending'
		RETURNING ` + followRequestColumns

	var req model.FollowRequest
	err := tx.GetContext(ctx, &req, query, status, requestID, followeeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrFollowRequestNotFound
		}
		return nil, fmt.Errorf("failed to transition follow request: %w", err)
	}
	return &req, nil
}

func (r *followRequestRepository) SetStatus(ctx context.Context, tx *sqlx.Tx, requestID int64, status model.FollowRequestStatus) error {
	query := `UPDATE follow_requests SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, status, requestID); err != nil {
		return fmt.Errorf("failed to set follow request status: %w", err)
	}
	return nil
}

func (r *followRequestRepository) DeletePending(ctx context.Context, followerID, followeeID int64) (bool, error) {
	query := `DELETE FROM follow_requests WHERE follower_id = $1 AND followee_id = $2 AND status = 'pending'`
	result, err := r.db.ExecContext(ctx, query, followerID, followeeID)
	if err != nil {
		return false, fmt.Errorf("failed to delete follow request: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *followRequestRepository) HasPending(ctx context.Context, followerID, followeeID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM follow_requests WHERE follower_id = $1 AND followee_id = $2 AND status = 'pending')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, followerID, followeeID); err != nil {
		return false, fmt.Errorf("failed to check pending request: %w", err)
	}
	return exists, nil
}

// ListPending returns pending requests addressed to followeeID with the requester attached.
func (r *followRequestRepository) ListPending(ctx context.Context, followeeID int64) ([]model.FollowRequest, error) {
	query := `
		SELECT fr.id, fr.follower_id, fr.followee_id, fr.status, fr.created_at, fr.updated_at,
		       u.username AS follower_username
		FROM follow_requests fr
		JOIN users u ON u.id = fr.follower_id
		WHERE fr.followee_id = $1 AND fr.status = 'pending'
		ORDER BY fr.created_at DESC
	`

	type requestRow struct {
		ID               int64                     `db:"id"`
		FollowerID       int64                     `db:"follower_id"`
		FolloweeID       int64                     `db:"followee_id"`
		Status           model.FollowRequestStatus `db:"status"`
		CreatedAt        time.Time                 `db:"created_at"`
		UpdatedAt        time.Time                 `db:"updated_at"`
		FollowerUsername string                    `db:"follower_username"`
	}

	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, followeeID); err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	requests := make([]model.FollowRequest, len(rows))
	for i, row := range rows {
		requests[i] = model.FollowRequest{
			ID:         row.ID,
			FollowerID: row.FollowerID,
			FolloweeID: row.FolloweeID,
			Status:     row.Status,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
			Follower:   &model.UserSummary{ID: row.FollowerID, Username: row.FollowerUsername},
		}
	}
	return requests, nil
}

func (r *followRequestRepository) DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	query := `DELETE FROM follow_requests WHERE follower_id = $1 OR followee_id = $1`
	result, err := tx.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete follow requests for user: %w", err)
	}
	return result.RowsAffected()
}
