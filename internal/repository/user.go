package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"readingclub/internal/model"
)

const userColumns = `id, username, email, password_hash, role,
	profile_visibility, reading_progress_visibility, activity_visibility,
	allow_follows, require_follow_approval,
	is_flagged, flagged_at, flag_reason, flagged_by, created_at, updated_at`

// userRepository implements UserRepository using sqlx
type userRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var u model.User
	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return &u, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error) {
	result := make(map[int64]*model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	var users []model.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}

	for i := range users {
		result[users[i].ID] = &users[i]
	}
	return result, nil
}

func (r *userRepository) UpdatePrivacy(ctx context.Context, id int64, s model.PrivacySettings, now time.Time) error {
	query := `
		UPDATE users
		SET profile_visibility = $1,
		    reading_progress_visibility = $2,
		    activity_visibility = $3,
		    allow_follows = $4,
		    require_follow_approval = $5,
		    updated_at = $6
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query,
		s.ProfileVisibility,
		s.ReadingProgressVisibility,
		s.ActivityVisibility,
		s.AllowFollows,
		s.RequireFollowApproval,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update privacy settings: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Flag(ctx context.Context, tx *sqlx.Tx, id, moderatorID int64, reason string, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET is_flagged = true, flagged_at = $1, flag_reason = $2, flagged_by = $3, updated_at = $1
		WHERE id = $4 AND is_flagged = false AND role = 'user'
	`
	result, err := tx.ExecContext(ctx, query, now, reason, moderatorID, id)
	if err != nil {
		return false, fmt.Errorf("failed to flag user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// SetRole moves id from one role to another. Flagged users are never promoted
// or demoted; false means the row was missing, flagged or not in role from.
func (r *userRepository) SetRole(ctx context.Context, tx *sqlx.Tx, id int64, from, to model.Role, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET role = $1, updated_at = $2
		WHERE id = $3 AND role = $4 AND is_flagged = false
	`
	result, err := tx.ExecContext(ctx, query, to, now, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to set role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *userRepository) Unflag(ctx context.Context, id int64, now time.Time) (bool, error) {
	query := `
		UPDATE users
		SET is_flagged = false, flagged_at = NULL, flag_reason = NULL, flagged_by = NULL, updated_at = $1
		WHERE id = $2 AND is_flagged = true
	`
	result, err := r.db.ExecContext(ctx, query, now, id)
	if err != nil {
		return false, fmt.Errorf("failed to unflag user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *userRepository) ListFlagged(ctx context.Context) ([]model.FlaggedUser, error) {
	query := `
		SELECT u.id, u.username, u.flagged_at, u.flag_reason,
		       m.id AS moderator_id, m.username AS moderator_username
		FROM users u
		LEFT JOIN users m ON m.id = u.flagged_by
		WHERE u.is_flagged = true
		ORDER BY u.flagged_at DESC
	`

	type flaggedRow struct {
		ID                int64      `db:"id"`
		Username          string     `db:"username"`
		FlaggedAt         *time.Time `db:"flagged_at"`
		FlagReason        *string    `db:"flag_reason"`
		ModeratorID       *int64     `db:"moderator_id"`
		ModeratorUsername *string    `db:"moderator_username"`
	}

	var rows []flaggedRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list flagged users: %w", err)
	}

	users := make([]model.FlaggedUser, len(rows))
	for i, row := range rows {
		users[i] = model.FlaggedUser{
			ID:         row.ID,
			Username:   row.Username,
			FlaggedAt:  row.FlaggedAt,
			FlagReason: row.FlagReason,
		}
		if row.ModeratorID != nil && row.ModeratorUsername != nil {
			users[i].FlaggedBy = &model.UserSummary{ID: *row.ModeratorID, Username: *row.ModeratorUsername}
		}
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrUserNotFound
	}
	return nil
}
