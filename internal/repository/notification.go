package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"readingclub/internal/model"
)

const notificationColumns = `id, user_id, actor_id, type, message, data, related_type, related_id, is_read, read_at, created_at`

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts a new notification inside the caller's transaction.
func (r *notificationRepository) Create(ctx context.Context, tx *sqlx.Tx, n model.NewNotification) (*model.Notification, error) {
	query := `
		INSERT INTO notifications (user_id, actor_id, type, message, data, related_type, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + notificationColumns

	data := n.Data
	if len(data) == 0 {
		data = types.JSONText("{}")
	}

	var relatedType *model.RefType
	var relatedID *int64
	if n.Related != nil {
		relatedType = &n.Related.Type
		relatedID = &n.Related.ID
	}

	var created model.Notification
	err := tx.GetContext(ctx, &created, query,
		n.RecipientID, n.ActorID, n.Type, n.Message, data, relatedType, relatedID)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &created, nil
}

// List returns the recipient's notifications newest first, with the actor joined.
func (r *notificationRepository) List(ctx context.Context, userID int64, q model.NotificationListQuery) ([]model.Notification, error) {
	query := `
		SELECT n.id, n.user_id, n.actor_id, n.type, n.message, n.data, n.related_type, n.related_id,
		       n.is_read, n.read_at, n.created_at,
		       a.username AS actor_username
		FROM notifications n
		LEFT JOIN users a ON a.id = n.actor_id
		WHERE n.user_id = $1 AND ($2 = false OR n.is_read = false)
		ORDER BY n.created_at DESC, n.id DESC
		LIMIT $3 OFFSET $4
	`

	type notifRow struct {
		model.Notification
		ActorUsername *string `db:"actor_username"`
	}

	var rows []notifRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, q.UnreadOnly, q.Limit, q.Offset); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	notifications := make([]model.Notification, len(rows))
	for i, row := range rows {
		notifications[i] = row.Notification
		if row.ActorID != nil && row.ActorUsername != nil {
			notifications[i].Actor = &model.UserSummary{ID: *row.ActorID, Username: *row.ActorUsername}
		}
	}
	return notifications, nil
}

func (r *notificationRepository) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead is scoped by recipient: another user's id reads as not found.
func (r *notificationRepository) MarkAsRead(ctx context.Context, userID, id int64, now time.Time) (*model.Notification, error) {
	query := `
		UPDATE notifications SET is_read = true, read_at = $1
		WHERE id = $2 AND user_id = $3
		RETURNING ` + notificationColumns
	return r.updateOne(ctx, query, now, id, userID)
}

func (r *notificationRepository) MarkAsUnread(ctx context.Context, userID, id int64) (*model.Notification, error) {
	query := `
		UPDATE notifications SET is_read = false, read_at = NULL
		WHERE id = $1 AND user_id = $2
		RETURNING ` + notificationColumns
	return r.updateOne(ctx, query, id, userID)
}

func (r *notificationRepository) updateOne(ctx context.Context, query string, args ...interface{}) (*model.Notification, error) {
	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("update notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkAllAsRead(ctx context.Context, userID int64, now time.Time) (int64, error) {
	query := `UPDATE notifications SET is_read = true, read_at = $1 WHERE user_id = $2 AND is_read = false`
	result, err := r.db.ExecContext(ctx, query, now, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications as read: %w", err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id int64) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) DeleteAllRead(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM notifications WHERE user_id = $1 AND is_read = true`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) DeleteInvolvingUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE user_id = $1 OR actor_id = $1 OR (related_type = 'user' AND related_id = $1)
	`
	result, err := tx.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("delete notifications for user: %w", err)
	}
	return result.RowsAffected()
}

func (r *notificationRepository) DeleteRelated(ctx context.Context, tx *sqlx.Tx, refType model.RefType, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `DELETE FROM notifications WHERE related_type = $1 AND related_id = ANY($2)`
	result, err := tx.ExecContext(ctx, query, refType, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete related notifications: %w", err)
	}
	return result.RowsAffected()
}
