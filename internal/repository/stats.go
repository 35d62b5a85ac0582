package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/model"
)

type statsRepository struct {
	db *sqlx.DB
}

func NewStatsRepository(db *sqlx.DB) StatsRepository {
	return &statsRepository{db: db}
}

// Overview counts everything in one round trip. Books live in the catalog
// service, so total_books counts distinct books that have a thread or a shelf entry.
func (r *statsRepository) Overview(ctx context.Context, now time.Time) (*model.StatsOverview, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS total_users,
			(SELECT COUNT(*) FROM users WHERE created_at >= $1) AS active_users_30d,
			(SELECT COUNT(*) FROM users WHERE is_flagged) AS flagged_users,
			(SELECT COUNT(*) FROM (
				SELECT book_id FROM threads UNION SELECT book_id FROM reading_progress
			) b) AS total_books,
			(SELECT COUNT(*) FROM threads) AS total_threads,
			(SELECT COUNT(*) FROM comments) AS total_comments,
			(SELECT COUNT(*) FROM reading_progress) AS total_reading_progress,
			(SELECT COUNT(*) FROM reading_progress WHERE status = 'completed') AS completed_books,
			(SELECT COUNT(*) FROM reading_progress WHERE status = 'reading') AS currently_reading,
			(SELECT COUNT(*) FROM users WHERE created_at >= $2) AS new_users_7d,
			(SELECT COUNT(*) FROM threads WHERE created_at >= $2) AS new_threads_7d,
			(SELECT COUNT(*) FROM comments WHERE created_at >= $2) AS new_comments_7d
	`
	var o model.StatsOverview
	if err := r.db.GetContext(ctx, &o, query, now.AddDate(0, 0, -30), now.AddDate(0, 0, -7)); err != nil {
		return nil, fmt.Errorf("stats overview: %w", err)
	}
	return &o, nil
}

func (r *statsRepository) UsersByRole(ctx context.Context) (map[model.Role]int, error) {
	var rows []struct {
		Role  model.Role `db:"role"`
		Count int        `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT role, COUNT(*) AS count FROM users GROUP BY role`); err != nil {
		return nil, fmt.Errorf("users by role: %w", err)
	}

	byRole := make(map[model.Role]int, len(rows))
	for _, row := range rows {
		byRole[row.Role] = row.Count
	}
	return byRole, nil
}

func (r *statsRepository) MostActiveUsers(ctx context.Context, limit int) ([]model.ActiveUser, error) {
	query := `
		SELECT u.id AS user_id, u.username,
		       COALESCE(t.n, 0) AS threads_count,
		       COALESCE(c.n, 0) AS comments_count,
		       COALESCE(t.n, 0) + COALESCE(c.n, 0) AS total_activity
		FROM users u
		LEFT JOIN (SELECT user_id, COUNT(*) AS n FROM threads GROUP BY user_id) t ON t.user_id = u.id
		LEFT JOIN (SELECT user_id, COUNT(*) AS n FROM comments GROUP BY user_id) c ON c.user_id = u.id
		ORDER BY threads_count DESC, comments_count DESC, u.id
		LIMIT $1
	`
	users := []model.ActiveUser{}
	if err := r.db.SelectContext(ctx, &users, query, limit); err != nil {
		return nil, fmt.Errorf("most active users: %w", err)
	}
	return users, nil
}

func (r *statsRepository) PopularBooks(ctx context.Context, limit int) ([]model.BookActivity, error) {
	query := `
		SELECT t.book_id, COUNT(DISTINCT t.id) AS threads_count, COUNT(c.id) AS comments_count
		FROM threads t
		LEFT JOIN comments c ON c.thread_id = t.id
		GROUP BY t.book_id
		ORDER BY threads_count DESC, comments_count DESC, t.book_id
		LIMIT $1
	`
	books := []model.BookActivity{}
	if err := r.db.SelectContext(ctx, &books, query, limit); err != nil {
		return nil, fmt.Errorf("popular books: %w", err)
	}
	return books, nil
}
