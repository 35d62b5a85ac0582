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

type commentRepository struct {
	db *sqlx.DB
}

func NewCommentRepository(db *sqlx.DB) CommentRepository {
	return &commentRepository{db: db}
}

type commentRow struct {
	model.Comment
	AuthorUsername string `db:"author_username"`
}

const commentSelect = `
	SELECT c.id, c.thread_id, c.user_id, c.parent_comment_id, c.content,
	       c.created_at, c.updated_at, u.username AS author_username
	FROM comments c
	JOIN users u ON u.id = c.user_id
`

func (r *commentRepository) Create(ctx context.Context, tx *sqlx.Tx, c *model.Comment) error {
	query := `
		INSERT INTO comments (thread_id, user_id, parent_comment_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	row := tx.QueryRowxContext(ctx, query, c.ThreadID, c.UserID, c.ParentCommentID, c.Content)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	var row commentRow
	err := r.db.GetContext(ctx, &row, commentSelect+` WHERE c.id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrCommentNotFound
		}
		return nil, fmt.Errorf("get comment: %w", err)
	}
	c := row.Comment
	c.Author = &model.UserSummary{ID: c.UserID, Username: row.AuthorUsername}
	return &c, nil
}

// ListByThread returns the thread's comments oldest first.
func (r *commentRepository) ListByThread(ctx context.Context, threadID int64) ([]model.Comment, error) {
	var rows []commentRow
	query := commentSelect + ` WHERE c.thread_id = $1 ORDER BY c.created_at ASC, c.id ASC`
	if err := r.db.SelectContext(ctx, &rows, query, threadID); err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}

	comments := make([]model.Comment, len(rows))
	for i, row := range rows {
		comments[i] = row.Comment
		comments[i].Author = &model.UserSummary{ID: row.UserID, Username: row.AuthorUsername}
	}
	return comments, nil
}

// Delete removes the comment; replies go with it via ON DELETE CASCADE.
// UpdateContent replaces the body of a comment and returns its new updated_at.
func (r *commentRepository) UpdateContent(ctx context.Context, id int64, content string, now time.Time) (time.Time, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET content = $1, updated_at = $2 WHERE id = $3`, content, now, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("update comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return time.Time{}, model.ErrCommentNotFound
	}
	return now, nil
}

func (r *commentRepository) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return model.ErrCommentNotFound
	}
	return nil
}

// IDsInScope includes replies nested under any matched comment, since those go
// with their parent through ON DELETE CASCADE.
func (r *commentRepository) IDsInScope(ctx context.Context, tx *sqlx.Tx, userID int64, threadIDs []int64) ([]int64, error) {
	query := `
		WITH RECURSIVE scope AS (
			SELECT id FROM comments WHERE user_id = $1 OR thread_id = ANY($2)
			UNION
			SELECT c.id FROM comments c JOIN scope s ON c.parent_comment_id = s.id
		)
		SELECT id FROM scope
	`
	ids := []int64{}
	if err := tx.SelectContext(ctx, &ids, query, userID, pq.Array(threadIDs)); err != nil {
		return nil, fmt.Errorf("list comment ids: %w", err)
	}
	return ids, nil
}

// IDsByThread includes nested replies since every reply carries its thread_id.
func (r *commentRepository) IDsByThread(ctx context.Context, tx *sqlx.Tx, threadID int64) ([]int64, error) {
	ids := []int64{}
	if err := tx.SelectContext(ctx, &ids, `SELECT id FROM comments WHERE thread_id = $1`, threadID); err != nil {
		return nil, fmt.Errorf("list thread comment ids: %w", err)
	}
	return ids, nil
}

// SubtreeIDs returns commentID and every reply beneath it.
func (r *commentRepository) SubtreeIDs(ctx context.Context, tx *sqlx.Tx, commentID int64) ([]int64, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id FROM comments WHERE id = $1
			UNION
			SELECT c.id FROM comments c JOIN subtree s ON c.parent_comment_id = s.id
		)
		SELECT id FROM subtree
	`
	ids := []int64{}
	if err := tx.SelectContext(ctx, &ids, query, commentID); err != nil {
		return nil, fmt.Errorf("list comment subtree: %w", err)
	}
	return ids, nil
}

func (r *commentRepository) DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete comments by user: %w", err)
	}
	return result.RowsAffected()
}
