package model

import (
	"time"
)

// Thread is a discussion about a book.
type Thread struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"user_id"`
	BookID     int64     `db:"book_id" json:"book_id"`
	Title      string    `db:"title" json:"title"`
	Content    string    `db:"content" json:"content"`
	Scope      string    `db:"scope" json:"scope"`
	PageNumber *int      `db:"page_number" json:"page_number,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	Author *UserSummary `json:"author,omitempty"`
}

// AuthorID implements Authored.
func (t Thread) AuthorID() int64 { return t.UserID }

// Comment represents a comment on a thread.
type Comment struct {
	ID              int64     `db:"id" json:"id"`
	ThreadID        int64     `db:"thread_id" json:"thread_id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	ParentCommentID *int64    `db:"parent_comment_id" json:"parent_comment_id,omitempty"`
	Content         string    `db:"content" json:"content"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`

	Author *UserSummary `json:"author,omitempty"` // Joined field
}

// AuthorID implements Authored.
func (c Comment) AuthorID() int64 { return c.UserID }

// Authored is anything listed under the author's activity axis.
type Authored interface {
	AuthorID() int64
}

// ThreadFilter narrows a thread listing.
type ThreadFilter struct {
	BookID *int64
	UserID *int64
	Limit  int
	Offset int
}

// CreateThreadRequest is the request body for creating a thread.
type CreateThreadRequest struct {
	BookID     int64  `json:"book_id" validate:"required,gt=0"`
	Title      string `json:"title" validate:"required,max=255"`
	Content    string `json:"content" validate:"required"`
	Scope      string `json:"scope" validate:"omitempty,oneof=general page"`
	PageNumber *int   `json:"page_number" validate:"omitempty,min=1"`
}

// UpdateThreadRequest edits a thread; nil fields are left unchanged.
type UpdateThreadRequest struct {
	Title      *string `json:"title" validate:"omitempty,max=255"`
	Content    *string `json:"content"`
	Scope      *string `json:"scope" validate:"omitempty,oneof=general page"`
	PageNumber *int    `json:"page_number" validate:"omitempty,min=1"`
}

// UpdateCommentRequest replaces a comment body.
type UpdateCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content         string `json:"content" validate:"required"`
	ParentCommentID *int64 `json:"parent_comment_id,omitempty"`
}

// ModerateContentRequest is the body of a moderator removal.
type ModerateContentRequest struct {
	TargetType RefType `json:"target_type" validate:"required,oneof=thread comment"`
	TargetID   int64   `json:"target_id" validate:"required,gt=0"`
	Reason     string  `json:"reason" validate:"max=1000"`
}

// ReadingStatus of a book on a user's shelf.
type ReadingStatus string

const (
	ReadingWantToRead ReadingStatus = "want_to_read"
	ReadingReading    ReadingStatus = "reading"
	ReadingCompleted  ReadingStatus = "completed"
)

// ReadingProgress is one book on a user's shelf.
type ReadingProgress struct {
	ID          int64         `db:"id" json:"id"`
	UserID      int64         `db:"user_id" json:"user_id"`
	BookID      int64         `db:"book_id" json:"book_id"`
	Status      ReadingStatus `db:"status" json:"status"`
	CurrentPage int           `db:"current_page" json:"current_page"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// UpdateReadingProgressRequest upserts one shelf entry.
type UpdateReadingProgressRequest struct {
	BookID      int64         `json:"book_id" validate:"required,gt=0"`
	Status      ReadingStatus `json:"status" validate:"required,oneof=want_to_read reading completed"`
	CurrentPage int           `json:"current_page" validate:"min=0"`
}
