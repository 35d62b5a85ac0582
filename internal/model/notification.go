package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType enumerates everything the fan-out engine can emit.
type NotificationType string

const (
	NotificationThreadLike            NotificationType = "thread_like"
	NotificationCommentLike           NotificationType = "comment_like"
	NotificationThreadReply           NotificationType = "thread_reply"
	NotificationCommentReply          NotificationType = "comment_reply"
	NotificationNewFollower           NotificationType = "new_follower"
	NotificationFollowRequest         NotificationType = "follow_request"
	NotificationFollowRequestAccepted NotificationType = "follow_request_accepted"
	NotificationContentModerated      NotificationType = "content_moderated"
	NotificationUserBanned            NotificationType = "user_banned"
)

// RefType tags the entity a polymorphic reference points at.
type RefType string

const (
	RefUser    RefType = "user"
	RefThread  RefType = "thread"
	RefComment RefType = "comment"
)

// Ref is a typed polymorphic reference.
type Ref struct {
	Type RefType `json:"type"`
	ID   int64   `json:"id"`
}

// Notification represents a single notification record in the database.
// Only IsRead/ReadAt change after insert.
type Notification struct {
	ID          int64            `db:"id" json:"id"`
	UserID      int64            `db:"user_id" json:"-"`                  // Recipient
	ActorID     *int64           `db:"actor_id" json:"actor_id,omitempty"` // Who triggered it
	Type        NotificationType `db:"type" json:"type"`
	Message     string           `db:"message" json:"message"`
	Data        types.JSONText   `db:"data" json:"data"`
	RelatedType *RefType         `db:"related_type" json:"related_type,omitempty"`
	RelatedID   *int64           `db:"related_id" json:"related_id,omitempty"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	ReadAt      *time.Time       `db:"read_at" json:"read_at"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`

	// Joined field for display
	Actor *UserSummary `json:"actor,omitempty"`
	// Message rendered for the requested locale
	LocalizedMessage string `json:"localized_message,omitempty"`
}

// NotificationData is the interpolation data persisted next to the canonical message.
type NotificationData struct {
	ActorUsername string `json:"actor_username,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	ThreadTitle   string `json:"thread_title,omitempty"`
	Action        string `json:"action,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// NewNotification is the input of a fan-out append.
type NewNotification struct {
	RecipientID int64
	ActorID     *int64
	Type        NotificationType
	Message     string
	Data        types.JSONText
	Related     *Ref
}

// NotificationListResponse is the paginated notification list response.
type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
	HasMore       bool           `json:"has_more"`
}

// NotificationListQuery holds the list filters.
type NotificationListQuery struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
