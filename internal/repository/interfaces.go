package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/model"
)

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.User, error)
	UpdatePrivacy(ctx context.Context, id int64, s model.PrivacySettings, now time.Time) error
	// Flag transitions active -> flagged; false means the user was already
	// flagged or holds a moderator/admin role.
	Flag(ctx context.Context, tx *sqlx.Tx, id, moderatorID int64, reason string, now time.Time) (bool, error)
	// Unflag transitions flagged -> active; false means the user was not flagged.
	Unflag(ctx context.Context, id int64, now time.Time) (bool, error)
	ListFlagged(ctx context.Context) ([]model.FlaggedUser, error)
	SetRole(ctx context.Context, tx *sqlx.Tx, id int64, from, to model.Role, now time.Time) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type FollowRepository interface {
	// Create inserts the edge; false means it already existed.
	Create(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (bool, error)
	Delete(ctx context.Context, followerID, followeeID int64) error
	Exists(ctx context.Context, followerID, followeeID int64) (bool, error)
	GetFollowers(ctx context.Context, userID int64, limit, offset int) ([]model.UserSummary, error)
	GetFollowing(ctx context.Context, userID int64, limit, offset int) ([]model.UserSummary, error)
	CheckFollows(ctx context.Context, followerID int64, followeeIDs []int64) (map[int64]bool, error)
	DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

type FollowRequestRepository interface {
	// UpsertPending inserts a pending request or resets an accepted/rejected one.
	// Returns model.ErrDuplicateRequest if the existing row is already pending.
	UpsertPending(ctx context.Context, tx *sqlx.Tx, followerID, followeeID int64) (*model.FollowRequest, error)
	// Transition moves a pending request owned by followeeID to status.
	// Returns model.ErrFollowRequestNotFound if no such pending request exists.
	Transition(ctx context.Context, tx *sqlx.Tx, requestID, followeeID int64, status model.FollowRequestStatus) (*model.FollowRequest, error)
	SetStatus(ctx context.Context, tx *sqlx.Tx, requestID int64, status model.FollowRequestStatus) error
	DeletePending(ctx context.Context, followerID, followeeID int64) (bool, error)
	HasPending(ctx context.Context, followerID, followeeID int64) (bool, error)
	ListPending(ctx context.Context, followeeID int64) ([]model.FollowRequest, error)
	DeleteAllForUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, n model.NewNotification) (*model.Notification, error)
	List(ctx context.Context, userID int64, q model.NotificationListQuery) ([]model.Notification, error)
	GetUnreadCount(ctx context.Context, userID int64) (int, error)
	MarkAsRead(ctx context.Context, userID, id int64, now time.Time) (*model.Notification, error)
	MarkAsUnread(ctx context.Context, userID, id int64) (*model.Notification, error)
	MarkAllAsRead(ctx context.Context, userID int64, now time.Time) (int64, error)
	Delete(ctx context.Context, userID, id int64) error
	DeleteAllRead(ctx context.Context, userID int64) (int64, error)
	// DeleteInvolvingUser removes rows where the user is recipient, actor or related entity.
	DeleteInvolvingUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
	DeleteRelated(ctx context.Context, tx *sqlx.Tx, refType model.RefType, ids []int64) (int64, error)
}

type LikeRepository interface {
	// Insert adds the like; false means the row already existed.
	Insert(ctx context.Context, tx *sqlx.Tx, userID int64, target model.Ref) (bool, error)
	Delete(ctx context.Context, tx *sqlx.Tx, userID int64, target model.Ref) (bool, error)
	Count(ctx context.Context, target model.Ref) (int, error)
	Exists(ctx context.Context, userID int64, target model.Ref) (bool, error)
	DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
	DeleteForTargets(ctx context.Context, tx *sqlx.Tx, targetType model.RefType, ids []int64) (int64, error)
}

type ThreadRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, t *model.Thread) error
	GetByID(ctx context.Context, id int64) (*model.Thread, error)
	List(ctx context.Context, f model.ThreadFilter) ([]model.Thread, error)
	Update(ctx context.Context, t *model.Thread) error
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	IDsByUser(ctx context.Context, tx *sqlx.Tx, userID int64) ([]int64, error)
	DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, c *model.Comment) error
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	ListByThread(ctx context.Context, threadID int64) ([]model.Comment, error)
	UpdateContent(ctx context.Context, id int64, content string, now time.Time) (time.Time, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	// IDsInScope returns comments written by userID or posted under threadIDs,
	// plus every reply beneath them.
	IDsInScope(ctx context.Context, tx *sqlx.Tx, userID int64, threadIDs []int64) ([]int64, error)
	IDsByThread(ctx context.Context, tx *sqlx.Tx, threadID int64) ([]int64, error)
	SubtreeIDs(ctx context.Context, tx *sqlx.Tx, commentID int64) ([]int64, error)
	DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

type ReadingProgressRepository interface {
	Upsert(ctx context.Context, rp *model.ReadingProgress) error
	ListByUser(ctx context.Context, userID int64) ([]model.ReadingProgress, error)
	DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

// DeviceTokenRepository stores push tokens. A token belongs to at most one user.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, userID int64, token, platform string) error
	GetByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error)
	Delete(ctx context.Context, userID int64, token string) (bool, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
	DeleteByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

// StatsRepository answers the admin dashboard counters.
type StatsRepository interface {
	Overview(ctx context.Context, now time.Time) (*model.StatsOverview, error)
	UsersByRole(ctx context.Context) (map[model.Role]int, error)
	MostActiveUsers(ctx context.Context, limit int) ([]model.ActiveUser, error)
	PopularBooks(ctx context.Context, limit int) ([]model.BookActivity, error)
}
