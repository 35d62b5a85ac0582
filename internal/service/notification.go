package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"golang.org/x/text/language"

	"readingclub/internal/database"
	"readingclub/internal/i18n"
	"readingclub/internal/metrics"
	"readingclub/internal/model"
	"readingclub/internal/queue"
	"readingclub/internal/repository"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

// NotificationService appends notifications for social events and owns their read state.
//
// Emitters run inside the caller's transaction so a notification exists if and only if
// the triggering mutation committed. Callers hand the returned rows to Announce after
// commit; announcing is best effort and never fails the request.
type NotificationService struct {
	notifRepo repository.NotificationRepository
	publisher queue.Publisher // Can be nil if Redis is not configured
	now       func() time.Time
}

func NewNotificationService(notifRepo repository.NotificationRepository, publisher queue.Publisher) *NotificationService {
	return &NotificationService{
		notifRepo: notifRepo,
		publisher: publisher,
		now:       time.Now,
	}
}

// =============================================================================
// EMITTERS
// =============================================================================

// NotifyLike tells the owner of a thread or comment about a like. Self-likes are suppressed.
func (s *NotificationService) NotifyLike(ctx context.Context, tx *sqlx.Tx, actor model.UserSummary, target model.Ref, ownerID int64) (*model.Notification, error) {
	if actor.ID == ownerID {
		return nil, nil
	}

	notifType := model.NotificationThreadLike
	if target.Type == model.RefComment {
		notifType = model.NotificationCommentLike
	}

	return s.emit(ctx, tx, ownerID, &actor.ID, notifType, model.NotificationData{
		ActorUsername: actor.Username,
		ContentType:   string(target.Type),
	}, &target)
}

// NotifyThreadReply tells the thread owner about a new top-level comment.
func (s *NotificationService) NotifyThreadReply(ctx context.Context, tx *sqlx.Tx, actor model.UserSummary, thread *model.Thread, comment *model.Comment) (*model.Notification, error) {
	if actor.ID == thread.UserID {
		return nil, nil
	}

	return s.emit(ctx, tx, thread.UserID, &actor.ID, model.NotificationThreadReply, model.NotificationData{
		ActorUsername: actor.Username,
		ThreadTitle:   thread.Title,
	}, &model.Ref{Type: model.RefComment, ID: comment.ID})
}

// NotifyCommentReply tells the parent comment's author about a reply.
func (s *NotificationService) NotifyCommentReply(ctx context.Context, tx *sqlx.Tx, actor model.UserSummary, parent *model.Comment, reply *model.Comment) (*model.Notification, error) {
	if actor.ID == parent.UserID {
		return nil, nil
	}

	return s.emit(ctx, tx, parent.UserID, &actor.ID, model.NotificationCommentReply, model.NotificationData{
		ActorUsername: actor.Username,
	}, &model.Ref{Type: model.RefComment, ID: reply.ID})
}

func (s *NotificationService) NotifyNewFollower(ctx context.Context, tx *sqlx.Tx, follower model.UserSummary, followeeID int64) (*model.Notification, error) {
	if follower.ID == followeeID {
		return nil, nil
	}

	return s.emit(ctx, tx, followeeID, &follower.ID, model.NotificationNewFollower, model.NotificationData{
		ActorUsername: follower.Username,
	}, &model.Ref{Type: model.RefUser, ID: followeeID})
}

func (s *NotificationService) NotifyFollowRequest(ctx context.Context, tx *sqlx.Tx, follower model.UserSummary, followeeID int64) (*model.Notification, error) {
	if follower.ID == followeeID {
		return nil, nil
	}

	return s.emit(ctx, tx, followeeID, &follower.ID, model.NotificationFollowRequest, model.NotificationData{
		ActorUsername: follower.Username,
	}, &model.Ref{Type: model.RefUser, ID: followeeID})
}

// NotifyFollowRequestAccepted goes to the follower; the followee is the actor.
func (s *NotificationService) NotifyFollowRequestAccepted(ctx context.Context, tx *sqlx.Tx, followee model.UserSummary, followerID int64) (*model.Notification, error) {
	if followee.ID == followerID {
		return nil, nil
	}

	return s.emit(ctx, tx, followerID, &followee.ID, model.NotificationFollowRequestAccepted, model.NotificationData{
		ActorUsername: followee.Username,
	}, &model.Ref{Type: model.RefUser, ID: followee.ID})
}

// NotifyUserBanned is never suppressed: moderators cannot be flagged, so actor and
// recipient always differ.
func (s *NotificationService) NotifyUserBanned(ctx context.Context, tx *sqlx.Tx, moderatorID, subjectID int64, reason string) (*model.Notification, error) {
	return s.emit(ctx, tx, subjectID, &moderatorID, model.NotificationUserBanned, model.NotificationData{
		Reason: reason,
	}, &model.Ref{Type: model.RefUser, ID: subjectID})
}

// NotifyContentModerated is never suppressed. related is what the owner can
// still open (the thread of a removed comment), or nil.
func (s *NotificationService) NotifyContentModerated(ctx context.Context, tx *sqlx.Tx, moderatorID, ownerID int64, target model.Ref, related *model.Ref, action, reason string) (*model.Notification, error) {
	return s.emit(ctx, tx, ownerID, &moderatorID, model.NotificationContentModerated, model.NotificationData{
		ContentType: string(target.Type),
		Action:      action,
		Reason:      reason,
	}, related)
}

func (s *NotificationService) emit(
	ctx context.Context,
	tx *sqlx.Tx,
	recipientID int64,
	actorID *int64,
	notifType model.NotificationType,
	data model.NotificationData,
	related *model.Ref,
) (*model.Notification, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	n, err := s.notifRepo.Create(ctx, tx, model.NewNotification{
		RecipientID: recipientID,
		ActorID:     actorID,
		Type:        notifType,
		Message:     i18n.Canonical(notifType, data),
		Data:        types.JSONText(raw),
		Related:     related,
	})
	if err != nil {
		return nil, err
	}

	metrics.NotificationsCreated.WithLabelValues(string(notifType)).Inc()
	return n, nil
}

// Announce publishes committed notifications to the delivery stream. nil entries
// (suppressed emits) are skipped.
func (s *NotificationService) Announce(ctx context.Context, created ...*model.Notification) {
	if s.publisher == nil {
		return
	}
	for _, n := range created {
		if n == nil {
			continue
		}
		event := queue.NewNotificationCreatedEvent(n.UserID, n.ID, string(n.Type), n.ActorID, n.Message)
		if _, err := s.publisher.Publish(ctx, queue.StreamNotifications, event); err != nil {
			log.Printf("[NotificationService] Failed to announce notification=%d recipient=%d: %v",
				n.ID, n.UserID, err)
		}
	}
}

func (s *NotificationService) announceUnread(ctx context.Context, userID int64) {
	if s.publisher == nil {
		return
	}
	if _, err := s.publisher.Publish(ctx, queue.StreamNotifications, queue.NewUnreadChangedEvent(userID)); err != nil {
		log.Printf("[NotificationService] Failed to announce unread change for user=%d: %v", userID, err)
	}
}

// =============================================================================
// READ STATE
// =============================================================================

// MarkAsRead is idempotent; read_at is refreshed on every call.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID int64) (*model.Notification, error) {
	n, err := s.notifRepo.MarkAsRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return nil, err
	}
	s.announceUnread(ctx, userID)
	return n, nil
}

func (s *NotificationService) MarkAsUnread(ctx context.Context, userID, notificationID int64) (*model.Notification, error) {
	n, err := s.notifRepo.MarkAsUnread(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	s.announceUnread(ctx, userID)
	return n, nil
}

// MarkAllAsRead returns how many notifications changed state.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID int64) (int64, error) {
	count, err := s.notifRepo.MarkAllAsRead(ctx, userID, s.now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.announceUnread(ctx, userID)
	}
	return count, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID int64) error {
	if err := s.notifRepo.Delete(ctx, userID, notificationID); err != nil {
		return err
	}
	s.announceUnread(ctx, userID)
	return nil
}

// DeleteAllRead leaves unread notifications in place.
func (s *NotificationService) DeleteAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.notifRepo.DeleteAllRead(ctx, userID)
}

// =============================================================================
// READS
// =============================================================================

// List returns the recipient's notifications newest first, rendered for locale.
func (s *NotificationService) List(ctx context.Context, userID int64, q model.NotificationListQuery, locale language.Tag) (*model.NotificationListResponse, error) {
	if q.Limit <= 0 {
		q.Limit = defaultNotificationLimit
	}
	if q.Limit > maxNotificationLimit {
		q.Limit = maxNotificationLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	limit := q.Limit
	q.Limit = limit + 1
	notifications, err := s.notifRepo.List(ctx, userID, q)
	if err != nil {
		return nil, err
	}

	hasMore := len(notifications) > limit
	if hasMore {
		notifications = notifications[:limit]
	}

	for i := range notifications {
		notifications[i].LocalizedMessage = localize(notifications[i], locale)
	}

	unread, err := s.notifRepo.GetUnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &model.NotificationListResponse{
		Notifications: notifications,
		UnreadCount:   unread,
		HasMore:       hasMore,
	}, nil
}

// UnreadCount is the badge count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.notifRepo.GetUnreadCount(ctx, userID)
}

// localize re-renders from persisted data; rows with unreadable data keep the stored message.
func localize(n model.Notification, locale language.Tag) string {
	var data model.NotificationData
	if len(n.Data) == 0 || n.Data.Unmarshal(&data) != nil {
		return n.Message
	}
	return i18n.Render(locale, n.Type, data)
}

// commitAndAnnounce runs fn in a transaction and announces whatever it emitted once
// the transaction has committed.
func commitAndAnnounce(ctx context.Context, txr database.Transactor, notifs *NotificationService, fn func(tx *sqlx.Tx, emit func(*model.Notification)) error) error {
	var created []*model.Notification
	err := txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		created = created[:0]
		return fn(tx, func(n *model.Notification) {
			if n != nil {
				created = append(created, n)
			}
		})
	})
	if err != nil {
		return err
	}
	notifs.Announce(ctx, created...)
	return nil
}
