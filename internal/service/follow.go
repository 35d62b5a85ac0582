package service

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/database"
	"readingclub/internal/metrics"
	"readingclub/internal/model"
	"readingclub/internal/repository"
	"readingclub/internal/visibility"
)

const (
	defaultFollowListLimit = 20
	maxFollowListLimit     = 100
)

// FollowService owns follow edges and follow requests.
type FollowService struct {
	userRepo      repository.UserRepository
	followRepo    repository.FollowRepository
	requestRepo   repository.FollowRequestRepository
	notifications *NotificationService
	txr           database.Transactor
}

func NewFollowService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	requestRepo repository.FollowRequestRepository,
	notifications *NotificationService,
	txr database.Transactor,
) *FollowService {
	return &FollowService{
		userRepo:      userRepo,
		followRepo:    followRepo,
		requestRepo:   requestRepo,
		notifications: notifications,
		txr:           txr,
	}
}

// Follow either sends a follow request or follows directly, depending on the
// followee's require_follow_approval. The request row is upserted in both cases.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID int64) (model.FollowOutcome, error) {
	if followerID == followeeID {
		return "", model.ErrCannotFollowSelf
	}

	followee, err := s.userRepo.GetByID(ctx, followeeID)
	if err != nil {
		return "", err
	}
	// Banned users are not followable and look absent.
	if followee.IsFlagged {
		return "", model.ErrUserNotFound
	}
	if !visibility.CanBeFollowed(followee) {
		return "", model.ErrFollowDisabled
	}

	follower, err := s.userRepo.GetByID(ctx, followerID)
	if err != nil {
		return "", err
	}

	following, err := s.followRepo.Exists(ctx, followerID, followeeID)
	if err != nil {
		return "", err
	}
	if following {
		return "", model.ErrAlreadyFollowing
	}

	var outcome model.FollowOutcome
	err = commitAndAnnounce(ctx, s.txr, s.notifications, func(tx *sqlx.Tx, emit func(*model.Notification)) error {
		req, err := s.requestRepo.UpsertPending(ctx, tx, followerID, followeeID)
		if err != nil {
			return err
		}

		if followee.RequireFollowApproval {
			n, err := s.notifications.NotifyFollowRequest(ctx, tx, follower.Summary(), followeeID)
			if err != nil {
				return err
			}
			emit(n)
			outcome = model.FollowOutcomeRequestSent
			return nil
		}

		inserted, err := s.followRepo.Create(ctx, tx, followerID, followeeID)
		if err != nil {
			return err
		}
		if !inserted {
			return model.ErrAlreadyFollowing
		}

		if err := s.requestRepo.SetStatus(ctx, tx, req.ID, model.FollowRequestAccepted); err != nil {
			return err
		}

		n, err := s.notifications.NotifyNewFollower(ctx, tx, follower.Summary(), followeeID)
		if err != nil {
			return err
		}
		emit(n)
		outcome = model.FollowOutcomeFollowed
		return nil
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return "", model.ErrDuplicateRequest
		}
		return "", err
	}

	metrics.FollowActions.WithLabelValues(string(outcome)).Inc()
	log.Printf("[FollowService] Follow: follower=%d followee=%d outcome=%s", followerID, followeeID, outcome)
	return outcome, nil
}

// Unfollow is idempotent.
func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	if err := s.followRepo.Delete(ctx, followerID, followeeID); err != nil {
		return err
	}
	metrics.FollowActions.WithLabelValues("unfollowed").Inc()
	return nil
}

// CancelRequest withdraws the follower's pending request.
func (s *FollowService) CancelRequest(ctx context.Context, followerID, followeeID int64) error {
	deleted, err := s.requestRepo.DeletePending(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !deleted {
		return model.ErrFollowRequestNotFound
	}
	metrics.FollowActions.WithLabelValues("request_cancelled").Inc()
	return nil
}

// AcceptRequest accepts a pending request addressed to followeeID. After commit the
// request is accepted and the edge exists, or neither changed.
func (s *FollowService) AcceptRequest(ctx context.Context, followeeID, requestID int64) error {
	followee, err := s.userRepo.GetByID(ctx, followeeID)
	if err != nil {
		return err
	}

	err = commitAndAnnounce(ctx, s.txr, s.notifications, func(tx *sqlx.Tx, emit func(*model.Notification)) error {
		req, err := s.requestRepo.Transition(ctx, tx, requestID, followeeID, model.FollowRequestAccepted)
		if err != nil {
			return err
		}

		// The edge may already exist; that is not an error here.
		if _, err := s.followRepo.Create(ctx, tx, req.FollowerID, req.FolloweeID); err != nil {
			return err
		}

		n, err := s.notifications.NotifyFollowRequestAccepted(ctx, tx, followee.Summary(), req.FollowerID)
		if err != nil {
			return err
		}
		emit(n)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.FollowActions.WithLabelValues("request_accepted").Inc()
	return nil
}

// RejectRequest marks the request rejected. No edge, no notification.
func (s *FollowService) RejectRequest(ctx context.Context, followeeID, requestID int64) error {
	err := s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.requestRepo.Transition(ctx, tx, requestID, followeeID, model.FollowRequestRejected)
		return err
	})
	if err != nil {
		return err
	}

	metrics.FollowActions.WithLabelValues("request_rejected").Inc()
	return nil
}

// PendingRequests lists requests waiting for followeeID's decision.
func (s *FollowService) PendingRequests(ctx context.Context, followeeID int64) ([]model.FollowRequest, error) {
	return s.requestRepo.ListPending(ctx, followeeID)
}

func (s *FollowService) IsFollowing(ctx context.Context, followerID, followeeID int64) (bool, error) {
	return s.followRepo.Exists(ctx, followerID, followeeID)
}

// RelationshipStatus reports the viewer's edge and pending request towards subjectID.
func (s *FollowService) RelationshipStatus(ctx context.Context, viewerID, subjectID int64) (*model.Relationship, error) {
	following, err := s.followRepo.Exists(ctx, viewerID, subjectID)
	if err != nil {
		return nil, err
	}
	pending, err := s.requestRepo.HasPending(ctx, viewerID, subjectID)
	if err != nil {
		return nil, err
	}
	return &model.Relationship{IsFollowing: following, HasPendingRequest: pending}, nil
}

// GetFollowers lists users following subjectID. viewer may be nil.
func (s *FollowService) GetFollowers(ctx context.Context, subjectID int64, viewer *model.User, limit, offset int) (*model.FollowListResponse, error) {
	return s.listEdges(ctx, subjectID, viewer, limit, offset, s.followRepo.GetFollowers)
}

// GetFollowing lists users subjectID follows. viewer may be nil.
func (s *FollowService) GetFollowing(ctx context.Context, subjectID int64, viewer *model.User, limit, offset int) (*model.FollowListResponse, error) {
	return s.listEdges(ctx, subjectID, viewer, limit, offset, s.followRepo.GetFollowing)
}

type edgeLister func(ctx context.Context, userID int64, limit, offset int) ([]model.UserSummary, error)

// listEdges gates a follow list behind the subject's profile visibility.
func (s *FollowService) listEdges(ctx context.Context, subjectID int64, viewer *model.User, limit, offset int, list edgeLister) (*model.FollowListResponse, error) {
	subject, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	visible, err := s.canViewProfile(ctx, viewer, subject)
	if err != nil {
		return nil, err
	}
	if !visible {
		return nil, model.ErrProfileHidden
	}

	if limit <= 0 {
		limit = defaultFollowListLimit
	}
	if limit > maxFollowListLimit {
		limit = maxFollowListLimit
	}
	if offset < 0 {
		offset = 0
	}

	users, err := list(ctx, subjectID, limit+1, offset)
	if err != nil {
		return nil, err
	}

	hasMore := len(users) > limit
	if hasMore {
		users = users[:limit]
	}

	if viewer != nil {
		users = s.enrichWithFollowStatus(ctx, viewer.ID, users)
	}

	return &model.FollowListResponse{Users: users, HasMore: hasMore}, nil
}

// canViewProfile resolves the follower predicate up front so the policy stays pure.
func (s *FollowService) canViewProfile(ctx context.Context, viewer, subject *model.User) (bool, error) {
	isFollower, err := followerPredicate(ctx, s.followRepo, viewer, subject, subject.ProfileVisibility)
	if err != nil {
		return false, err
	}
	return visibility.CanViewProfile(viewer, subject, isFollower), nil
}

// enrichWithFollowStatus does one batch lookup for the whole page. A failed lookup
// degrades to is_following=false rather than failing the list.
func (s *FollowService) enrichWithFollowStatus(ctx context.Context, viewerID int64, users []model.UserSummary) []model.UserSummary {
	if len(users) == 0 {
		return users
	}

	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	follows, err := s.followRepo.CheckFollows(ctx, viewerID, ids)
	if err != nil {
		log.Printf("[FollowService] Failed to check follow status for viewer=%d: %v", viewerID, err)
		return users
	}

	for i := range users {
		users[i].IsFollowing = follows[users[i].ID]
	}
	return users
}

// followerPredicate looks the edge up only when the setting actually needs it.
func followerPredicate(ctx context.Context, follows repository.FollowRepository, viewer, subject *model.User, setting model.Visibility) (visibility.FollowerFunc, error) {
	if viewer == nil || viewer.ID == subject.ID || setting != model.VisibilityFollowers {
		return nil, nil
	}
	following, err := follows.Exists(ctx, viewer.ID, subject.ID)
	if err != nil {
		return nil, err
	}
	return visibility.FollowSet(viewer.ID, map[int64]bool{subject.ID: following}), nil
}
