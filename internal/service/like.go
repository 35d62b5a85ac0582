package service

import (
	"context"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/database"
	"readingclub/internal/metrics"
	"readingclub/internal/model"
	"readingclub/internal/repository"
)

// LikeService toggles likes on threads and comments.
type LikeService struct {
	likeRepo      repository.LikeRepository
	userRepo      repository.UserRepository
	content       *ContentService
	notifications *NotificationService
	txr           database.Transactor
}

func NewLikeService(
	likeRepo repository.LikeRepository,
	userRepo repository.UserRepository,
	content *ContentService,
	notifications *NotificationService,
	txr database.Transactor,
) *LikeService {
	return &LikeService{
		likeRepo:      likeRepo,
		userRepo:      userRepo,
		content:       content,
		notifications: notifications,
		txr:           txr,
	}
}

func (s *LikeService) ownerOf(ctx context.Context, target model.Ref) (int64, error) {
	if !target.Type.IsLikeable() {
		return 0, model.ErrInvalidTarget
	}
	ownerID, err := s.content.OwnerOf(ctx, target)
	if err != nil {
		if isNotFound(err) {
			return 0, model.ErrTargetNotFound
		}
		return 0, err
	}
	return ownerID, nil
}

// Toggle likes target if userID has not liked it yet, otherwise removes the like.
//
// The unique (user, target) index arbitrates concurrent toggles: exactly one insert
// wins, and a losing insert turns into a delete. Two racing toggles therefore end with
// no row, matching two sequential toggles.
func (s *LikeService) Toggle(ctx context.Context, userID int64, target model.Ref) (bool, error) {
	ownerID, err := s.ownerOf(ctx, target)
	if err != nil {
		return false, err
	}

	actor, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}

	var liked bool
	err = commitAndAnnounce(ctx, s.txr, s.notifications, func(tx *sqlx.Tx, emit func(*model.Notification)) error {
		inserted, err := s.likeRepo.Insert(ctx, tx, userID, target)
		if err != nil {
			return err
		}

		if !inserted {
			liked = false
			_, err := s.likeRepo.Delete(ctx, tx, userID, target)
			return err
		}

		liked = true
		n, err := s.notifications.NotifyLike(ctx, tx, actor.Summary(), target, ownerID)
		if err != nil {
			return err
		}
		emit(n)
		return nil
	})
	if err != nil {
		return false, err
	}

	state := "unliked"
	if liked {
		state = "liked"
	}
	metrics.LikeToggles.WithLabelValues(string(target.Type), state).Inc()
	return liked, nil
}

// Status returns the like count of target and whether viewerID liked it.
// viewerID may be nil for anonymous viewers.
func (s *LikeService) Status(ctx context.Context, viewerID *int64, target model.Ref) (*model.LikeStatus, error) {
	if _, err := s.ownerOf(ctx, target); err != nil {
		return nil, err
	}

	count, err := s.likeRepo.Count(ctx, target)
	if err != nil {
		return nil, err
	}

	status := &model.LikeStatus{LikeCount: count}
	if viewerID != nil {
		status.UserLiked, err = s.likeRepo.Exists(ctx, *viewerID, target)
		if err != nil {
			return nil, err
		}
	}
	return status, nil
}
