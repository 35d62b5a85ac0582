package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/database"
	"readingclub/internal/metrics"
	"readingclub/internal/model"
	"readingclub/internal/repository"
)

// ModerationService moves users between active and flagged and lets moderators
// remove content.
type ModerationService struct {
	userRepo      repository.UserRepository
	content       *ContentService
	notifications *NotificationService
	txr           database.Transactor
	now           func() time.Time
}

func NewModerationService(
	userRepo repository.UserRepository,
	content *ContentService,
	notifications *NotificationService,
	txr database.Transactor,
) *ModerationService {
	return &ModerationService{
		userRepo:      userRepo,
		content:       content,
		notifications: notifications,
		txr:           txr,
		now:           time.Now,
	}
}

func (s *ModerationService) requireModerator(ctx context.Context, moderatorID int64) (*model.User, error) {
	return requireModerator(ctx, s.userRepo, moderatorID)
}

func requireModerator(ctx context.Context, users repository.UserRepository, id int64) (*model.User, error) {
	u, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.IsModerator() {
		return nil, model.ErrModeratorRequired
	}
	return u, nil
}

// FlagUser bans subjectID and notifies them. The flagged transition and the
// notification commit together.
func (s *ModerationService) FlagUser(ctx context.Context, moderatorID, subjectID int64, reason string) error {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return model.ErrReasonRequired
	}

	subject, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if subject.IsModerator() {
		return model.ErrProtectedTarget
	}
	if subject.IsFlagged {
		return model.ErrAlreadyFlagged
	}

	err = commitAndAnnounce(ctx, s.txr, s.notifications, func(tx *sqlx.Tx, emit func(*model.Notification)) error {
		// A concurrent flag between the read above and this update loses here.
		flagged, err := s.userRepo.Flag(ctx, tx, subjectID, moderatorID, reason, s.now())
		if err != nil {
			return err
		}
		if !flagged {
			// Lost a race: either another moderator flagged first or an admin
			// promoted the subject.
			current, err := s.userRepo.GetByID(ctx, subjectID)
			if err == nil && current.IsModerator() {
				return model.ErrProtectedTarget
			}
			return model.ErrAlreadyFlagged
		}

		n, err := s.notifications.NotifyUserBanned(ctx, tx, moderatorID, subjectID, reason)
		if err != nil {
			return err
		}
		emit(n)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ModerationActions.WithLabelValues("flag_user").Inc()
	log.Printf("[ModerationService] User flagged: subject=%d moderator=%d", subjectID, moderatorID)
	return nil
}

// UnflagUser clears the ban. No notification is sent.
func (s *ModerationService) UnflagUser(ctx context.Context, moderatorID, subjectID int64) error {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return err
	}

	if _, err := s.userRepo.GetByID(ctx, subjectID); err != nil {
		return err
	}

	unflagged, err := s.userRepo.Unflag(ctx, subjectID, s.now())
	if err != nil {
		return err
	}
	if !unflagged {
		return model.ErrNotFlagged
	}

	metrics.ModerationActions.WithLabelValues("unflag_user").Inc()
	log.Printf("[ModerationService] User unflagged: subject=%d moderator=%d", subjectID, moderatorID)
	return nil
}

// ListFlagged returns the moderation queue.
func (s *ModerationService) ListFlagged(ctx context.Context, moderatorID int64) ([]model.FlaggedUser, error) {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	return s.userRepo.ListFlagged(ctx)
}

// RemoveContent deletes a thread or comment and notifies its owner.
func (s *ModerationService) RemoveContent(ctx context.Context, moderatorID int64, target model.Ref, reason string) error {
	if _, err := s.requireModerator(ctx, moderatorID); err != nil {
		return err
	}
	if !target.Type.IsLikeable() {
		return model.ErrInvalidTarget
	}

	ownerID, err := s.content.OwnerOf(ctx, target)
	if err != nil {
		return err
	}

	// The removed row is gone after the transaction; a comment's notice links
	// to its thread instead.
	var related *model.Ref
	if target.Type == model.RefComment {
		c, err := s.content.commentRepo.GetByID(ctx, target.ID)
		if err != nil {
			return err
		}
		related = &model.Ref{Type: model.RefThread, ID: c.ThreadID}
	}

	reason = strings.TrimSpace(reason)
	err = commitAndAnnounce(ctx, s.txr, s.notifications, func(tx *sqlx.Tx, emit func(*model.Notification)) error {
		if err := s.content.deleteInTx(ctx, tx, target); err != nil {
			return err
		}

		n, err := s.notifications.NotifyContentModerated(ctx, tx, moderatorID, ownerID, target, related, "removed", reason)
		if err != nil {
			return err
		}
		emit(n)
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ModerationActions.WithLabelValues("remove_" + string(target.Type)).Inc()
	log.Printf("[ModerationService] Content removed: %s=%d owner=%d moderator=%d",
		target.Type, target.ID, ownerID, moderatorID)
	return nil
}
