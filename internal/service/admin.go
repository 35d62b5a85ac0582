package service

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/database"
	"readingclub/internal/metrics"
	"readingclub/internal/model"
	"readingclub/internal/repository"
)

const statsTopN = 10

// AdminService manages roles and serves the dashboard statistics.
type AdminService struct {
	userRepo  repository.UserRepository
	statsRepo repository.StatsRepository
	txr       database.Transactor
	now       func() time.Time
}

func NewAdminService(userRepo repository.UserRepository, statsRepo repository.StatsRepository, txr database.Transactor) *AdminService {
	return &AdminService{
		userRepo:  userRepo,
		statsRepo: statsRepo,
		txr:       txr,
		now:       time.Now,
	}
}

func (s *AdminService) requireAdmin(ctx context.Context, adminID int64) (*model.User, error) {
	admin, err := s.userRepo.GetByID(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if admin.Role != model.RoleAdmin {
		return nil, model.ErrAdminRequired
	}
	return admin, nil
}

// MakeAdmin promotes subjectID. A banned user cannot be promoted, which keeps
// every flagged account an ordinary user.
func (s *AdminService) MakeAdmin(ctx context.Context, adminID, subjectID int64) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}

	err := s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		subject, err := s.userRepo.GetByID(ctx, subjectID)
		if err != nil {
			return err
		}
		if subject.Role == model.RoleAdmin {
			return model.ErrAlreadyAdmin
		}
		if subject.IsFlagged {
			return model.ErrPromoteFlagged
		}

		// The update re-checks role and flag so a concurrent ban or promotion wins.
		changed, err := s.userRepo.SetRole(ctx, tx, subjectID, subject.Role, model.RoleAdmin, s.now())
		if err != nil {
			return err
		}
		if !changed {
			return s.roleConflict(ctx, subjectID, model.ErrAlreadyAdmin)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ModerationActions.WithLabelValues("make_admin").Inc()
	log.Printf("[AdminService] User promoted: subject=%d admin=%d", subjectID, adminID)
	return nil
}

// RemoveAdmin demotes subjectID to an ordinary user. Admins cannot demote
// themselves, so at least one admin always remains.
func (s *AdminService) RemoveAdmin(ctx context.Context, adminID, subjectID int64) error {
	if _, err := s.requireAdmin(ctx, adminID); err != nil {
		return err
	}
	if adminID == subjectID {
		return model.ErrCannotDemoteSelf
	}

	err := s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.userRepo.GetByID(ctx, subjectID); err != nil {
			return err
		}
		changed, err := s.userRepo.SetRole(ctx, tx, subjectID, model.RoleAdmin, model.RoleUser, s.now())
		if err != nil {
			return err
		}
		if !changed {
			return model.ErrNotAdmin
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ModerationActions.WithLabelValues("remove_admin").Inc()
	log.Printf("[AdminService] User demoted: subject=%d admin=%d", subjectID, adminID)
	return nil
}

// roleConflict explains a lost conditional update by re-reading the subject.
func (s *AdminService) roleConflict(ctx context.Context, subjectID int64, fallback error) error {
	current, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return err
	}
	if current.IsFlagged {
		return model.ErrPromoteFlagged
	}
	return fallback
}

// Statistics returns the dashboard counters. Moderators and admins may read it.
func (s *AdminService) Statistics(ctx context.Context, viewerID int64) (*model.Statistics, error) {
	if _, err := requireModerator(ctx, s.userRepo, viewerID); err != nil {
		return nil, err
	}

	overview, err := s.statsRepo.Overview(ctx, s.now())
	if err != nil {
		return nil, err
	}
	byRole, err := s.statsRepo.UsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.statsRepo.MostActiveUsers(ctx, statsTopN)
	if err != nil {
		return nil, err
	}
	books, err := s.statsRepo.PopularBooks(ctx, statsTopN)
	if err != nil {
		return nil, err
	}

	return &model.Statistics{
		Overview:    *overview,
		UsersByRole: byRole,
		RecentActivity: model.RecentActivity{
			NewUsers:    overview.NewUsers7d,
			NewThreads:  overview.NewThreads7d,
			NewComments: overview.NewComments7d,
		},
		MostActiveUsers: active,
		PopularBooks:    books,
	}, nil
}
