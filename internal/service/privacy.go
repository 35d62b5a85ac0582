package service

import (
	"context"
	"errors"
	"time"

	"readingclub/internal/model"
	"readingclub/internal/repository"
	"readingclub/internal/visibility"
)

// PrivacyService exposes a user's privacy settings and the views they gate.
type PrivacyService struct {
	userRepo     repository.UserRepository
	followRepo   repository.FollowRepository
	requestRepo  repository.FollowRequestRepository
	progressRepo repository.ReadingProgressRepository
	now          func() time.Time
}

func NewPrivacyService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	requestRepo repository.FollowRequestRepository,
	progressRepo repository.ReadingProgressRepository,
) *PrivacyService {
	return &PrivacyService{
		userRepo:     userRepo,
		followRepo:   followRepo,
		requestRepo:  requestRepo,
		progressRepo: progressRepo,
		now:          time.Now,
	}
}

// Viewer loads the authenticated user a request acts as. A token for an account
// that no longer exists reads as anonymous.
func (s *PrivacyService) Viewer(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *PrivacyService) GetSettings(ctx context.Context, userID int64) (*model.PrivacySettings, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	settings := user.Privacy()
	return &settings, nil
}

// UpdateSettings applies a partial update; omitted fields keep their value.
func (s *PrivacyService) UpdateSettings(ctx context.Context, userID int64, req model.UpdatePrivacyRequest) (*model.PrivacySettings, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	settings, err := req.Apply(user.Privacy())
	if err != nil {
		return nil, err
	}

	if err := s.userRepo.UpdatePrivacy(ctx, userID, settings, s.now()); err != nil {
		return nil, err
	}
	return &settings, nil
}

// GetProfile returns subjectID's profile as viewer sees it. A hidden profile is
// reported as not found. viewer may be nil.
func (s *PrivacyService) GetProfile(ctx context.Context, viewer *model.User, subjectID int64) (*model.ProfileResponse, error) {
	subject, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	resp := &model.ProfileResponse{User: subject}

	var isFollower visibility.FollowerFunc
	if viewer != nil && viewer.ID != subject.ID {
		following, err := s.followRepo.Exists(ctx, viewer.ID, subject.ID)
		if err != nil {
			return nil, err
		}
		resp.IsFollowing = following
		isFollower = visibility.FollowSet(viewer.ID, map[int64]bool{subject.ID: following})
	}

	if !visibility.CanViewProfile(viewer, subject, isFollower) {
		return nil, model.ErrProfileHidden
	}

	if viewer != nil && viewer.ID != subject.ID && !resp.IsFollowing {
		resp.HasPendingRequest, err = s.requestRepo.HasPending(ctx, viewer.ID, subject.ID)
		if err != nil {
			return nil, err
		}
	}

	resp.CanViewReadingProgress = visibility.CanViewReadingProgress(viewer, subject, isFollower)
	resp.CanViewActivity = visibility.CanViewActivity(viewer, subject, isFollower)
	return resp, nil
}

// ReadingProgress lists subjectID's shelf, gated by the reading-progress axis.
func (s *PrivacyService) ReadingProgress(ctx context.Context, viewer *model.User, subjectID int64) ([]model.ReadingProgress, error) {
	subject, err := s.userRepo.GetByID(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	isFollower, err := followerPredicate(ctx, s.followRepo, viewer, subject, subject.ReadingProgressVisibility)
	if err != nil {
		return nil, err
	}
	if !visibility.CanViewReadingProgress(viewer, subject, isFollower) {
		return nil, model.ErrReadingProgressHidden
	}

	return s.progressRepo.ListByUser(ctx, subjectID)
}

// UpdateReadingProgress records progress on one book for userID.
func (s *PrivacyService) UpdateReadingProgress(ctx context.Context, userID int64, req model.UpdateReadingProgressRequest) (*model.ReadingProgress, error) {
	rp := &model.ReadingProgress{
		UserID:      userID,
		BookID:      req.BookID,
		Status:      req.Status,
		CurrentPage: req.CurrentPage,
	}
	if err := s.progressRepo.Upsert(ctx, rp); err != nil {
		return nil, err
	}
	return rp, nil
}
