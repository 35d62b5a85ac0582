package service

import (
	"context"
	"log"
	"strings"

	"readingclub/internal/model"
	"readingclub/internal/repository"
)

// DeviceService registers the devices notifications are pushed to.
type DeviceService struct {
	tokenRepo repository.DeviceTokenRepository
}

func NewDeviceService(tokenRepo repository.DeviceTokenRepository) *DeviceService {
	return &DeviceService{tokenRepo: tokenRepo}
}

func (s *DeviceService) Register(ctx context.Context, userID int64, req model.RegisterTokenRequest) error {
	token := strings.TrimSpace(req.Token)
	if err := s.tokenRepo.Upsert(ctx, userID, token, req.Platform); err != nil {
		return err
	}
	log.Printf("[DeviceService] Token registered: user=%d platform=%s", userID, req.Platform)
	return nil
}

// Remove unregisters one of the caller's tokens, typically on logout.
func (s *DeviceService) Remove(ctx context.Context, userID int64, token string) error {
	deleted, err := s.tokenRepo.Delete(ctx, userID, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if !deleted {
		return model.ErrDeviceTokenNotFound
	}
	return nil
}

func (s *DeviceService) List(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	return s.tokenRepo.GetByUserID(ctx, userID)
}
