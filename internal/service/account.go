package service

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"readingclub/internal/database"
	"readingclub/internal/model"
	"readingclub/internal/repository"
)

// DeleteConfirmation is the literal a user must type to delete their account.
const DeleteConfirmation = "DELETE"

// PasswordVerifier checks a plaintext password against a stored hash.
type PasswordVerifier interface {
	Verify(hash, password string) error
}

// BcryptVerifier verifies bcrypt hashes.
type BcryptVerifier struct{}

func (BcryptVerifier) Verify(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return model.ErrInvalidPassword
	}
	return nil
}

// AccountService deletes accounts and bulk content. Every deletion is one
// transaction: on any failure nothing is removed.
type AccountService struct {
	userRepo     repository.UserRepository
	followRepo   repository.FollowRepository
	requestRepo  repository.FollowRequestRepository
	threadRepo   repository.ThreadRepository
	commentRepo  repository.CommentRepository
	likeRepo     repository.LikeRepository
	notifRepo    repository.NotificationRepository
	progressRepo repository.ReadingProgressRepository
	tokenRepo    repository.DeviceTokenRepository
	txr          database.Transactor
	verifier     PasswordVerifier
}

// AccountRepositories groups the repositories account deletion touches.
type AccountRepositories struct {
	Users           repository.UserRepository
	Follows         repository.FollowRepository
	FollowRequests  repository.FollowRequestRepository
	Threads         repository.ThreadRepository
	Comments        repository.CommentRepository
	Likes           repository.LikeRepository
	Notifications   repository.NotificationRepository
	ReadingProgress repository.ReadingProgressRepository
	DeviceTokens    repository.DeviceTokenRepository
}

func NewAccountService(repos AccountRepositories, txr database.Transactor, verifier PasswordVerifier) *AccountService {
	if verifier == nil {
		verifier = BcryptVerifier{}
	}
	return &AccountService{
		userRepo:     repos.Users,
		followRepo:   repos.Follows,
		requestRepo:  repos.FollowRequests,
		threadRepo:   repos.Threads,
		commentRepo:  repos.Comments,
		likeRepo:     repos.Likes,
		notifRepo:    repos.Notifications,
		progressRepo: repos.ReadingProgress,
		tokenRepo:    repos.DeviceTokens,
		txr:          txr,
		verifier:     verifier,
	}
}

func (s *AccountService) authenticate(ctx context.Context, userID int64, password string) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	return s.verifier.Verify(user.PasswordHash, password)
}

// DeleteAccount removes the user and everything that references them.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64, password, confirmation string) error {
	if confirmation != DeleteConfirmation {
		return model.ErrDeleteUnconfirmed
	}
	if err := s.authenticate(ctx, userID, password); err != nil {
		return err
	}

	err := s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.deleteContent(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.likeRepo.DeleteByUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.notifRepo.DeleteInvolvingUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.requestRepo.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.followRepo.DeleteAllForUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.progressRepo.DeleteByUser(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.tokenRepo.DeleteByUser(ctx, tx, userID); err != nil {
			return err
		}
		return s.userRepo.Delete(ctx, tx, userID)
	})
	if err != nil {
		log.Printf("[AccountService] DeleteAccount FAILED: user=%d err=%v", userID, err)
		return err
	}

	log.Printf("[AccountService] Account deleted: user=%d", userID)
	return nil
}

// DeleteContent removes the user's threads and comments but keeps the account.
func (s *AccountService) DeleteContent(ctx context.Context, userID int64, password string) (*model.ContentDeletionResult, error) {
	if err := s.authenticate(ctx, userID, password); err != nil {
		return nil, err
	}

	var result *model.ContentDeletionResult
	err := s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		result, err = s.deleteContent(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[AccountService] Content deleted: user=%d threads=%d comments=%d",
		userID, result.ThreadsDeleted, result.CommentsDeleted)
	return result, nil
}

// deleteContent clears likes and notifications pointing at the user's threads and
// comments (including other users' comments under those threads), then the content.
func (s *AccountService) deleteContent(ctx context.Context, tx *sqlx.Tx, userID int64) (*model.ContentDeletionResult, error) {
	threadIDs, err := s.threadRepo.IDsByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	commentIDs, err := s.commentRepo.IDsInScope(ctx, tx, userID, threadIDs)
	if err != nil {
		return nil, err
	}

	if _, err := s.likeRepo.DeleteForTargets(ctx, tx, model.RefThread, threadIDs); err != nil {
		return nil, err
	}
	if _, err := s.likeRepo.DeleteForTargets(ctx, tx, model.RefComment, commentIDs); err != nil {
		return nil, err
	}
	if _, err := s.notifRepo.DeleteRelated(ctx, tx, model.RefThread, threadIDs); err != nil {
		return nil, err
	}
	if _, err := s.notifRepo.DeleteRelated(ctx, tx, model.RefComment, commentIDs); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.DeleteByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	threads, err := s.threadRepo.DeleteByUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	return &model.ContentDeletionResult{ThreadsDeleted: threads, CommentsDeleted: comments}, nil
}
