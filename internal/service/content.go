package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"readingclub/internal/database"
	"readingclub/internal/model"
	"readingclub/internal/repository"
	"readingclub/internal/visibility"
)

const (
	defaultThreadLimit = 20
	maxThreadLimit     = 100
)

// ownerLookup resolves the owning user of a polymorphic reference.
type ownerLookup func(ctx context.Context, id int64) (int64, error)

// ContentService serves threads and comments, hiding anything whose author is
// flagged or whose activity the viewer may not see.
type ContentService struct {
	userRepo      repository.UserRepository
	followRepo    repository.FollowRepository
	threadRepo    repository.ThreadRepository
	commentRepo   repository.CommentRepository
	likeRepo      repository.LikeRepository
	notifRepo     repository.NotificationRepository
	notifications *NotificationService
	txr           database.Transactor

	owners map[model.RefType]ownerLookup
}

func NewContentService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	threadRepo repository.ThreadRepository,
	commentRepo repository.CommentRepository,
	likeRepo repository.LikeRepository,
	notifRepo repository.NotificationRepository,
	notifications *NotificationService,
	txr database.Transactor,
) *ContentService {
	s := &ContentService{
		userRepo:      userRepo,
		followRepo:    followRepo,
		threadRepo:    threadRepo,
		commentRepo:   commentRepo,
		likeRepo:      likeRepo,
		notifRepo:     notifRepo,
		notifications: notifications,
		txr:           txr,
	}
	s.owners = map[model.RefType]ownerLookup{
		model.RefThread: func(ctx context.Context, id int64) (int64, error) {
			t, err := s.threadRepo.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			return t.UserID, nil
		},
		model.RefComment: func(ctx context.Context, id int64) (int64, error) {
			c, err := s.commentRepo.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			return c.UserID, nil
		},
		model.RefUser: func(ctx context.Context, id int64) (int64, error) {
			u, err := s.userRepo.GetByID(ctx, id)
			if err != nil {
				return 0, err
			}
			return u.ID, nil
		},
	}
	return s
}

// OwnerOf returns the user that owns ref.
func (s *ContentService) OwnerOf(ctx context.Context, ref model.Ref) (int64, error) {
	lookup, ok := s.owners[ref.Type]
	if !ok {
		return 0, model.ErrInvalidTarget
	}
	return lookup(ctx, ref.ID)
}

// =============================================================================
// VISIBILITY FILTER
// =============================================================================

// FilterVisible keeps the items whose author is not flagged and whose activity
// viewer may see. viewer may be nil. Order is preserved.
func FilterVisible[T model.Authored](ctx context.Context, s *ContentService, viewer *model.User, items []T) ([]T, error) {
	if len(items) == 0 {
		return items, nil
	}

	authorIDs := make([]int64, 0, len(items))
	seen := make(map[int64]bool, len(items))
	for _, item := range items {
		if id := item.AuthorID(); !seen[id] {
			seen[id] = true
			authorIDs = append(authorIDs, id)
		}
	}

	allowed, err := s.visibleAuthors(ctx, viewer, authorIDs)
	if err != nil {
		return nil, err
	}

	visible := make([]T, 0, len(items))
	for _, item := range items {
		if allowed[item.AuthorID()] {
			visible = append(visible, item)
		}
	}
	return visible, nil
}

// visibleAuthors evaluates every author once with a single batch follow lookup.
func (s *ContentService) visibleAuthors(ctx context.Context, viewer *model.User, authorIDs []int64) (map[int64]bool, error) {
	authors, err := s.userRepo.GetByIDs(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	var isFollower visibility.FollowerFunc
	if viewer != nil {
		var needFollow []int64
		for _, a := range authors {
			if a.ActivityVisibility == model.VisibilityFollowers && a.ID != viewer.ID {
				needFollow = append(needFollow, a.ID)
			}
		}
		follows, err := s.followRepo.CheckFollows(ctx, viewer.ID, needFollow)
		if err != nil {
			return nil, err
		}
		isFollower = visibility.FollowSet(viewer.ID, follows)
	}

	allowed := make(map[int64]bool, len(authors))
	for id, author := range authors {
		allowed[id] = !author.IsFlagged && visibility.CanViewActivity(viewer, author, isFollower)
	}
	return allowed, nil
}

// =============================================================================
// READS
// =============================================================================

// ListThreads applies the filter in storage and visibility afterwards, so a page
// can hold fewer than Limit threads.
func (s *ContentService) ListThreads(ctx context.Context, viewer *model.User, filter model.ThreadFilter) ([]model.Thread, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultThreadLimit
	}
	if filter.Limit > maxThreadLimit {
		filter.Limit = maxThreadLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	threads, err := s.threadRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FilterVisible(ctx, s, viewer, threads)
}

func (s *ContentService) ListThreadsForBook(ctx context.Context, viewer *model.User, bookID int64, limit, offset int) ([]model.Thread, error) {
	return s.ListThreads(ctx, viewer, model.ThreadFilter{BookID: &bookID, Limit: limit, Offset: offset})
}

// GetThread hides invisible threads as not found.
func (s *ContentService) GetThread(ctx context.Context, viewer *model.User, threadID int64) (*model.Thread, error) {
	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	visible, err := FilterVisible(ctx, s, viewer, []model.Thread{*thread})
	if err != nil {
		return nil, err
	}
	if len(visible) == 0 {
		return nil, model.ErrThreadNotFound
	}
	return thread, nil
}

// ListComments returns the visible comments of a visible thread, oldest first.
func (s *ContentService) ListComments(ctx context.Context, viewer *model.User, threadID int64) ([]model.Comment, error) {
	if _, err := s.GetThread(ctx, viewer, threadID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return FilterVisible(ctx, s, viewer, comments)
}

// =============================================================================
// WRITES
// =============================================================================

func (s *ContentService) CreateThread(ctx context.Context, userID int64, req model.CreateThreadRequest) (*model.Thread, error) {
	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	scope := req.Scope
	if scope == "" {
		scope = "general"
	}

	thread := &model.Thread{
		UserID:     userID,
		BookID:     req.BookID,
		Title:      strings.TrimSpace(req.Title),
		Content:    content,
		Scope:      scope,
		PageNumber: req.PageNumber,
	}

	err = s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.threadRepo.Create(ctx, tx, thread)
	})
	if err != nil {
		return nil, err
	}

	summary := author.Summary()
	thread.Author = &summary
	return thread, nil
}

// CreateComment posts a comment and notifies the thread owner, and for replies the
// parent comment's author. Nobody is notified twice or about their own comment.
func (s *ContentService) CreateComment(ctx context.Context, userID, threadID int64, req model.CreateCommentRequest) (*model.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	author, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}

	var parent *model.Comment
	if req.ParentCommentID != nil {
		parent, err = s.commentRepo.GetByID(ctx, *req.ParentCommentID)
		if err != nil {
			return nil, err
		}
		if parent.ThreadID != threadID {
			return nil, model.ErrCommentNotFound
		}
	}

	comment := &model.Comment{
		ThreadID:        threadID,
		UserID:          userID,
		ParentCommentID: req.ParentCommentID,
		Content:         content,
	}

	actor := author.Summary()
	err = commitAndAnnounce(ctx, s.txr, s.notifications, func(tx *sqlx.Tx, emit func(*model.Notification)) error {
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return err
		}

		if parent != nil {
			n, err := s.notifications.NotifyCommentReply(ctx, tx, actor, parent, comment)
			if err != nil {
				return err
			}
			emit(n)
			if parent.UserID == thread.UserID {
				return nil
			}
		}

		n, err := s.notifications.NotifyThreadReply(ctx, tx, actor, thread, comment)
		if err != nil {
			return err
		}
		emit(n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	comment.Author = &actor
	return comment, nil
}

// UpdateThread edits the caller's own thread. Only the fields present in req
// change; a present title or content may not be blank.
func (s *ContentService) UpdateThread(ctx context.Context, userID, threadID int64, req model.UpdateThreadRequest) (*model.Thread, error) {
	thread, err := s.threadRepo.GetByID(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if thread.UserID != userID {
		return nil, model.ErrNotContentOwner
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, model.ErrContentRequired
		}
		thread.Title = title
	}
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, model.ErrContentRequired
		}
		thread.Content = content
	}
	if req.Scope != nil {
		thread.Scope = *req.Scope
	}
	if req.PageNumber != nil {
		thread.PageNumber = req.PageNumber
	}
	if thread.Scope == "general" {
		thread.PageNumber = nil
	}

	if err := s.threadRepo.Update(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// UpdateComment replaces the body of the caller's own comment on threadID.
func (s *ContentService) UpdateComment(ctx context.Context, userID, threadID, commentID int64, req model.UpdateCommentRequest) (*model.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.ErrContentRequired
	}

	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.ThreadID != threadID {
		return nil, model.ErrCommentNotFound
	}
	if comment.UserID != userID {
		return nil, model.ErrNotContentOwner
	}

	updatedAt, err := s.commentRepo.UpdateContent(ctx, commentID, content, time.Now())
	if err != nil {
		return nil, err
	}
	comment.Content = content
	comment.UpdatedAt = updatedAt
	return comment, nil
}

// DeleteThread removes the caller's own thread with its comments and likes.
func (s *ContentService) DeleteThread(ctx context.Context, userID, threadID int64) error {
	return s.deleteOwned(ctx, userID, model.Ref{Type: model.RefThread, ID: threadID})
}

// DeleteComment removes the caller's own comment with its replies and likes.
func (s *ContentService) DeleteComment(ctx context.Context, userID, commentID int64) error {
	return s.deleteOwned(ctx, userID, model.Ref{Type: model.RefComment, ID: commentID})
}

func (s *ContentService) deleteOwned(ctx context.Context, userID int64, target model.Ref) error {
	ownerID, err := s.OwnerOf(ctx, target)
	if err != nil {
		return err
	}
	if ownerID != userID {
		return model.ErrNotContentOwner
	}
	return s.txr.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.deleteInTx(ctx, tx, target)
	})
}

// deleteInTx removes a thread or comment subtree together with the likes and
// notifications that point at it.
func (s *ContentService) deleteInTx(ctx context.Context, tx *sqlx.Tx, target model.Ref) error {
	var commentIDs []int64
	var err error

	switch target.Type {
	case model.RefThread:
		commentIDs, err = s.commentRepo.IDsByThread(ctx, tx, target.ID)
	case model.RefComment:
		commentIDs, err = s.commentRepo.SubtreeIDs(ctx, tx, target.ID)
	default:
		return model.ErrInvalidTarget
	}
	if err != nil {
		return err
	}

	if _, err := s.likeRepo.DeleteForTargets(ctx, tx, model.RefComment, commentIDs); err != nil {
		return err
	}
	if _, err := s.notifRepo.DeleteRelated(ctx, tx, model.RefComment, commentIDs); err != nil {
		return err
	}

	if target.Type == model.RefThread {
		ids := []int64{target.ID}
		if _, err := s.likeRepo.DeleteForTargets(ctx, tx, model.RefThread, ids); err != nil {
			return err
		}
		if _, err := s.notifRepo.DeleteRelated(ctx, tx, model.RefThread, ids); err != nil {
			return err
		}
		return s.threadRepo.Delete(ctx, tx, target.ID)
	}
	return s.commentRepo.Delete(ctx, tx, target.ID)
}

// isNotFound reports whether err is any not-found kind.
func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
