package handler

import (
	"context"
	"net/http"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
)

// FollowService is the follow graph as the HTTP layer uses it.
type FollowService interface {
	Follow(ctx context.Context, followerID, followeeID int64) (model.FollowOutcome, error)
	Unfollow(ctx context.Context, followerID, followeeID int64) error
	CancelRequest(ctx context.Context, followerID, followeeID int64) error
	AcceptRequest(ctx context.Context, followeeID, requestID int64) error
	RejectRequest(ctx context.Context, followeeID, requestID int64) error
	PendingRequests(ctx context.Context, followeeID int64) ([]model.FollowRequest, error)
	RelationshipStatus(ctx context.Context, viewerID, subjectID int64) (*model.Relationship, error)
	GetFollowers(ctx context.Context, subjectID int64, viewer *model.User, limit, offset int) (*model.FollowListResponse, error)
	GetFollowing(ctx context.Context, subjectID int64, viewer *model.User, limit, offset int) (*model.FollowListResponse, error)
}

type FollowHandler struct {
	followService FollowService
	viewers       ViewerLoader
}

func NewFollowHandler(followService FollowService, viewers ViewerLoader) *FollowHandler {
	return &FollowHandler{
		followService: followService,
		viewers:       viewers,
	}
}

// Follow handles POST /users/{id}/follow
// Responds 201 when the edge was created, 202 when a request is pending approval.
func (h *FollowHandler) Follow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	followeeID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	outcome, err := h.followService.Follow(r.Context(), followerID, followeeID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}

	status := http.StatusCreated
	if outcome == model.FollowOutcomeRequestSent {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, map[string]model.FollowOutcome{"status": outcome})
}

// Unfollow handles DELETE /users/{id}/follow
func (h *FollowHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	followerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	followeeID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.followService.Unfollow(r.Context(), followerID, followeeID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CancelRequest handles DELETE /users/{id}/follow-request
func (h *FollowHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	followerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	followeeID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.followService.CancelRequest(r.Context(), followerID, followeeID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Relationship handles GET /users/{id}/relationship
func (h *FollowHandler) Relationship(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUser(w, r)
	if !ok {
		return
	}
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	rel, err := h.followService.RelationshipStatus(r.Context(), viewerID, subjectID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rel)
}

// PendingRequests handles GET /me/follow-requests
func (h *FollowHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	requests, err := h.followService.PendingRequests(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if requests == nil {
		requests = []model.FollowRequest{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]model.FollowRequest{"requests": requests})
}

// AcceptRequest handles POST /me/follow-requests/{requestID}/accept
func (h *FollowHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.followService.AcceptRequest)
}

// RejectRequest handles POST /me/follow-requests/{requestID}/reject
func (h *FollowHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveRequest(w, r, h.followService.RejectRequest)
}

func (h *FollowHandler) resolveRequest(w http.ResponseWriter, r *http.Request, resolve func(ctx context.Context, followeeID, requestID int64) error) {
	followeeID, ok := requireUser(w, r)
	if !ok {
		return
	}
	requestID, ok := urlID(w, r, "requestID")
	if !ok {
		return
	}

	if err := resolve(r.Context(), followeeID, requestID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFollowers handles GET /users/{id}/followers
func (h *FollowHandler) GetFollowers(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.followService.GetFollowers)
}

// GetFollowing handles GET /users/{id}/following
func (h *FollowHandler) GetFollowing(w http.ResponseWriter, r *http.Request) {
	h.listEdges(w, r, h.followService.GetFollowing)
}

type edgeLister func(ctx context.Context, subjectID int64, viewer *model.User, limit, offset int) (*model.FollowListResponse, error)

func (h *FollowHandler) listEdges(w http.ResponseWriter, r *http.Request, list edgeLister) {
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	viewer, ok := loadViewer(w, r, h.viewers)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	result, err := list(r.Context(), subjectID, viewer, limit, offset)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
