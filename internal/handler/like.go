package handler

import (
	"context"
	"net/http"
	"strconv"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
	"readingclub/internal/transport/http/middleware"
)

type LikeService interface {
	Toggle(ctx context.Context, userID int64, target model.Ref) (bool, error)
	Status(ctx context.Context, viewerID *int64, target model.Ref) (*model.LikeStatus, error)
}

type LikeHandler struct {
	likeService LikeService
}

func NewLikeHandler(likeService LikeService) *LikeHandler {
	return &LikeHandler{likeService: likeService}
}

// Toggle handles POST /likes
func (h *LikeHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.LikeRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	liked, err := h.likeService.Toggle(r.Context(), userID, model.Ref{Type: req.TargetType, ID: req.TargetID})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, model.LikeToggleResponse{Liked: liked})
}

// Status handles GET /likes?target_type=thread&target_id=1
func (h *LikeHandler) Status(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	targetID, err := strconv.ParseInt(q.Get("target_id"), 10, 64)
	if err != nil || targetID <= 0 {
		httputil.WriteBadRequest(w, "Invalid target_id")
		return
	}
	target := model.Ref{Type: model.RefType(q.Get("target_type")), ID: targetID}

	var viewerID *int64
	if id, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		viewerID = &id
	}

	status, err := h.likeService.Status(r.Context(), viewerID, target)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
