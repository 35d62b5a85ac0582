package handler

import (
	"net/http"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
)

// ListComments handles GET /threads/{id}/comments
func (h *ContentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	threadID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	viewer, ok := loadViewer(w, r, h.viewers)
	if !ok {
		return
	}

	comments, err := h.contentService.ListComments(r.Context(), viewer, threadID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if comments == nil {
		comments = []model.Comment{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]model.Comment{"comments": comments})
}

// CreateComment handles POST /threads/{id}/comments
// A parent_comment_id makes it a reply; the parent must belong to the same thread.
func (h *ContentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req model.CreateCommentRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.contentService.CreateComment(r.Context(), userID, threadID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

// UpdateComment handles PUT /threads/{id}/comments/{commentID}
func (h *ContentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	commentID, ok := urlID(w, r, "commentID")
	if !ok {
		return
	}

	var req model.UpdateCommentRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	comment, err := h.contentService.UpdateComment(r.Context(), userID, threadID, commentID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, comment)
}

// DeleteComment handles DELETE /comments/{id}
func (h *ContentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	commentID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.contentService.DeleteComment(r.Context(), userID, commentID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
