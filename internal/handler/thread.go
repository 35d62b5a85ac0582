package handler

import (
	"context"
	"net/http"
	"strconv"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
)

// ContentService covers discussion threads and their comments.
type ContentService interface {
	ListThreads(ctx context.Context, viewer *model.User, filter model.ThreadFilter) ([]model.Thread, error)
	ListThreadsForBook(ctx context.Context, viewer *model.User, bookID int64, limit, offset int) ([]model.Thread, error)
	GetThread(ctx context.Context, viewer *model.User, threadID int64) (*model.Thread, error)
	CreateThread(ctx context.Context, userID int64, req model.CreateThreadRequest) (*model.Thread, error)
	UpdateThread(ctx context.Context, userID, threadID int64, req model.UpdateThreadRequest) (*model.Thread, error)
	DeleteThread(ctx context.Context, userID, threadID int64) error
	ListComments(ctx context.Context, viewer *model.User, threadID int64) ([]model.Comment, error)
	CreateComment(ctx context.Context, userID, threadID int64, req model.CreateCommentRequest) (*model.Comment, error)
	UpdateComment(ctx context.Context, userID, threadID, commentID int64, req model.UpdateCommentRequest) (*model.Comment, error)
	DeleteComment(ctx context.Context, userID, commentID int64) error
}

type ContentHandler struct {
	contentService ContentService
	viewers        ViewerLoader
}

func NewContentHandler(contentService ContentService, viewers ViewerLoader) *ContentHandler {
	return &ContentHandler{
		contentService: contentService,
		viewers:        viewers,
	}
}

func queryID(r *http.Request, name string) (*int64, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, false
	}
	return &id, true
}

// ListThreads handles GET /threads?book_id=&user_id=&limit=&offset=
// Threads whose author the viewer may not see are dropped, so a page can come back short.
func (h *ContentHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	viewer, ok := loadViewer(w, r, h.viewers)
	if !ok {
		return
	}

	bookID, ok := queryID(r, "book_id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid book_id")
		return
	}
	userID, ok := queryID(r, "user_id")
	if !ok {
		httputil.WriteBadRequest(w, "Invalid user_id")
		return
	}
	limit, offset := pagination(r)

	threads, err := h.contentService.ListThreads(r.Context(), viewer, model.ThreadFilter{
		BookID: bookID,
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	writeThreads(w, threads)
}

// ListBookThreads handles GET /books/{id}/threads
func (h *ContentHandler) ListBookThreads(w http.ResponseWriter, r *http.Request) {
	bookID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	viewer, ok := loadViewer(w, r, h.viewers)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	threads, err := h.contentService.ListThreadsForBook(r.Context(), viewer, bookID, limit, offset)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	writeThreads(w, threads)
}

func writeThreads(w http.ResponseWriter, threads []model.Thread) {
	if threads == nil {
		threads = []model.Thread{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]model.Thread{"threads": threads})
}

// GetThread handles GET /threads/{id}
func (h *ContentHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	viewer, ok := loadViewer(w, r, h.viewers)
	if !ok {
		return
	}

	thread, err := h.contentService.GetThread(r.Context(), viewer, threadID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, thread)
}

// CreateThread handles POST /threads
func (h *ContentHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.CreateThreadRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	thread, err := h.contentService.CreateThread(r.Context(), userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, thread)
}

// UpdateThread handles PUT /threads/{id}
// Only the author may edit; omitted fields keep their value.
func (h *ContentHandler) UpdateThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req model.UpdateThreadRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	thread, err := h.contentService.UpdateThread(r.Context(), userID, threadID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, thread)
}

// DeleteThread handles DELETE /threads/{id}
func (h *ContentHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	threadID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.contentService.DeleteThread(r.Context(), userID, threadID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
