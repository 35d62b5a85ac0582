package handler

import (
	"context"
	"net/http"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
)

// PrivacyService covers privacy settings and the profile views they gate.
type PrivacyService interface {
	ViewerLoader
	GetSettings(ctx context.Context, userID int64) (*model.PrivacySettings, error)
	UpdateSettings(ctx context.Context, userID int64, req model.UpdatePrivacyRequest) (*model.PrivacySettings, error)
	GetProfile(ctx context.Context, viewer *model.User, subjectID int64) (*model.ProfileResponse, error)
	ReadingProgress(ctx context.Context, viewer *model.User, subjectID int64) ([]model.ReadingProgress, error)
	UpdateReadingProgress(ctx context.Context, userID int64, req model.UpdateReadingProgressRequest) (*model.ReadingProgress, error)
}

// AccountService covers self-service deletion.
type AccountService interface {
	DeleteAccount(ctx context.Context, userID int64, password, confirmation string) error
	DeleteContent(ctx context.Context, userID int64, password string) (*model.ContentDeletionResult, error)
}

type UserHandler struct {
	privacyService PrivacyService
	accountService AccountService
}

func NewUserHandler(privacyService PrivacyService, accountService AccountService) *UserHandler {
	return &UserHandler{
		privacyService: privacyService,
		accountService: accountService,
	}
}

// GetProfile handles GET /users/{id}
// A profile the viewer may not see is reported as not found.
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	viewer, ok := loadViewer(w, r, h.privacyService)
	if !ok {
		return
	}

	profile, err := h.privacyService.GetProfile(r.Context(), viewer, subjectID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

// GetReadingProgress handles GET /users/{id}/reading-progress
func (h *UserHandler) GetReadingProgress(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	viewer, ok := loadViewer(w, r, h.privacyService)
	if !ok {
		return
	}

	shelf, err := h.privacyService.ReadingProgress(r.Context(), viewer, subjectID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if shelf == nil {
		shelf = []model.ReadingProgress{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]model.ReadingProgress{"reading_progress": shelf})
}

// UpdateReadingProgress handles PUT /me/reading-progress
func (h *UserHandler) UpdateReadingProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdateReadingProgressRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	rp, err := h.privacyService.UpdateReadingProgress(r.Context(), userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rp)
}

// GetPrivacy handles GET /me/privacy
func (h *UserHandler) GetPrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	settings, err := h.privacyService.GetSettings(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

// UpdatePrivacy handles PATCH /me/privacy
// Omitted fields keep their current value.
func (h *UserHandler) UpdatePrivacy(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.UpdatePrivacyRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	settings, err := h.privacyService.UpdateSettings(r.Context(), userID, req)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, settings)
}

// DeleteAccount handles DELETE /me
// Body: {"password": "...", "confirmation": "DELETE"}
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.DeleteAccountRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.accountService.DeleteAccount(r.Context(), userID, req.Password, req.Confirmation); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteContent handles DELETE /me/content
func (h *UserHandler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.DeleteContentRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.accountService.DeleteContent(r.Context(), userID, req.Password)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}
