package handler

import (
	"context"
	"net/http"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
)

// ModerationService covers the moderator-only actions.
type ModerationService interface {
	FlagUser(ctx context.Context, moderatorID, subjectID int64, reason string) error
	UnflagUser(ctx context.Context, moderatorID, subjectID int64) error
	ListFlagged(ctx context.Context, moderatorID int64) ([]model.FlaggedUser, error)
	RemoveContent(ctx context.Context, moderatorID int64, target model.Ref, reason string) error
}

type ModerationHandler struct {
	modService ModerationService
}

func NewModerationHandler(modService ModerationService) *ModerationHandler {
	return &ModerationHandler{modService: modService}
}

// FlagUser handles POST /moderation/users/{id}/flag
func (h *ModerationHandler) FlagUser(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req model.FlagUserRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.modService.FlagUser(r.Context(), moderatorID, subjectID, req.Reason); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnflagUser handles DELETE /moderation/users/{id}/flag
func (h *ModerationHandler) UnflagUser(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.modService.UnflagUser(r.Context(), moderatorID, subjectID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFlagged handles GET /moderation/users/flagged
func (h *ModerationHandler) ListFlagged(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	users, err := h.modService.ListFlagged(r.Context(), moderatorID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if users == nil {
		users = []model.FlaggedUser{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]model.FlaggedUser{"users": users})
}

// RemoveContent handles POST /moderation/content/remove
func (h *ModerationHandler) RemoveContent(w http.ResponseWriter, r *http.Request) {
	moderatorID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.ModerateContentRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	target := model.Ref{Type: req.TargetType, ID: req.TargetID}
	if err := h.modService.RemoveContent(r.Context(), moderatorID, target, req.Reason); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
