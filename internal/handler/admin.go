package handler

import (
	"context"
	"net/http"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
)

// AdminService covers role management and site statistics.
type AdminService interface {
	MakeAdmin(ctx context.Context, adminID, subjectID int64) error
	RemoveAdmin(ctx context.Context, adminID, subjectID int64) error
	Statistics(ctx context.Context, viewerID int64) (*model.Statistics, error)
}

type AdminHandler struct {
	adminService AdminService
}

func NewAdminHandler(adminService AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// MakeAdmin handles POST /admin/users/{id}/make-admin
func (h *AdminHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.adminService.MakeAdmin)
}

// RemoveAdmin handles POST /admin/users/{id}/remove-admin
func (h *AdminHandler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.adminService.RemoveAdmin)
}

func (h *AdminHandler) changeRole(w http.ResponseWriter, r *http.Request, change func(ctx context.Context, adminID, subjectID int64) error) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}
	subjectID, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := change(r.Context(), adminID, subjectID); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Statistics handles GET /admin/statistics
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	viewerID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.adminService.Statistics(r.Context(), viewerID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}
