package handler

import (
	"context"
	"net/http"
	"strconv"

	"golang.org/x/text/language"

	"readingclub/internal/httputil"
	"readingclub/internal/i18n"
	"readingclub/internal/model"
)

// NotificationService is the notification inbox as the HTTP layer uses it.
type NotificationService interface {
	List(ctx context.Context, userID int64, q model.NotificationListQuery, locale language.Tag) (*model.NotificationListResponse, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	MarkAsRead(ctx context.Context, userID, notificationID int64) (*model.Notification, error)
	MarkAsUnread(ctx context.Context, userID, notificationID int64) (*model.Notification, error)
	MarkAllAsRead(ctx context.Context, userID int64) (int64, error)
	Delete(ctx context.Context, userID, notificationID int64) error
	DeleteAllRead(ctx context.Context, userID int64) (int64, error)
}

// DeviceService manages push device tokens.
type DeviceService interface {
	Register(ctx context.Context, userID int64, req model.RegisterTokenRequest) error
	Remove(ctx context.Context, userID int64, token string) error
	List(ctx context.Context, userID int64) ([]model.DeviceToken, error)
}

type NotificationHandler struct {
	notifService  NotificationService
	deviceService DeviceService
}

func NewNotificationHandler(notifService NotificationService, deviceService DeviceService) *NotificationHandler {
	return &NotificationHandler{
		notifService:  notifService,
		deviceService: deviceService,
	}
}

// List handles GET /notifications?unread_only=true&limit=20&offset=0
// Messages are rendered in the request locale.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit, offset := pagination(r)
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))

	result, err := h.notifService.List(r.Context(), userID, model.NotificationListQuery{
		UnreadOnly: unreadOnly,
		Limit:      limit,
		Offset:     offset,
	}, i18n.FromContext(r.Context()))
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.notifService.UnreadCount(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

// MarkRead handles POST /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.setReadState(w, r, h.notifService.MarkAsRead)
}

// MarkUnread handles POST /notifications/{id}/unread
func (h *NotificationHandler) MarkUnread(w http.ResponseWriter, r *http.Request) {
	h.setReadState(w, r, h.notifService.MarkAsUnread)
}

func (h *NotificationHandler) setReadState(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, userID, id int64) (*model.Notification, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	n, err := set(r.Context(), userID, id)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, n)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	updated, err := h.notifService.MarkAllAsRead(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

// Delete handles DELETE /notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	if err := h.notifService.Delete(r.Context(), userID, id); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteRead handles DELETE /notifications/read
func (h *NotificationHandler) DeleteRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	deleted, err := h.notifService.DeleteAllRead(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// RegisterDevice handles POST /devices
func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.deviceService.Register(r.Context(), userID, req); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveDevice handles DELETE /devices
func (h *NotificationHandler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req model.RemoveTokenRequest
	if !httputil.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.deviceService.Remove(r.Context(), userID, req.Token); err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDevices handles GET /devices
func (h *NotificationHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	devices, err := h.deviceService.List(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	if devices == nil {
		devices = []model.DeviceToken{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]model.DeviceToken{"devices": devices})
}
