package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"readingclub/internal/httputil"
	"readingclub/internal/model"
	"readingclub/internal/transport/http/middleware"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// ViewerLoader resolves the authenticated user id into the user the request acts as.
type ViewerLoader interface {
	Viewer(ctx context.Context, userID int64) (*model.User, error)
}

func requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return 0, false
	}
	return userID, true
}

// loadViewer returns nil for anonymous requests.
func loadViewer(w http.ResponseWriter, r *http.Request, loader ViewerLoader) (*model.User, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return nil, true
	}
	viewer, err := loader.Viewer(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return nil, false
	}
	return viewer, true
}

func urlID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, ok := httputil.PathID(chi.URLParam(r, name))
	if !ok {
		httputil.WriteBadRequest(w, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// pagination reads limit/offset, clamping limit to [1, maxLimit].
func pagination(r *http.Request) (limit, offset int) {
	limit = httputil.QueryInt(r, "limit", defaultLimit)
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	offset = httputil.QueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
