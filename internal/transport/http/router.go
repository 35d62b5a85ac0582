package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/text/language"

	"readingclub/internal/handler"
	"readingclub/internal/httputil"
	authmw "readingclub/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	UserHandler         *handler.UserHandler
	FollowHandler       *handler.FollowHandler
	NotificationHandler *handler.NotificationHandler
	ModerationHandler   *handler.ModerationHandler
	AdminHandler        *handler.AdminHandler
	LikeHandler         *handler.LikeHandler
	ContentHandler      *handler.ContentHandler
	StreamHandler       *handler.StreamHandler // nil when Redis is not configured
	JWTSecret           string
	DefaultLocale       language.Tag
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(authmw.Metrics)
	r.Use(authmw.Locale(cfg.DefaultLocale))

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	optional := authmw.OptionalAuthMiddleware(cfg.JWTSecret)

	// Public reads, personalised when a token is present
	r.Group(func(r chi.Router) {
		r.Use(optional)

		r.Get("/users/{id}", cfg.UserHandler.GetProfile)
		r.Get("/users/{id}/followers", cfg.FollowHandler.GetFollowers)
		r.Get("/users/{id}/following", cfg.FollowHandler.GetFollowing)
		r.Get("/users/{id}/reading-progress", cfg.UserHandler.GetReadingProgress)

		r.Get("/books/{id}/threads", cfg.ContentHandler.ListBookThreads)
		r.Get("/threads", cfg.ContentHandler.ListThreads)
		r.Get("/threads/{id}", cfg.ContentHandler.GetThread)
		r.Get("/threads/{id}/comments", cfg.ContentHandler.ListComments)

		r.Get("/likes", cfg.LikeHandler.Status)
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/users/{id}/follow", cfg.FollowHandler.Follow)
		r.Delete("/users/{id}/follow", cfg.FollowHandler.Unfollow)
		r.Delete("/users/{id}/follow-request", cfg.FollowHandler.CancelRequest)
		r.Get("/users/{id}/relationship", cfg.FollowHandler.Relationship)

		r.Route("/me", func(r chi.Router) {
			r.Delete("/", cfg.UserHandler.DeleteAccount)
			r.Delete("/content", cfg.UserHandler.DeleteContent)
			r.Get("/privacy", cfg.UserHandler.GetPrivacy)
			r.Patch("/privacy", cfg.UserHandler.UpdatePrivacy)
			r.Put("/reading-progress", cfg.UserHandler.UpdateReadingProgress)

			r.Get("/follow-requests", cfg.FollowHandler.PendingRequests)
			r.Post("/follow-requests/{requestID}/accept", cfg.FollowHandler.AcceptRequest)
			r.Post("/follow-requests/{requestID}/reject", cfg.FollowHandler.RejectRequest)
		})

		r.Post("/threads", cfg.ContentHandler.CreateThread)
		r.Put("/threads/{id}", cfg.ContentHandler.UpdateThread)
		r.Delete("/threads/{id}", cfg.ContentHandler.DeleteThread)
		r.Post("/threads/{id}/comments", cfg.ContentHandler.CreateComment)
		r.Put("/threads/{id}/comments/{commentID}", cfg.ContentHandler.UpdateComment)
		r.Delete("/comments/{id}", cfg.ContentHandler.DeleteComment)

		r.Post("/likes", cfg.LikeHandler.Toggle)

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.List)
			r.Get("/unread-count", cfg.NotificationHandler.UnreadCount)
			r.Post("/read-all", cfg.NotificationHandler.MarkAllRead)
			r.Delete("/read", cfg.NotificationHandler.DeleteRead)
			r.Post("/{id}/read", cfg.NotificationHandler.MarkRead)
			r.Post("/{id}/unread", cfg.NotificationHandler.MarkUnread)
			r.Delete("/{id}", cfg.NotificationHandler.Delete)
			if cfg.StreamHandler != nil {
				r.Get("/stream", cfg.StreamHandler.Stream)
			}
		})

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", cfg.NotificationHandler.ListDevices)
			r.Post("/", cfg.NotificationHandler.RegisterDevice)
			r.Delete("/", cfg.NotificationHandler.RemoveDevice)
		})

		r.Route("/moderation", func(r chi.Router) {
			r.Get("/users/flagged", cfg.ModerationHandler.ListFlagged)
			r.Post("/users/{id}/flag", cfg.ModerationHandler.FlagUser)
			r.Delete("/users/{id}/flag", cfg.ModerationHandler.UnflagUser)
			r.Post("/content/remove", cfg.ModerationHandler.RemoveContent)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/statistics", cfg.AdminHandler.Statistics)
			r.Post("/users/{id}/make-admin", cfg.AdminHandler.MakeAdmin)
			r.Post("/users/{id}/remove-admin", cfg.AdminHandler.RemoveAdmin)
		})
	})

	return r
}
