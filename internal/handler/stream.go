package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"readingclub/internal/httputil"
)

// LiveSubscriber opens a user's live notification feed.
type LiveSubscriber interface {
	UserMessages(ctx context.Context, userID int64) (<-chan string, func() error, error)
}

const streamHeartbeat = 25 * time.Second

type StreamHandler struct {
	subscriber LiveSubscriber
}

func NewStreamHandler(subscriber LiveSubscriber) *StreamHandler {
	return &StreamHandler{subscriber: subscriber}
}

// Stream handles GET /notifications/stream as server-sent events.
// Each event carries the JSON payload the delivery worker published.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteInternalError(w, "streaming unsupported")
		return
	}

	msgs, closeSub, err := h.subscriber.UserMessages(r.Context(), userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	defer func() {
		if err := closeSub(); err != nil {
			log.Printf("[Stream] close subscription: user=%d err=%v", userID, err)
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, ok := <-msgs:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}
