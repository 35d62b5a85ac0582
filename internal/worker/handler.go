package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"readingclub/internal/cache"
	"readingclub/internal/metrics"
	"readingclub/internal/model"
	"readingclub/internal/push"
	"readingclub/internal/queue"
)

// UnreadCounter reads the badge count from the source of truth.
type UnreadCounter interface {
	GetUnreadCount(ctx context.Context, userID int64) (int, error)
}

// UserPublisher fans a payload out to a user's live connections.
type UserPublisher interface {
	PublishUser(ctx context.Context, userID int64, payload string) error
}

// TokenStore looks up and prunes push device tokens.
type TokenStore interface {
	GetByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}

// LivePayload is what subscribers of a user's channel receive.
type LivePayload struct {
	Type             string `json:"type"`
	NotificationID   int64  `json:"notification_id,omitempty"`
	NotificationType string `json:"notification_type,omitempty"`
	ActorID          *int64 `json:"actor_id,omitempty"`
	Message          string `json:"message,omitempty"`
	UnreadCount      int    `json:"unread_count"`
}

// ErrUnknownEvent marks events no retry can deliver.
var ErrUnknownEvent = errors.New("unknown event type")

const (
	PayloadNotification = "notification"
	PayloadUnreadCount  = "unread_count"

	pushTitle = "Reading club"
)

// Handler delivers notification events to live clients and devices.
// The notification rows are already committed; nothing here writes them.
type Handler struct {
	counter   UnreadCounter
	publisher UserPublisher
	tokens    TokenStore  // nil disables push
	sender    push.Sender // nil disables push
	delivered cache.DeliveryLog
}

// NewHandler creates a new event handler.
func NewHandler(counter UnreadCounter, publisher UserPublisher) *Handler {
	return &Handler{
		counter:   counter,
		publisher: publisher,
	}
}

// SetPush enables device push delivery.
func (h *Handler) SetPush(tokens TokenStore, sender push.Sender) {
	h.tokens = tokens
	h.sender = sender
}

// SetDeliveryLog makes redelivered events a no-op.
func (h *Handler) SetDeliveryLog(dl cache.DeliveryLog) {
	h.delivered = dl
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.Event) error {
	startTime := time.Now()

	if h.delivered != nil {
		first, err := h.delivered.MarkDelivered(ctx, event.ID)
		if err != nil {
			log.Printf("[Worker] DeliveryLog unavailable, delivering anyway: event=%s err=%v", event.ID, err)
		} else if !first {
			metrics.EventsDelivered.WithLabelValues(event.Type, "duplicate").Inc()
			return nil
		}
	}

	var err error
	switch event.Type {
	case queue.EventNotificationCreated:
		err = h.handleNotificationCreated(ctx, event)
	case queue.EventUnreadChanged:
		err = h.handleUnreadChanged(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		metrics.EventsDelivered.WithLabelValues(event.Type, "unknown").Inc()
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s recipient=%d duration=%v err=%v",
			event.Type, event.RecipientID, time.Since(startTime), err)
		metrics.EventsDelivered.WithLabelValues(event.Type, "error").Inc()
		if h.delivered != nil {
			_ = h.delivered.Forget(ctx, event.ID)
		}
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s recipient=%d duration=%v",
		event.Type, event.RecipientID, time.Since(startTime))
	metrics.EventsDelivered.WithLabelValues(event.Type, "ok").Inc()
	return nil
}

// handleNotificationCreated tells live clients about the new row and pushes it to devices.
func (h *Handler) handleNotificationCreated(ctx context.Context, event queue.Event) error {
	unread, err := h.counter.GetUnreadCount(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("count unread: %w", err)
	}

	err = h.publish(ctx, event.RecipientID, LivePayload{
		Type:             PayloadNotification,
		NotificationID:   event.NotificationID,
		NotificationType: event.NotificationType,
		ActorID:          event.ActorID,
		Message:          event.Message,
		UnreadCount:      unread,
	})
	if err != nil {
		return err
	}

	// A failed push is logged; the live update and the stored row already landed.
	if err := h.pushToDevices(ctx, event, unread); err != nil {
		log.Printf("[Worker] Push FAILED: recipient=%d notification=%d err=%v",
			event.RecipientID, event.NotificationID, err)
	}
	return nil
}

func (h *Handler) handleUnreadChanged(ctx context.Context, event queue.Event) error {
	unread, err := h.counter.GetUnreadCount(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("count unread: %w", err)
	}
	return h.publish(ctx, event.RecipientID, LivePayload{Type: PayloadUnreadCount, UnreadCount: unread})
}

func (h *Handler) publish(ctx context.Context, userID int64, payload LivePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal live payload: %w", err)
	}
	if err := h.publisher.PublishUser(ctx, userID, string(data)); err != nil {
		return fmt.Errorf("publish live payload: %w", err)
	}
	return nil
}

func (h *Handler) pushToDevices(ctx context.Context, event queue.Event, unread int) error {
	if h.tokens == nil || h.sender == nil {
		return nil
	}

	devices, err := h.tokens.GetByUserID(ctx, event.RecipientID)
	if err != nil {
		return fmt.Errorf("get device tokens: %w", err)
	}
	if len(devices) == 0 {
		return nil
	}

	tokens := make([]string, len(devices))
	for i, d := range devices {
		tokens[i] = d.Token
	}

	badge := unread
	res, err := h.sender.Send(ctx, tokens, push.Message{
		Title: pushTitle,
		Body:  event.Message,
		Data: map[string]string{
			"type":            event.NotificationType,
			"notification_id": strconv.FormatInt(event.NotificationID, 10),
		},
		Badge: &badge,
	})
	if err != nil {
		return err
	}

	log.Printf("[Worker] Push OK: recipient=%d sent=%d failed=%d unregistered=%d",
		event.RecipientID, res.Sent, res.Failed, len(res.Unregistered))

	if len(res.Unregistered) > 0 {
		pruned, err := h.tokens.DeleteTokens(ctx, res.Unregistered)
		if err != nil {
			return fmt.Errorf("prune tokens: %w", err)
		}
		log.Printf("[Worker] Pruned %d unregistered tokens for recipient=%d", pruned, event.RecipientID)
	}
	return nil
}
