package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types for the notification stream
const (
	EventNotificationCreated = "notification_created"
	EventUnreadChanged       = "unread_changed"
)

// Stream names
const (
	StreamNotifications = "stream:notifications"
)

// Consumer group name for delivery workers
const (
	ConsumerGroupDelivery = "delivery_workers"
)

// Event is published after a notification transaction commits.
// The database row stays the source of truth; consumers only push updates to clients.
type Event struct {
	ID          string `json:"id"` // Idempotency key for consumers
	Type        string `json:"type"`
	Timestamp   int64  `json:"timestamp"`
	RecipientID int64  `json:"recipient_id"`

	// NotificationCreated
	NotificationID   int64  `json:"notification_id,omitempty"`
	NotificationType string `json:"notification_type,omitempty"`
	ActorID          *int64 `json:"actor_id,omitempty"`
	Message          string `json:"message,omitempty"`
}

// NewNotificationCreatedEvent announces a freshly appended notification.
func NewNotificationCreatedEvent(recipientID, notificationID int64, notificationType string, actorID *int64, message string) Event {
	return Event{
		ID:               uuid.NewString(),
		Type:             EventNotificationCreated,
		Timestamp:        time.Now().Unix(),
		RecipientID:      recipientID,
		NotificationID:   notificationID,
		NotificationType: notificationType,
		ActorID:          actorID,
		Message:          message,
	}
}

// NewUnreadChangedEvent tells the recipient's clients to refresh their badge.
func NewUnreadChangedEvent(recipientID int64) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        EventUnreadChanged,
		Timestamp:   time.Now().Unix(),
		RecipientID: recipientID,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e Event) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseEvent parses an Event from Redis stream message values.
func ParseEvent(values map[string]interface{}) (Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
