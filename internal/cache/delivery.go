package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DeliveryKeyPrefix is the key prefix for delivered event markers
	DeliveryKeyPrefix = "delivered:event:"

	// DeliveryTTL bounds how long a replayed stream entry is recognised
	DeliveryTTL = 24 * time.Hour
)

// DeliveryLog remembers which stream events were already fanned out to clients,
// so a message replayed from the pending list does not push twice.
type DeliveryLog interface {
	// MarkDelivered records eventID and reports whether this call was the first.
	MarkDelivered(ctx context.Context, eventID string) (first bool, err error)

	// Forget drops the marker so a failed delivery can be retried.
	Forget(ctx context.Context, eventID string) error
}

// RedisDeliveryLog implements DeliveryLog with SET NX keys.
type RedisDeliveryLog struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDeliveryLog creates a DeliveryLog backed by Redis.
func NewDeliveryLog(client *redis.Client) DeliveryLog {
	return &RedisDeliveryLog{client: client, ttl: DeliveryTTL}
}

func deliveryKey(eventID string) string {
	return DeliveryKeyPrefix + eventID
}

func (c *RedisDeliveryLog) MarkDelivered(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, deliveryKey(eventID), 1, c.ttl).Result()
	if err != nil {
		log.Printf("[DeliveryLog] MarkDelivered FAILED: event=%s err=%v", eventID, err)
		return false, fmt.Errorf("mark delivered: %w", err)
	}
	if !ok {
		log.Printf("[DeliveryLog] MarkDelivered: event=%s already delivered", eventID)
	}
	return ok, nil
}

func (c *RedisDeliveryLog) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	if err := c.client.Del(ctx, deliveryKey(eventID)).Err(); err != nil {
		log.Printf("[DeliveryLog] Forget FAILED: event=%s err=%v", eventID, err)
		return fmt.Errorf("forget delivery: %w", err)
	}
	return nil
}
