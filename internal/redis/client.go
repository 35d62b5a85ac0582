package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Client is the process-wide Redis handle used for the event stream and
// per-user pub/sub delivery.
type Client struct {
	*redis.Client
}

// NewClient parses redis://[:password@]host:port[/db] and builds a client.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{Client: redis.NewClient(opts)}, nil
}

// Ping fails fast on startup if Redis is unreachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// UserChannel is the pub/sub channel a user's live clients subscribe to.
func UserChannel(userID int64) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// PublishUser pushes payload to every subscriber of the user's channel.
func (c *Client) PublishUser(ctx context.Context, userID int64, payload string) error {
	if err := c.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish to user %d: %w", userID, err)
	}
	return nil
}

// SubscribeUser opens a subscription to the user's channel.
// The caller must Close the returned PubSub.
func (c *Client) SubscribeUser(ctx context.Context, userID int64) *redis.PubSub {
	return c.Subscribe(ctx, UserChannel(userID))
}

// UserMessages streams payloads published to the user's channel until ctx ends
// or close is called. The subscription is confirmed before it returns.
func (c *Client) UserMessages(ctx context.Context, userID int64) (<-chan string, func() error, error) {
	sub := c.SubscribeUser(ctx, userID)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe user %d: %w", userID, err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}
