package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is one decoded stream entry.
type Message struct {
	ID    string // stream entry id, e.g. "1702000000000-0"
	Event Event
}

// Consumer reads events as a member of a consumer group.
type Consumer interface {
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read returns entries never delivered to the group, blocking up to block.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns entries delivered to consumer but not yet
	// acknowledged, with ids after the given one ("" or "0" starts at the head).
	ReadPending(ctx context.Context, stream, group, consumer, after string, count int64) ([]Message, error)

	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	// Pending counts unacknowledged entries across the group.
	Pending(ctx context.Context, stream, group string) (int64, error)
}

// RedisConsumer implements Consumer with XREADGROUP.
type RedisConsumer struct {
	client *redis.Client
}

func NewConsumer(client *redis.Client) Consumer {
	return &RedisConsumer{client: client}
}

// EnsureGroup creates the group at the start of the stream, creating the
// stream too. An existing group is not an error.
func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", group, stream, err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	return c.readGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	})
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer, after string, count int64) ([]Message, error) {
	if after == "" {
		after = "0"
	}
	// A negative Block omits BLOCK; history reads never wait.
	return c.readGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, after},
		Count:    count,
		Block:    -1,
	})
}

func (c *RedisConsumer) readGroup(ctx context.Context, args *redis.XReadGroupArgs) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s as %s: %w", args.Streams[0], args.Consumer, err)
	}

	var messages []Message
	for _, s := range streams {
		var poison []string
		for _, entry := range s.Messages {
			event, err := ParseEvent(entry.Values)
			if err != nil {
				log.Printf("[Consumer] dropping undecodable entry %s on %s: %v", entry.ID, s.Stream, err)
				poison = append(poison, entry.ID)
				continue
			}
			messages = append(messages, Message{ID: entry.ID, Event: event})
		}
		// Undecodable entries would otherwise be replayed on every restart.
		if err := c.Ack(ctx, s.Stream, args.Group, poison...); err != nil {
			log.Printf("[Consumer] %v", err)
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack %v on %s: %w", messageIDs, stream, err)
	}
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending %s: %w", stream, err)
	}
	return info.Count, nil
}
