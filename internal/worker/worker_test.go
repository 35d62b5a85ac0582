package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"readingclub/internal/cache"
	"readingclub/internal/model"
	"readingclub/internal/push"
	"readingclub/internal/queue"
	"readingclub/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockCounter struct {
	counts map[int64]int
	err    error
}

func (m *MockCounter) GetUnreadCount(ctx context.Context, userID int64) (int, error) {
	return m.counts[userID], m.err
}

// MockUserPublisher records payloads per user. Safe for use from workers.
type MockUserPublisher struct {
	mu       sync.Mutex
	payloads map[int64][]worker.LivePayload
	err      error
	calls    int
}

func NewMockUserPublisher() *MockUserPublisher {
	return &MockUserPublisher{payloads: make(map[int64][]worker.LivePayload)}
}

func (m *MockUserPublisher) PublishUser(ctx context.Context, userID int64, payload string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return m.err
	}
	var p worker.LivePayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return err
	}
	m.payloads[userID] = append(m.payloads[userID], p)
	return nil
}

func (m *MockUserPublisher) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockUserPublisher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockUserPublisher) For(userID int64) []worker.LivePayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]worker.LivePayload(nil), m.payloads[userID]...)
}

type MockTokenStore struct {
	tokens map[int64][]string
	pruned []string
}

func (m *MockTokenStore) GetByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	var out []model.DeviceToken
	for _, tok := range m.tokens[userID] {
		out = append(out, model.DeviceToken{UserID: userID, Token: tok})
	}
	return out, nil
}

func (m *MockTokenStore) DeleteTokens(ctx context.Context, tokens []string) (int64, error) {
	m.pruned = append(m.pruned, tokens...)
	return int64(len(tokens)), nil
}

type MockSender struct {
	SendFunc func(ctx context.Context, tokens []string, msg push.Message) (*push.Result, error)
	sent     []push.Message
}

func (m *MockSender) Send(ctx context.Context, tokens []string, msg push.Message) (*push.Result, error) {
	m.sent = append(m.sent, msg)
	if m.SendFunc != nil {
		return m.SendFunc(ctx, tokens, msg)
	}
	return &push.Result{Sent: len(tokens)}, nil
}

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func likeEvent(recipient int64) queue.Event {
	actor := int64(9)
	return queue.NewNotificationCreatedEvent(recipient, 100, string(model.NotificationThreadLike), &actor, "bob liked your thread")
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandler_NotificationCreated(t *testing.T) {
	// ARRANGE
	counter := &MockCounter{counts: map[int64]int{1: 4}}
	pub := NewMockUserPublisher()
	tokens := &MockTokenStore{tokens: map[int64][]string{1: {"good", "stale"}}}
	sender := &MockSender{SendFunc: func(ctx context.Context, toks []string, msg push.Message) (*push.Result, error) {
		return &push.Result{Sent: 1, Failed: 1, Unregistered: []string{"stale"}}, nil
	}}
	h := worker.NewHandler(counter, pub)
	h.SetPush(tokens, sender)

	// ACT
	err := h.HandleEvent(context.Background(), likeEvent(1))

	// ASSERT
	require.NoError(t, err)
	payloads := pub.For(1)
	require.Len(t, payloads, 1)
	assert.Equal(t, worker.PayloadNotification, payloads[0].Type)
	assert.Equal(t, int64(100), payloads[0].NotificationID)
	assert.Equal(t, "bob liked your thread", payloads[0].Message)
	assert.Equal(t, 4, payloads[0].UnreadCount)
	require.NotNil(t, payloads[0].ActorID)
	assert.Equal(t, int64(9), *payloads[0].ActorID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "bob liked your thread", sender.sent[0].Body)
	assert.Equal(t, "100", sender.sent[0].Data["notification_id"])
	require.NotNil(t, sender.sent[0].Badge)
	assert.Equal(t, 4, *sender.sent[0].Badge)
	assert.Equal(t, []string{"stale"}, tokens.pruned)
}

func TestHandler_NotificationCreated_NoDevices(t *testing.T) {
	sender := &MockSender{}
	h := worker.NewHandler(&MockCounter{}, NewMockUserPublisher())
	h.SetPush(&MockTokenStore{}, sender)

	require.NoError(t, h.HandleEvent(context.Background(), likeEvent(1)))
	assert.Empty(t, sender.sent)
}

func TestHandler_PushFailureIsNotFatal(t *testing.T) {
	pub := NewMockUserPublisher()
	sender := &MockSender{SendFunc: func(ctx context.Context, toks []string, msg push.Message) (*push.Result, error) {
		return nil, errors.New("provider down")
	}}
	h := worker.NewHandler(&MockCounter{}, pub)
	h.SetPush(&MockTokenStore{tokens: map[int64][]string{1: {"t"}}}, sender)

	err := h.HandleEvent(context.Background(), likeEvent(1))

	assert.NoError(t, err)
	assert.Len(t, pub.For(1), 1)
}

func TestHandler_UnreadChanged(t *testing.T) {
	pub := NewMockUserPublisher()
	h := worker.NewHandler(&MockCounter{counts: map[int64]int{2: 0}}, pub)

	err := h.HandleEvent(context.Background(), queue.NewUnreadChangedEvent(2))

	require.NoError(t, err)
	payloads := pub.For(2)
	require.Len(t, payloads, 1)
	assert.Equal(t, worker.PayloadUnreadCount, payloads[0].Type)
	assert.Zero(t, payloads[0].UnreadCount)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name    string
		counter *MockCounter
		pubErr  error
		event   queue.Event
	}{
		{"unknown type", &MockCounter{}, nil, queue.Event{ID: "x", Type: "post_created"}},
		{"count fails", &MockCounter{err: errors.New("db down")}, nil, queue.NewUnreadChangedEvent(1)},
		{"publish fails", &MockCounter{}, errors.New("redis down"), likeEvent(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := NewMockUserPublisher()
			pub.SetErr(tt.pubErr)
			h := worker.NewHandler(tt.counter, pub)

			assert.Error(t, h.HandleEvent(context.Background(), tt.event))
		})
	}
}

func TestHandler_DeliveryLogSkipsReplays(t *testing.T) {
	// ARRANGE
	client := setupTestRedis(t)
	pub := NewMockUserPublisher()
	h := worker.NewHandler(&MockCounter{}, pub)
	h.SetDeliveryLog(cache.NewDeliveryLog(client))
	event := likeEvent(1)
	ctx := context.Background()

	// ACT
	require.NoError(t, h.HandleEvent(ctx, event))
	require.NoError(t, h.HandleEvent(ctx, event))

	// ASSERT
	assert.Len(t, pub.For(1), 1)
}

func TestHandler_DeliveryLogForgetsFailures(t *testing.T) {
	client := setupTestRedis(t)
	pub := NewMockUserPublisher()
	pub.SetErr(errors.New("redis down"))
	h := worker.NewHandler(&MockCounter{}, pub)
	h.SetDeliveryLog(cache.NewDeliveryLog(client))
	event := likeEvent(1)
	ctx := context.Background()

	require.Error(t, h.HandleEvent(ctx, event))

	pub.SetErr(nil)
	require.NoError(t, h.HandleEvent(ctx, event))
	assert.Len(t, pub.For(1), 1)
}

// =============================================================================
// Manager Tests
// =============================================================================

func TestManager_DeliversAndAcks(t *testing.T) {
	// ARRANGE
	client := setupTestRedis(t)
	publisher := queue.NewPublisher(client, 0)
	consumer := queue.NewConsumer(client)
	pub := NewMockUserPublisher()
	h := worker.NewHandler(&MockCounter{counts: map[int64]int{1: 1}}, pub)

	m := worker.NewManager(consumer, h, worker.ManagerConfig{
		WorkerCount:  2,
		BatchSize:    5,
		BlockTimeout: 50 * time.Millisecond,
	})
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	// ACT
	_, err := publisher.Publish(ctx, queue.StreamNotifications, likeEvent(1))
	require.NoError(t, err)
	_, err = publisher.Publish(ctx, queue.StreamNotifications, queue.NewUnreadChangedEvent(1))
	require.NoError(t, err)

	// ASSERT
	require.Eventually(t, func() bool { return len(pub.For(1)) == 2 }, 3*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		pending, err := m.Pending(ctx)
		return err == nil && pending == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestManager_ReplaysPendingOnStart(t *testing.T) {
	// ARRANGE: a previous worker-1 read the message and died before acking.
	client := setupTestRedis(t)
	publisher := queue.NewPublisher(client, 0)
	consumer := queue.NewConsumer(client)
	ctx := context.Background()

	require.NoError(t, consumer.EnsureGroup(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery))
	_, err := publisher.Publish(ctx, queue.StreamNotifications, likeEvent(3))
	require.NoError(t, err)
	msgs, err := consumer.Read(ctx, queue.StreamNotifications, queue.ConsumerGroupDelivery, "worker-1", 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	pub := NewMockUserPublisher()
	m := worker.NewManager(consumer, worker.NewHandler(&MockCounter{}, pub), worker.ManagerConfig{
		WorkerCount:  1,
		BlockTimeout: 50 * time.Millisecond,
	})

	// ACT
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	// ASSERT
	require.Eventually(t, func() bool { return len(pub.For(3)) == 1 }, 3*time.Second, 20*time.Millisecond)
}

func pendingIs(ctx context.Context, m *worker.Manager, want int64) func() bool {
	return func() bool {
		n, err := m.Pending(ctx)
		return err == nil && n == want
	}
}

func TestManager_RetriesFailedDelivery(t *testing.T) {
	// ARRANGE: the live channel is down for the first attempts.
	client := setupTestRedis(t)
	publisher := queue.NewPublisher(client, 0)
	pub := NewMockUserPublisher()
	pub.SetErr(errors.New("redis down"))
	h := worker.NewHandler(&MockCounter{}, pub)
	h.SetDeliveryLog(cache.NewDeliveryLog(client))

	m := worker.NewManager(queue.NewConsumer(client), h, worker.ManagerConfig{
		WorkerCount:   1,
		BlockTimeout:  20 * time.Millisecond,
		MaxAttempts:   100,
		RetryInterval: 20 * time.Millisecond,
	})
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	_, err := publisher.Publish(ctx, queue.StreamNotifications, likeEvent(1))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return pub.Calls() >= 1 }, 3*time.Second, 10*time.Millisecond)
	n, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "failed entry stays pending")

	// ACT
	pub.SetErr(nil)

	// ASSERT
	require.Eventually(t, func() bool { return len(pub.For(1)) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, pendingIs(ctx, m, 0), 3*time.Second, 10*time.Millisecond)
}

func TestManager_FailedDeliverySurvivesRestart(t *testing.T) {
	// ARRANGE
	client := setupTestRedis(t)
	publisher := queue.NewPublisher(client, 0)
	consumer := queue.NewConsumer(client)
	pub := NewMockUserPublisher()
	pub.SetErr(errors.New("redis down"))
	cfg := worker.ManagerConfig{WorkerCount: 1, BlockTimeout: 20 * time.Millisecond, RetryInterval: time.Hour}
	ctx := context.Background()

	first := worker.NewManager(consumer, worker.NewHandler(&MockCounter{}, pub), cfg)
	require.NoError(t, first.Start(ctx))
	_, err := publisher.Publish(ctx, queue.StreamNotifications, likeEvent(4))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return pub.Calls() >= 1 }, 3*time.Second, 10*time.Millisecond)
	first.Stop()

	// ACT
	pub.SetErr(nil)
	second := worker.NewManager(consumer, worker.NewHandler(&MockCounter{}, pub), cfg)
	require.NoError(t, second.Start(ctx))
	defer second.Stop()

	// ASSERT
	require.Eventually(t, func() bool { return len(pub.For(4)) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, pendingIs(ctx, second, 0), 3*time.Second, 10*time.Millisecond)
}

func TestManager_DropsAfterMaxAttempts(t *testing.T) {
	client := setupTestRedis(t)
	publisher := queue.NewPublisher(client, 0)
	pub := NewMockUserPublisher()
	pub.SetErr(errors.New("redis down"))

	m := worker.NewManager(queue.NewConsumer(client), worker.NewHandler(&MockCounter{}, pub), worker.ManagerConfig{
		WorkerCount:   1,
		BlockTimeout:  20 * time.Millisecond,
		MaxAttempts:   3,
		RetryInterval: 10 * time.Millisecond,
	})
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	_, err := publisher.Publish(ctx, queue.StreamNotifications, likeEvent(1))
	require.NoError(t, err)

	require.Eventually(t, pendingIs(ctx, m, 0), 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 3, pub.Calls())
	assert.Empty(t, pub.For(1))
}

func TestManager_AcksUnknownEventsAtOnce(t *testing.T) {
	client := setupTestRedis(t)
	publisher := queue.NewPublisher(client, 0)
	pub := NewMockUserPublisher()

	m := worker.NewManager(queue.NewConsumer(client), worker.NewHandler(&MockCounter{}, pub), worker.ManagerConfig{
		WorkerCount:   1,
		BlockTimeout:  20 * time.Millisecond,
		RetryInterval: time.Hour,
	})
	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	defer m.Stop()

	_, err := publisher.Publish(ctx, queue.StreamNotifications, queue.Event{ID: "legacy-1", Type: "post_created", RecipientID: 1})
	require.NoError(t, err)
	_, err = publisher.Publish(ctx, queue.StreamNotifications, likeEvent(1))
	require.NoError(t, err)

	// Entries are handled in order, so once the second lands the first was seen.
	require.Eventually(t, func() bool { return len(pub.For(1)) == 1 }, 3*time.Second, 10*time.Millisecond)
	require.Eventually(t, pendingIs(ctx, m, 0), 3*time.Second, 10*time.Millisecond)
}

func TestHandler_UnknownEventIsPermanent(t *testing.T) {
	h := worker.NewHandler(&MockCounter{}, NewMockUserPublisher())

	err := h.HandleEvent(context.Background(), queue.Event{ID: "x", Type: "post_created"})

	assert.ErrorIs(t, err, worker.ErrUnknownEvent)
}
