package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserChannel(t *testing.T) {
	assert.Equal(t, "notifications:user:42", UserChannel(42))
}

func TestPublishUser_ReachesSubscriber(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, client.Ping(ctx))

	sub := client.SubscribeUser(ctx, 7)
	defer sub.Close()
	_, err = sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	require.NoError(t, client.PublishUser(ctx, 7, `{"type":"unread_count","unread_count":3}`))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "notifications:user:7", msg.Channel)
	assert.JSONEq(t, `{"type":"unread_count","unread_count":3}`, msg.Payload)
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("://nope")
	assert.Error(t, err)
}

func TestUserMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient("redis://" + mr.Addr())
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msgs, closeSub, err := client.UserMessages(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, client.PublishUser(ctx, 5, "hello"))
	select {
	case got := <-msgs:
		assert.Equal(t, "hello", got)
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	require.NoError(t, closeSub())
	for range msgs {
	}
}
