package notifications

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"keystone/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), 1, "payload"))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))
	assert.False(t, n.UsesRedis())
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		userID   uint
		expected string
	}{
		{1, "notifications:user:1"},
		{100, "notifications:user:100"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, UserChannel(tt.userID))
		id, ok := ParseUserChannel(tt.expected)
		assert.True(t, ok)
		assert.Equal(t, tt.userID, id)
	}

	for _, bad := range []string{"notifications:user:", "notifications:user:x", "notifications:user:0", "chat:conv:1"} {
		_, ok := ParseUserChannel(bad)
		assert.False(t, ok, bad)
	}
}

func TestNotifier_LocalDeliveryWithoutRedis(t *testing.T) {
	hub := NewHub()
	n := NewNotifier(nil)
	require.NoError(t, hub.StartWiring(context.Background(), n))

	client, err := hub.Register(5, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishNotification(context.Background(), &models.Notification{ID: 1, UserID: 5, Title: "New task assigned"}))

	select {
	case raw := <-client.Send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		assert.Equal(t, "notification", ev.Type)
		assert.Equal(t, "New task assigned", ev.Payload.Title)
	default:
		t.Fatal("expected a queued message")
	}
}

func TestNotifier_RedisFanOutToHub(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/alicebob/miniredis/v2/server.(*Server).servePeer"))

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var seen []string
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, _ string) {
		mu.Lock()
		seen = append(seen, channel)
		mu.Unlock()
	}))
	require.NoError(t, hub.StartWiring(ctx, n))

	client, err := hub.Register(42, nil)
	require.NoError(t, err)

	require.NoError(t, n.PublishUser(context.Background(), 42, `{"type":"notification"}`))

	assert.Eventually(t, func() bool {
		return len(client.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "notifications:user:42"
	}, testEventuallyTimeout, testPollInterval)

	cancel()
	// Subscriber goroutines exit once the context is cancelled.
	time.Sleep(50 * time.Millisecond)
}
