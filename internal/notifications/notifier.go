// Package notifications delivers inbox notifications to connected websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"keystone/internal/middleware"
	"keystone/internal/models"

	"github.com/redis/go-redis/v9"
)

const userChannelPrefix = "notifications:user:"

// Event is the websocket frame sent for every notification.
type Event struct {
	Type    string               `json:"type"`
	Payload *models.Notification `json:"payload"`
}

// Notifier publishes notifications into per-user Redis channels. Without Redis it hands
// payloads straight to the local delivery function, if one is set.
type Notifier struct {
	rdb *redis.Client

	mu    sync.RWMutex
	local func(userID uint, payload string)
}

// NewNotifier creates a Notifier; rdb may be nil.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// UsesRedis reports whether payloads travel through Redis.
func (n *Notifier) UsesRedis() bool {
	return n != nil && n.rdb != nil
}

// SetLocalDelivery installs the in-process fallback used when Redis is absent.
func (n *Notifier) SetLocalDelivery(fn func(userID uint, payload string)) {
	n.mu.Lock()
	n.local = fn
	n.mu.Unlock()
}

// PublishUser sends a raw payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil {
		return nil
	}
	if n.rdb == nil {
		n.mu.RLock()
		deliver := n.local
		n.mu.RUnlock()
		if deliver != nil {
			deliver(userID, payload)
		}
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishNotification wraps n in an Event and publishes it to its recipient.
func (n *Notifier) PublishNotification(ctx context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(Event{Type: "notification", Payload: notification})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.PublishUser(ctx, notification.UserID, string(payload))
}

// StartPatternSubscriber subscribes to notifications:user:* and calls onMessage for each
// message until ctx is cancelled. It returns once the subscription is confirmed.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe notifications: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error("panic in notification subscriber",
								slog.Any("panic", r),
								slog.String("stack", string(debug.Stack())),
							)
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return userChannelPrefix + strconv.FormatUint(uint64(userID), 10)
}

// ParseUserChannel extracts the user id from a channel produced by UserChannel.
func ParseUserChannel(channel string) (uint, bool) {
	raw, ok := strings.CutPrefix(channel, userChannelPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
