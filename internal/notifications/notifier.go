// Package notifications fans domain events out to live WebSocket subscribers
// and the post event log.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "notifications:user:"
	broadcastChannel  = "notifications:broadcast"
)

// Message is the JSON frame delivered to WebSocket clients.
type Message struct {
	Type    string       `json:"type"`
	Payload models.Event `json:"payload"`
}

// Notifier publishes notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Publish delivers e to its recipient's channel, or to everyone when e is a
// broadcast. Other events are not delivered live.
func (n *Notifier) Publish(ctx context.Context, e models.Event) {
	if e.RecipientID == 0 && !e.Broadcast {
		return
	}
	data, err := json.Marshal(Message{Type: e.Type, Payload: e})
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode notification", slog.String("error", err.Error()))
		return
	}
	if e.Broadcast {
		err = n.PublishBroadcast(ctx, string(data))
	} else {
		err = n.PublishUser(ctx, e.RecipientID, string(data))
	}
	if err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		middleware.Logger.WarnContext(ctx, "failed to publish notification",
			slog.String("event", e.Type),
			slog.Uint64("recipient_id", uint64(e.RecipientID)),
			slog.String("error", err.Error()),
		)
		return
	}
	observability.EventsPublished.WithLabelValues("redis", e.Type).Inc()
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a notification payload to all connected users.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, broadcastChannel, payload).Err()
}

// StartPatternSubscriber subscribes to every user channel and the broadcast
// channel and calls onMessage for each incoming message until ctx is done.
func (n *Notifier) StartPatternSubscriber(ctx context.Context, onMessage func(channel, payload string)) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPrefix+"*", broadcastChannel)
	// Wait for the subscription so messages published right after Start are
	// not lost.
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
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
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

// ParseUserChannel extracts the user ID from a channel built by UserChannel.
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
