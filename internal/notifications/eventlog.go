package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"inspiro/internal/middleware"
	"inspiro/internal/models"
	"inspiro/internal/observability"

	"github.com/segmentio/kafka-go"
)

const (
	eventTypeHeader = "event_type"
	// Bounds the partition metadata lookup that precedes enqueueing.
	enqueueTimeout = 500 * time.Millisecond
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventLog appends every domain event to a Kafka topic keyed by post, so
// consumers see the events of one post in order. Writes are asynchronous:
// Publish only enqueues, and delivery outcomes are reported by completed.
type EventLog struct {
	w messageWriter
}

// NewEventLog returns a Kafka-backed log. Without brokers the log discards
// everything.
func NewEventLog(brokers []string, topic string) *EventLog {
	if len(brokers) == 0 {
		return &EventLog{}
	}
	l := &EventLog{}
	l.w = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		MaxAttempts:            3,
		WriteBackoffMax:        250 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion:             l.completed,
	}
	return l
}

// Enabled reports whether events are written anywhere.
func (l *EventLog) Enabled() bool { return l.w != nil }

// Publish enqueues e for the topic. Failures are logged and never reach the
// caller.
func (l *EventLog) Publish(ctx context.Context, e models.Event) {
	if l.w == nil {
		return
	}
	value, err := json.Marshal(e)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to encode event", slog.String("error", err.Error()))
		return
	}
	key := "account:" + strconv.FormatUint(uint64(e.ActorID), 10)
	if e.PostID != 0 {
		key = "post:" + strconv.FormatUint(uint64(e.PostID), 10)
	}

	// The request may finish before the batch is flushed.
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	err = l.w.WriteMessages(enqueueCtx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: eventTypeHeader, Value: []byte(e.Type)},
		},
	})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "failed to enqueue event",
			slog.String("event", e.Type), slog.String("error", err.Error()))
	}
}

// completed runs once per flushed batch.
func (l *EventLog) completed(msgs []kafka.Message, err error) {
	for _, m := range msgs {
		eventType := headerValue(m, eventTypeHeader)
		if err != nil {
			middleware.Logger.Warn("failed to append event",
				slog.String("event", eventType), slog.String("key", string(m.Key)), slog.String("error", err.Error()))
			continue
		}
		observability.EventsPublished.WithLabelValues("kafka", eventType).Inc()
	}
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes pending writes.
func (l *EventLog) Close() error {
	if l.w == nil {
		return nil
	}
	return l.w.Close()
}
