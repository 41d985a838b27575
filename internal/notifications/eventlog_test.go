package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"inspiro/internal/models"
	"inspiro/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type recorder struct{ events []models.Event }

func (r *recorder) Publish(_ context.Context, e models.Event) { r.events = append(r.events, e) }

func TestEventLog_WithoutBrokersIsDisabled(t *testing.T) {
	l := NewEventLog(nil, "inspiro.posts")
	assert.False(t, l.Enabled())
	l.Publish(context.Background(), models.Event{Type: models.EventPostCreated})
	assert.NoError(t, l.Close())

	assert.True(t, NewEventLog([]string{"localhost:9092"}, "inspiro.posts").Enabled())
}

func TestEventLog_KeysByPost(t *testing.T) {
	w := &fakeWriter{}
	l := &EventLog{w: w}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	l.Publish(context.Background(), models.Event{Type: models.EventPostLiked, ActorID: 2, PostID: 9, OccurredAt: at})
	l.Publish(context.Background(), models.Event{Type: models.EventAccountDeleted, ActorID: 3, OccurredAt: at})

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "post:9", string(w.msgs[0].Key))
	assert.Equal(t, "account:3", string(w.msgs[1].Key))
	assert.Equal(t, "post.liked", string(w.msgs[0].Headers[0].Value))
	assert.Equal(t, at, w.msgs[0].Time)

	var decoded models.Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, uint(2), decoded.ActorID)
}

func TestEventLog_WriteFailureIsSwallowed(t *testing.T) {
	l := &EventLog{w: &fakeWriter{err: errors.New("broker down")}}
	assert.NotPanics(t, func() {
		l.Publish(context.Background(), models.Event{Type: models.EventPostCreated, PostID: 1})
	})
}

func TestEventLog_PublishDoesNotWaitForBroker(t *testing.T) {
	l := NewEventLog([]string{"127.0.0.1:1"}, "inspiro.posts")
	t.Cleanup(func() { _ = l.Close() })

	start := time.Now()
	for i := 0; i < 5; i++ {
		l.Publish(context.Background(), models.Event{Type: models.EventPostLiked, ActorID: 1, PostID: uint(i + 1)})
	}
	assert.Less(t, time.Since(start), 5*enqueueTimeout)
}

func TestEventLog_CompletionCountsDeliveredBatches(t *testing.T) {
	l := &EventLog{}
	msg := kafka.Message{Key: []byte("post:4"), Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(models.EventPostSaved)}}}
	counter := observability.EventsPublished.WithLabelValues("kafka", models.EventPostSaved)
	before := testutil.ToFloat64(counter)

	l.completed([]kafka.Message{msg, msg}, nil)
	assert.Equal(t, before+2, testutil.ToFloat64(counter))

	l.completed([]kafka.Message{msg}, errors.New("leader not available"))
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestFanout_DeliversToEveryPublisher(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	f := Fanout{a, nil, b}
	f.Publish(context.Background(), models.Event{Type: models.EventPostSaved})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}
