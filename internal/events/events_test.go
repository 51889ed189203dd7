package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RunsAllHandlers(t *testing.T) {
	d := NewInMemoryDispatcher()
	var calls []string
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "first")
		return errors.New("boom")
	})
	d.Subscribe(EventTicketCreated, func(context.Context, Event) error {
		calls = append(calls, "second")
		return nil
	})
	d.Subscribe(EventTicketDeleted, func(context.Context, Event) error {
		calls = append(calls, "other")
		return nil
	})

	err := d.Publish(context.Background(), Event{Type: EventTicketCreated})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, []string{"first", "second"}, calls)
}

func TestSubscribeAll(t *testing.T) {
	d := NewInMemoryDispatcher()
	seen := map[EventType]int{}
	SubscribeAll(d, func(_ context.Context, e Event) error {
		seen[e.Type]++
		return nil
	})

	for _, eventType := range AllEventTypes() {
		require.NoError(t, d.Publish(context.Background(), Event{Type: eventType}))
	}
	assert.Len(t, seen, len(AllEventTypes()))
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestRedisSink_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := &RedisSink{client: pub, channel: "tickets.events"}
	actor := int64(3)

	err := sink.Send(context.Background(), Event{ID: "e1", Type: EventTicketCreated, TicketID: 9, ActorID: &actor})
	require.NoError(t, err)
	assert.Equal(t, "tickets.events", pub.channel)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "ticket_created", decoded["type"])
	assert.Equal(t, float64(9), decoded["ticketId"])
	assert.Equal(t, float64(3), decoded["actorId"])
}

func TestRedisSink_PropagatesError(t *testing.T) {
	sink := &RedisSink{client: &fakePublisher{err: errors.New("down")}, channel: "c"}
	assert.Error(t, sink.Send(context.Background(), Event{Type: EventTicketDeleted}))
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaSink_KeysByTicket(t *testing.T) {
	w := &fakeWriter{}
	sink := &KafkaSink{writer: w}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, sink.Send(context.Background(), Event{Type: EventTicketSLABreached, TicketID: 42, Timestamp: at}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "42", string(w.msgs[0].Key))
	assert.Equal(t, "ticket_sla_breached", string(w.msgs[0].Headers[0].Value))
	assert.True(t, w.msgs[0].Time.Equal(at))

	require.NoError(t, sink.Close())
	assert.True(t, w.closed)
}

func TestNewKafkaSink_DisabledWithoutBrokers(t *testing.T) {
	assert.Nil(t, NewKafkaSink(nil, "topic"))
	assert.Nil(t, NewKafkaSink([]string{"localhost:9092"}, ""))
	assert.NotNil(t, NewKafkaSink([]string{"localhost:9092"}, "topic"))
}
