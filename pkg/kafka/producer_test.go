package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
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

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

// --- Event tests ---

func TestNewEvent_Fields(t *testing.T) {
	type loginData struct {
		Action string `json:"action"`
		IP     string `json:"ip"`
	}

	data := loginData{Action: "LOGIN_SUCCESS", IP: "10.0.0.7"}
	event, err := NewEvent("audit.recorded", "42", "principal", "auth-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "audit.recorded", event.EventType)
	assert.Equal(t, "42", event.AggregateID)
	assert.Equal(t, "principal", event.AggregateType)
	assert.Equal(t, "auth-service", event.Source)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got loginData
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, data, got)
}

func TestNewEventAt_UsesGivenTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	event, err := NewEventAt(at, "audit.recorded", "1", "principal", "svc", nil)
	require.NoError(t, err)
	assert.True(t, event.Timestamp.Equal(at))
	assert.Equal(t, time.UTC, event.Timestamp.Location())
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("test.event", "agg-1", "test", "test-service", make(chan int))
	require.Error(t, err)
}

func TestEvent_WithMetadata_NilMetadataMap(t *testing.T) {
	event := &Event{EventID: "test-id"}
	result := event.WithMetadata("ip", "10.0.0.7").WithCorrelationID("corr-1")
	assert.Same(t, event, result)
	assert.Equal(t, "10.0.0.7", event.Metadata["ip"])
	assert.Equal(t, "corr-1", event.CorrelationID)
}

func TestUnmarshalEvent_InvalidJSON(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{broken json`))
	require.Error(t, err)
}

// --- Producer tests ---

func TestTopic_Format(t *testing.T) {
	assert.Equal(t, "auth.audit.recorded", Topic("audit", "recorded"))
}

func TestProducer_Publish_WritesKeyedMessageWithHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, []string{"localhost:9092"}, nil)

	event, err := NewEvent("audit.recorded", "42", "principal", "auth-service", map[string]string{"action": "LOGOUT"})
	require.NoError(t, err)
	event.WithCorrelationID("corr-9")

	require.NoError(t, p.Publish(context.Background(), "auth.audit.recorded", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "auth.audit.recorded", msg.Topic)
	assert.Equal(t, []byte("42"), msg.Key)

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "audit.recorded", carrier.Get("event_type"))
	assert.Equal(t, "auth-service", carrier.Get("source"))
	assert.Equal(t, "corr-9", carrier.Get("correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_WriterError(t *testing.T) {
	w := &fakeWriter{err: errors.New("kafka: leader not available")}
	p := NewProducerWithWriter(w, nil, nil)

	event, err := NewEvent("audit.recorded", "1", "principal", "svc", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "auth.audit.recorded", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.audit.recorded")
	assert.ErrorIs(t, err, w.err)
}

func TestProducer_Close(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, nil, nil)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"broker1:9092"})
	assert.Equal(t, []string{"broker1:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10*time.Millisecond, cfg.BatchTimeout)
	assert.False(t, cfg.Async)
}

func TestPingBrokers_NoBrokers(t *testing.T) {
	err := PingBrokers(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no brokers configured")
}
