package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	r "github.com/fjod/go_bookstore/internal/repository"
	"github.com/google/uuid"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"
)

type MockRepository struct {
	mu           sync.Mutex
	OutboxEvents []*r.OutboxEvent
	GetErr       error
	MarkErr      error
	ProcessedIDs []int64
}

func (m *MockRepository) GetUnprocessedEvents(context.Context, int) ([]*r.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var pending []*r.OutboxEvent
	for _, e := range m.OutboxEvents {
		if !m.processed(e.ID) {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (m *MockRepository) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.ProcessedIDs = append(m.ProcessedIDs, id)
	return nil
}

func (m *MockRepository) processed(id int64) bool {
	for _, p := range m.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

func (m *MockRepository) processedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.ProcessedIDs...)
}

type fakeWriter struct {
	mu       sync.Mutex
	Messages []kafkaGo.Message
	Err      error
	FailKeys map[string]bool
	Calls    int
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Calls++
	if w.Err != nil {
		return w.Err
	}
	for _, m := range msgs {
		if w.FailKeys[string(m.Key)] {
			return fmt.Errorf("write %s: leader not available", m.Key)
		}
	}
	w.Messages = append(w.Messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

var testUserID = uuid.New().String()

func orderEvent(id int64) *r.OutboxEvent {
	return &r.OutboxEvent{
		ID:          id,
		AggregateID: fmt.Sprint(id * 10),
		EventType:   r.EventOrderPlaced,
		Payload:     json.RawMessage(fmt.Sprintf(`{"order_id":%d,"user_id":%q}`, id*10, testUserID)),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{orderEvent(1), orderEvent(2)}}
	w := &fakeWriter{}
	poller := newOutboxPoller(repo, w, zap.NewNop())

	poller.processUnpublishedEvents(context.Background())

	require.Len(t, w.Messages, 2)
	assert.Equal(t, "10", string(w.Messages[0].Key))
	assert.Equal(t, []kafkaGo.Header{{Key: "event_type", Value: []byte(r.EventOrderPlaced)}}, w.Messages[0].Headers)
	assert.Equal(t, []int64{1, 2}, repo.processedIDs())
}

func TestProcessUnpublishedEvents_FailedPublishStaysInOutbox(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{orderEvent(1), orderEvent(2), orderEvent(3)}}
	w := &fakeWriter{FailKeys: map[string]bool{"20": true}}
	poller := newOutboxPoller(repo, w, zap.NewNop())

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, []int64{1, 3}, repo.processedIDs())

	w.FailKeys = nil
	poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, []int64{1, 3, 2}, repo.processedIDs())
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	repo := &MockRepository{GetErr: errors.New("database is locked")}
	w := &fakeWriter{}
	poller := newOutboxPoller(repo, w, zap.NewNop())

	poller.processUnpublishedEvents(context.Background())

	assert.Zero(t, w.Calls)
}

func TestProcessUnpublishedEvents_MarkErrorIsNotFatal(t *testing.T) {
	repo := &MockRepository{
		OutboxEvents: []*r.OutboxEvent{orderEvent(1), orderEvent(2)},
		MarkErr:      errors.New("disk I/O error"),
	}
	w := &fakeWriter{}
	poller := newOutboxPoller(repo, w, zap.NewNop())

	poller.processUnpublishedEvents(context.Background())

	assert.Len(t, w.Messages, 2)
	assert.Empty(t, repo.processedIDs())
}

func TestProcessUnpublishedEvents_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	events := make([]*r.OutboxEvent, 0, 8)
	for i := int64(1); i <= 8; i++ {
		events = append(events, orderEvent(i))
	}
	repo := &MockRepository{OutboxEvents: events}
	w := &fakeWriter{Err: errors.New("broker unreachable")}
	poller := newOutboxPoller(repo, w, zap.NewNop())

	poller.processUnpublishedEvents(context.Background())

	assert.Equal(t, 5, w.Calls)
	assert.Equal(t, gobreaker.StateOpen, poller.breaker.State())
	assert.Empty(t, repo.processedIDs())

	// open breaker short-circuits without touching the writer
	poller.processUnpublishedEvents(context.Background())
	assert.Equal(t, 5, w.Calls)
}

func TestOutboxPoller_RunStopsOnCancel(t *testing.T) {
	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{orderEvent(1)}}
	poller := newOutboxPoller(repo, &fakeWriter{}, zap.NewNop())
	poller.eventTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(repo.processedIDs()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka container test in short mode")
	}
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	createTopic(t, brokerAddr, TopicOrdersPlaced)
	time.Sleep(5 * time.Second)

	repo := &MockRepository{OutboxEvents: []*r.OutboxEvent{orderEvent(1)}}

	writer := &kafkaGo.Writer{
		Addr:         kafkaGo.TCP(brokerAddr),
		Topic:        TopicOrdersPlaced,
		Balancer:     &kafkaGo.Hash{},
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}
	poller := newOutboxPoller(repo, writer, zap.NewNop())
	poller.timeout = 10 * time.Second
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    TopicOrdersPlaced,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10", string(msg.Key))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, float64(10), payload["order_id"])
	assert.Equal(t, testUserID, payload["user_id"])

	assert.Eventually(t, func() bool {
		return len(repo.processedIDs()) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
