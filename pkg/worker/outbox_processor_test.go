package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/messaging"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

type fakeOutbox struct {
	mu       sync.Mutex
	events   []*model.OutboxEvent
	statuses map[uuid.UUID]model.OutboxStatus
}

func (f *fakeOutbox) Create(_ context.Context, e *model.OutboxEvent) error {
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutbox) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range f.events {
		if _, done := f.statuses[e.ID]; !done && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeOutbox) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, _ *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
	return nil
}

func (f *fakeOutbox) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type fakeBroker struct {
	published map[string][][]byte
	failFor   string
}

func (b *fakeBroker) Publish(_ context.Context, channel string, payload []byte) error {
	if channel == b.failFor {
		return errors.New("broker down")
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, nil
}

func (b *fakeBroker) Close() error { return nil }

func newEvent(eventType string) *model.OutboxEvent {
	return &model.OutboxEvent{ID: uuid.New(), EventType: eventType, Payload: json.RawMessage(`{"ok":true}`)}
}

func TestOutboxProcessor_ProcessBatch(t *testing.T) {
	repo := &fakeOutbox{statuses: map[uuid.UUID]model.OutboxStatus{}}
	ok := newEvent(model.EventPaymentRecorded)
	bad := newEvent(model.EventInvoiceGenerated)
	repo.events = []*model.OutboxEvent{ok, bad}

	broker := &fakeBroker{published: map[string][][]byte{}, failFor: model.EventInvoiceGenerated}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())

	p, err := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize: 10, PollInterval: time.Second, RetryAttempts: 2, RetryDelay: time.Millisecond,
	}, logger.Nop(), m)
	require.NoError(t, err)

	n, err := p.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, model.OutboxStatusProcessed, repo.statuses[ok.ID])
	assert.Equal(t, model.OutboxStatusFailed, repo.statuses[bad.ID])

	require.Len(t, broker.published[model.EventPaymentRecorded], 1)
	var msg messaging.Message
	require.NoError(t, json.Unmarshal(broker.published[model.EventPaymentRecorded][0], &msg))
	assert.Equal(t, ok.ID.String(), msg.ID)
	assert.JSONEq(t, `{"ok":true}`, string(msg.Payload))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxRetries.WithLabelValues(model.EventInvoiceGenerated)))
}

func TestNewOutboxProcessor_RejectsBadConfig(t *testing.T) {
	_, err := NewOutboxProcessor(nil, nil, OutboxProcessorConfig{}, logger.Nop(), nil)
	assert.Error(t, err)
}
