package outbox

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mailpilot/pkg/trace"
)

type fakeStore struct {
	pending []*Event
	sent    []int64
	failed  []int64
}

func (s *fakeStore) GetPendingEvents(_ context.Context, limit int) ([]*Event, error) {
	if len(s.pending) > limit {
		return s.pending[:limit], nil
	}
	return s.pending, nil
}

func (s *fakeStore) MarkAsSent(_ context.Context, id int64) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkAsFailed(_ context.Context, id int64, _ int) error {
	s.failed = append(s.failed, id)
	return nil
}

type published struct {
	routingKey string
	body       string
	traceID    string
}

type fakePublisher struct {
	failFor map[string]bool
	got     []published
}

func (p *fakePublisher) PublishRaw(ctx context.Context, routingKey string, body []byte) error {
	if p.failFor[string(body)] {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, published{routingKey: routingKey, body: string(body), traceID: trace.FromContext(ctx)})
	return nil
}

func TestDispatcher_ProcessPending(t *testing.T) {
	ok, err := NewEvent("notification", "m1:new_email", "notification.requested", map[string]string{"id": "m1:new_email", "trace_id": "t-1"})
	require.NoError(t, err)
	ok.ID = 1
	bad, err := NewEvent("notification", "m2:new_email", "notification.requested", map[string]string{"id": "m2:new_email"})
	require.NoError(t, err)
	bad.ID = 2

	store := &fakeStore{pending: []*Event{ok, bad}}
	pub := &fakePublisher{failFor: map[string]bool{string(bad.Payload): true}}

	d := NewDispatcher(store, pub, zap.NewNop()).WithBatchSize(10)
	sent := d.ProcessPending(context.Background())

	assert.Equal(t, 1, sent)
	assert.Equal(t, []int64{1}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)
	require.Len(t, pub.got, 1)
	assert.Equal(t, "notification.requested", pub.got[0].routingKey)
	assert.Equal(t, "t-1", pub.got[0].traceID)
}

func TestDispatcher_RespectsBatchSize(t *testing.T) {
	var events []*Event
	for i := 0; i < 5; i++ {
		e, err := NewEvent("notification", string(rune('a'+i)), "rk", map[string]int{"n": i})
		require.NoError(t, err)
		e.ID = int64(i + 1)
		events = append(events, e)
	}
	store := &fakeStore{pending: events}
	pub := &fakePublisher{}

	sent := NewDispatcher(store, pub, zap.NewNop()).WithBatchSize(2).ProcessPending(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 2}, store.sent)
}
