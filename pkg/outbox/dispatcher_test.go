package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"pmplanner/pkg/trace"
)

type fakeStore struct {
	pending []*Event
	sent    []int64
	failed  []int64
}

func (f *fakeStore) Pending(context.Context, int) ([]*Event, error) { return f.pending, nil }

func (f *fakeStore) MarkSent(_ context.Context, id int64) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id int64, _ int) error {
	f.failed = append(f.failed, id)
	return nil
}

type recordingPublisher struct {
	traceIDs []string
	failKey  string
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, _ any) error {
	if routingKey == p.failKey {
		return errors.New("broker unavailable")
	}
	p.traceIDs = append(p.traceIDs, trace.FromContext(ctx))
	return nil
}

func TestDispatcher_RunOnce(t *testing.T) {
	store := &fakeStore{pending: []*Event{
		{ID: 1, RoutingKey: "planning.wbs.persisted", Payload: json.RawMessage(`{"project_id":1}`), TraceID: "t-1"},
		{ID: 2, RoutingKey: "planning.task.status_changed", Payload: json.RawMessage(`{"task_id":3}`)},
		{ID: 3, RoutingKey: "planning.allocations.persisted", Payload: json.RawMessage(`{"trace_id":"t-3"}`)},
	}}
	pub := &recordingPublisher{failKey: "planning.task.status_changed"}

	sent := NewDispatcher(store, pub, zap.NewNop()).RunOnce(context.Background())

	assert.Equal(t, 2, sent)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Equal(t, []int64{2}, store.failed)
	assert.Equal(t, []string{"t-1", "t-3"}, pub.traceIDs)
}

func TestDispatcher_NothingPending(t *testing.T) {
	store := &fakeStore{}
	assert.Zero(t, NewDispatcher(store, &recordingPublisher{}, zap.NewNop()).RunOnce(context.Background()))
}
