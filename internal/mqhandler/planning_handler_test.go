package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmplanner/contracts/mq"
	"pmplanner/internal/memstore"
	"pmplanner/internal/model"
	"pmplanner/internal/service"
	"pmplanner/pkg/config"
)

const fixture = `
projects:
  - {id: 1, name: 订单中心}
persons:
  - {id: 10, name: 王五, role: 后端工程师}
  - {id: 11, name: 赵六, role: 测试工程师}
members:
  - {projectId: 1, personId: 10}
  - {projectId: 1, personId: 11}
tasks:
  - {id: 1, projectId: 1, code: "1", level: 1, name: A, taskType: DESIGN, durationDays: 5, effortHours: 40}
  - id: 2
    projectId: 1
    code: "2"
    level: 1
    name: B
    taskType: DEVELOPMENT
    durationDays: 10
    effortHours: 80
    dependencies: [{taskId: 1, type: FS}]
`

type published struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{routingKey: routingKey, payload: payload})
	return nil
}

func newHandler(t *testing.T) (*PlanningHandler, *fakePublisher, *memstore.Store) {
	t.Helper()
	snap, err := memstore.ReadSnapshot(strings.NewReader(fixture))
	require.NoError(t, err)
	store := memstore.New(snap)
	pub := &fakePublisher{}
	svc := service.NewPlanningService(store, nil, config.PlanningConfig{}, nil)
	return NewPlanningHandler(svc, pub, nil, nil), pub, store
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestHandleDecomposeRequested(t *testing.T) {
	h, pub, store := newHandler(t)
	ctx := context.Background()

	err := h.HandleDecomposeRequested(ctx, raw(t, mq.DecomposeRequestedPayload{
		RequestID: "r-1", ProjectID: 1, MaxLevel: 1, Persist: true,
	}))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, mq.RoutingWbsGenerated, pub.events[0].routingKey)
	payload := pub.events[0].payload.(mq.WbsGeneratedPayload)
	assert.Equal(t, "r-1", payload.RequestID)
	require.Len(t, payload.Nodes, 4)
	assert.Equal(t, int64(3), payload.Nodes[0].ID)

	// 快照里的任务默认是 SUGGESTED，被新批次替换
	nodes, err := store.ListActiveNodes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, nodes, 4)
}

func TestHandleScheduleRequested(t *testing.T) {
	h, pub, _ := newHandler(t)

	err := h.HandleScheduleRequested(context.Background(), raw(t, mq.ScheduleRequestedPayload{
		RequestID: "r-2", ProjectID: 1, StartDate: "2026-03-01",
	}))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	assert.Equal(t, mq.RoutingScheduleOptimized, pub.events[0].routingKey)
	result := pub.events[0].payload.(mq.ScheduleOptimizedPayload).Schedule
	assert.Equal(t, 15, result.TotalDurationDays)
	assert.Equal(t, "2026-03-16", result.EndDate)
}

func TestHandleScheduleRequested_BadDate(t *testing.T) {
	h, pub, _ := newHandler(t)

	err := h.HandleScheduleRequested(context.Background(), raw(t, mq.ScheduleRequestedPayload{
		RequestID: "r-3", ProjectID: 1, StartDate: "03/01/2026",
	}))
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestHandleAllocateRequested(t *testing.T) {
	h, pub, store := newHandler(t)
	ctx := context.Background()

	err := h.HandleAllocateRequested(ctx, raw(t, mq.AllocateRequestedPayload{
		RequestID: "r-4", TaskID: 2, CandidatePersonIDs: []int64{10}, Persist: true,
	}))
	require.NoError(t, err)

	require.Len(t, pub.events, 1)
	payload := pub.events[0].payload.(mq.ResourcesAllocatedPayload)
	require.Len(t, payload.Allocations, 1)
	assert.Equal(t, int64(10), payload.Allocations[0].PersonID)
	assert.Equal(t, model.AllocationPrimary, payload.Allocations[0].AllocationType)

	saved, err := store.ListActiveAllocations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, saved, 1)
}

func TestHandleAllocateRequested_PublishFailure(t *testing.T) {
	h, pub, _ := newHandler(t)
	pub.err = errors.New("channel closed")

	err := h.HandleAllocateRequested(context.Background(), raw(t, mq.AllocateRequestedPayload{RequestID: "r-5", TaskID: 2}))
	assert.EqualError(t, err, "channel closed")
}

func TestHandleWbsReviewed(t *testing.T) {
	h, _, store := newHandler(t)
	ctx := context.Background()

	require.NoError(t, h.HandleWbsReviewed(ctx, raw(t, mq.WbsReviewedPayload{TaskID: 1, Status: "accepted"})))
	task, err := store.GetTask(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, task.Status)

	err = h.HandleWbsReviewed(ctx, raw(t, mq.WbsReviewedPayload{TaskID: 1, Status: "REJECTED"}))
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	err = h.HandleWbsReviewed(ctx, raw(t, mq.WbsReviewedPayload{TaskID: 2, Status: "DONE"}))
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
}

func TestHandle_MalformedPayload(t *testing.T) {
	h, _, _ := newHandler(t)
	assert.Error(t, h.HandleDecomposeRequested(context.Background(), json.RawMessage(`{"project_id": "x"}`)))
}
