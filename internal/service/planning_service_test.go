package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmplanner/internal/memstore"
	"pmplanner/internal/model"
	"pmplanner/pkg/config"
)

const fixture = `
projects:
  - {id: 1, name: 数据平台}
  - {id: 2, name: 空项目}
templates:
  - id: 9
    name: 轻量模板
    phases:
      - {name: 调研, durationDays: 5, taskType: REQUIREMENT}
      - {name: 交付, durationDays: 10, taskType: DEVELOPMENT}
persons:
  - {id: 10, name: 张三, role: 高级后端工程师, skills: [go]}
  - {id: 11, name: 李四, role: 测试工程师}
members:
  - {projectId: 1, personId: 10}
  - {projectId: 1, personId: 11}
tasks:
  - {id: 50, projectId: 2, code: "1", level: 1, name: 历史任务, taskType: DESIGN, durationDays: 3, executionState: COMPLETED}
`

func newService(t *testing.T) (*PlanningService, *memstore.Store) {
	t.Helper()
	snap, err := memstore.ReadSnapshot(strings.NewReader(fixture))
	require.NoError(t, err)
	store := memstore.New(snap)
	return NewPlanningService(store, nil, config.PlanningConfig{}, nil), store
}

func TestDecompose_DefaultPhases(t *testing.T) {
	svc, _ := newService(t)

	nodes, err := svc.Decompose(context.Background(), 1, nil, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 4)
	assert.Equal(t, "需求分析", nodes[0].Name)
}

func TestDecompose_StoredTemplate(t *testing.T) {
	svc, _ := newService(t)
	templateID := int64(9)

	nodes, err := svc.Decompose(context.Background(), 1, &templateID, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "调研", nodes[0].Name)
	assert.Equal(t, "交付", nodes[1].Name)
	assert.True(t, nodes[1].IsCriticalPath)
}

func TestDecompose_MissingTemplate(t *testing.T) {
	svc, _ := newService(t)
	templateID := int64(404)

	nodes, err := svc.Decompose(context.Background(), 1, &templateID, 1)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

type brokenTemplateRepo struct {
	*memstore.Store
}

func (brokenTemplateRepo) GetTemplateJSON(context.Context, int64) ([]byte, error) {
	return []byte(`{"name": "坏模板", "phases": "oops"}`), nil
}

func TestDecompose_InvalidTemplatePropagates(t *testing.T) {
	_, store := newService(t)
	svc := NewPlanningService(brokenTemplateRepo{store}, nil, config.PlanningConfig{}, nil)
	templateID := int64(9)

	_, err := svc.Decompose(context.Background(), 1, &templateID, 1)
	assert.ErrorIs(t, err, model.ErrInvalidTemplate)
}

func TestDecomposeAndSave_ReplacesSuggestions(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	first, err := svc.DecomposeAndSave(ctx, 1, nil, 1)
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, int64(51), first[0].ID)

	second, err := svc.DecomposeAndSave(ctx, 1, nil, 1)
	require.NoError(t, err)
	require.Len(t, second, 4)

	active, err := store.ListActiveNodes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, active, 4)
	assert.Equal(t, second[0].ID, active[0].ID)
	require.Len(t, active[1].Dependencies, 1)
	assert.Equal(t, second[0].ID, active[1].Dependencies[0].TaskID)
}

func TestReviewTask(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	nodes, err := svc.DecomposeAndSave(ctx, 1, nil, 1)
	require.NoError(t, err)
	id := nodes[0].ID

	assert.ErrorIs(t, svc.ReviewTask(ctx, id, model.StatusSuggested), model.ErrInvalidStatusTransition)
	require.NoError(t, svc.ReviewTask(ctx, id, model.StatusAccepted))
	require.NoError(t, svc.ReviewTask(ctx, id, model.StatusAccepted))
	assert.ErrorIs(t, svc.ReviewTask(ctx, id, model.StatusRejected), model.ErrInvalidStatusTransition)
	assert.ErrorIs(t, svc.ReviewTask(ctx, 9999, model.StatusAccepted), model.ErrTaskNotFound)
}

func TestAllocateAndSave(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	nodes, err := svc.DecomposeAndSave(ctx, 1, nil, 1)
	require.NoError(t, err)

	allocations, err := svc.AllocateAndSave(ctx, nodes[2].ID, nil, nil)
	require.NoError(t, err)
	require.Len(t, allocations, 2)
	assert.Equal(t, model.AllocationPrimary, allocations[0].AllocationType)
	assert.NotZero(t, allocations[0].ID)

	active, err := store.ListActiveAllocations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestAllocate_UnknownTask(t *testing.T) {
	svc, _ := newService(t)

	allocations, err := svc.AllocateResources(context.Background(), 9999, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, allocations)
}

func TestPlanProject(t *testing.T) {
	svc, _ := newService(t)
	templateID := int64(9)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	plan, err := svc.PlanProject(context.Background(), 1, &templateID, &start)
	require.NoError(t, err)
	require.NotEmpty(t, plan.Nodes)
	require.NotNil(t, plan.Schedule)

	assert.Len(t, plan.Schedule.GanttData, len(plan.Nodes))
	assert.Equal(t, "2026-03-01", plan.Schedule.StartDate)
	assert.NotEmpty(t, plan.Allocations)
	assert.NotEmpty(t, plan.Schedule.ResourceLoad)
}

func TestPlanProject_UnknownProject(t *testing.T) {
	svc, _ := newService(t)

	plan, err := svc.PlanProject(context.Background(), 77, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Nodes)
	assert.True(t, plan.Schedule.IsEmpty())
}
