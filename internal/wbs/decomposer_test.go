package wbs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmplanner/internal/model"
)

type fakeStore struct {
	projects map[int64]*model.Project
	refs     []model.WbsNode
	refsErr  error
}

func (f *fakeStore) GetProject(_ context.Context, id int64) (*model.Project, error) {
	return f.projects[id], nil
}

func (f *fakeStore) FindSimilarCompleted(_ context.Context, taskType string, limit int) ([]model.WbsNode, error) {
	if f.refsErr != nil {
		return nil, f.refsErr
	}
	return f.refs, nil
}

type fakeSuggester struct {
	calls  []SubtaskRequest
	answer []SubtaskSuggestion
	err    error
}

func (f *fakeSuggester) SuggestSubtasks(_ context.Context, req SubtaskRequest) ([]SubtaskSuggestion, error) {
	f.calls = append(f.calls, req)
	return f.answer, f.err
}

func newStore() *fakeStore {
	return &fakeStore{projects: map[int64]*model.Project{
		1: {ID: 1, Name: "门户改版", ProjectType: "SOFTWARE"},
	}}
}

func byCode(nodes []model.WbsNode) map[string]model.WbsNode {
	m := make(map[string]model.WbsNode, len(nodes))
	for _, n := range nodes {
		m[n.Code] = n
	}
	return m
}

func TestDecompose_DefaultPhases(t *testing.T) {
	d := NewDecomposer(newStore(), nil, nil)

	nodes, err := d.Decompose(context.Background(), 1, nil, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 4)

	names := []string{"需求分析", "设计阶段", "开发实施", "测试验收"}
	durations := []int{15, 20, 40, 15}
	total := 0
	for i, n := range nodes {
		assert.Equal(t, names[i], n.Name)
		assert.Equal(t, durations[i], n.DurationDays)
		assert.Equal(t, 1, n.Level)
		assert.Nil(t, n.ParentID)
		assert.Equal(t, 75.0, n.ConfidenceScore)
		assert.Equal(t, model.StatusSuggested, n.Status)
		assert.Equal(t, float64(durations[i]*8), n.EffortHours)
		total += n.DurationDays
	}
	assert.Equal(t, 90, total)

	// 兄弟节点串成 FS 链，首个节点无依赖
	assert.Empty(t, nodes[0].Dependencies)
	for i := 1; i < len(nodes); i++ {
		require.Len(t, nodes[i].Dependencies, 1)
		assert.Equal(t, nodes[i-1].ID, nodes[i].Dependencies[0].TaskID)
		assert.Equal(t, model.DependencyFinishToStart, nodes[i].Dependencies[0].Type)
	}

	assert.True(t, nodes[2].IsCriticalPath)
	assert.False(t, nodes[0].IsCriticalPath)
}

func TestDecompose_RuleFallbackSecondLevel(t *testing.T) {
	d := NewDecomposer(newStore(), nil, nil)

	nodes, err := d.Decompose(context.Background(), 1, nil, 2)
	require.NoError(t, err)
	require.Len(t, nodes, 16)

	m := byCode(nodes)
	assert.Equal(t, "需求调研", m["1.1"].Name)
	assert.Equal(t, 5, m["1.1"].DurationDays)
	assert.Equal(t, 40.0, m["1.1"].EffortHours)
	assert.Equal(t, 7, m["1.2"].DurationDays)
	assert.Equal(t, 56.0, m["1.2"].EffortHours)
	assert.Equal(t, 3, m["1.3"].DurationDays)

	assert.Equal(t, "概要设计", m["2.1"].Name)
	assert.Equal(t, 10, m["2.2"].DurationDays)
	assert.Equal(t, 24.0, m["2.3"].EffortHours)

	// 通用拆分保持父工期
	assert.Equal(t, 8, m["3.1"].DurationDays)
	assert.Equal(t, 24, m["3.2"].DurationDays)
	assert.Equal(t, 8, m["3.3"].DurationDays)
	assert.Equal(t, model.ComplexityComplex, m["3.2"].Complexity)
	assert.Equal(t, 15, m["4.1"].DurationDays+m["4.2"].DurationDays+m["4.3"].DurationDays)
	assert.Equal(t, model.ComplexityMedium, m["4.2"].Complexity)

	for _, code := range []string{"1.1", "3.2", "4.3"} {
		n := m[code]
		require.NotNil(t, n.ParentID)
		assert.Equal(t, 2, n.Level)
		assert.Equal(t, 70.0, n.ConfidenceScore)
	}
	assert.Equal(t, m["3"].ID, *m["3.1"].ParentID)
	assert.Empty(t, m["3.1"].Dependencies)
	assert.Equal(t, m["3.1"].ID, m["3.2"].Dependencies[0].TaskID)

	// 前序输出
	var codes []string
	for _, n := range nodes[:5] {
		codes = append(codes, n.Code)
	}
	assert.Equal(t, []string{"1", "1.1", "1.2", "1.3", "2"}, codes)

	for _, code := range []string{"3", "3.1", "3.2", "3.3"} {
		assert.True(t, m[code].IsCriticalPath, code)
	}
	assert.False(t, m["2.1"].IsCriticalPath)
}

func TestDecompose_OnlyComplexChildrenRecurse(t *testing.T) {
	d := NewDecomposer(newStore(), nil, nil)

	nodes, err := d.Decompose(context.Background(), 1, nil, 3)
	require.NoError(t, err)
	require.Len(t, nodes, 19)

	m := byCode(nodes)
	require.Contains(t, m, "3.2.1")
	assert.Equal(t, 3, m["3.2.1"].Level)
	assert.Equal(t, 24, m["3.2.1"].DurationDays+m["3.2.2"].DurationDays+m["3.2.3"].DurationDays)
	assert.NotContains(t, m, "1.2.1")
	assert.True(t, m["3.2.3"].IsCriticalPath)
}

func TestDecompose_Template(t *testing.T) {
	tmpl := &model.WbsTemplate{Phases: []model.PhaseTemplate{
		{Name: "立项", DurationDays: 5, Deliverables: []model.Deliverable{{Name: "立项报告", Type: "DOCUMENT"}}},
		{Name: "实施", DurationDays: 30, Complexity: model.ComplexityCritical},
	}}
	d := NewDecomposer(newStore(), nil, nil)

	nodes, err := d.Decompose(context.Background(), 1, tmpl, 1)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	assert.Equal(t, "1", nodes[0].Code)
	assert.Equal(t, "立项", nodes[0].Name)
	assert.Equal(t, 90.0, nodes[0].ConfidenceScore)
	assert.Equal(t, "立项报告", nodes[0].Deliverables[0].Name)
	assert.Equal(t, model.ComplexityMedium, nodes[0].Complexity)
	assert.True(t, nodes[1].IsCriticalPath)
}

func TestDecompose_CriticalTieGoesToFirstPhase(t *testing.T) {
	tmpl := &model.WbsTemplate{Phases: []model.PhaseTemplate{
		{Name: "甲", DurationDays: 10},
		{Name: "乙", DurationDays: 10},
	}}
	nodes, err := NewDecomposer(newStore(), nil, nil).Decompose(context.Background(), 1, tmpl, 1)
	require.NoError(t, err)
	assert.True(t, nodes[0].IsCriticalPath)
	assert.False(t, nodes[1].IsCriticalPath)
}

func TestDecompose_UsesSuggestions(t *testing.T) {
	store := newStore()
	for i := 0; i < 7; i++ {
		store.refs = append(store.refs, model.WbsNode{Name: "历史任务", DurationDays: 3})
	}
	sug := &fakeSuggester{answer: []SubtaskSuggestion{
		{Name: "接口开发", DurationDays: 4, Complexity: "simple", RiskLevel: "low"},
		{Name: "联调", DurationDays: 2},
	}}
	d := NewDecomposer(store, sug, nil)

	nodes, err := d.Decompose(context.Background(), 1, nil, 2)
	require.NoError(t, err)
	require.Len(t, sug.calls, 4)
	assert.Len(t, sug.calls[0].References, 5)
	assert.Equal(t, "需求分析", sug.calls[0].Name)

	m := byCode(nodes)
	assert.Equal(t, "接口开发", m["1.1"].Name)
	assert.Equal(t, model.ComplexitySimple, m["1.1"].Complexity)
	assert.Equal(t, 32.0, m["1.1"].EffortHours)
	assert.Equal(t, "REQUIREMENT", m["1.1"].TaskType)
	assert.Equal(t, 85.0, m["1.1"].ConfidenceScore)
	assert.Equal(t, model.ComplexityMedium, m["1.2"].Complexity)
}

func TestDecompose_SuggestionFailureFallsBack(t *testing.T) {
	store := newStore()
	store.refsErr = errors.New("db down")
	sug := &fakeSuggester{err: errors.New("timeout")}

	nodes, err := NewDecomposer(store, sug, nil).Decompose(context.Background(), 1, nil, 2)
	require.NoError(t, err)
	assert.Len(t, nodes, 16)
	assert.Equal(t, "需求调研", byCode(nodes)["1.1"].Name)
}

func TestDecompose_UnknownProject(t *testing.T) {
	nodes, err := NewDecomposer(newStore(), nil, nil).Decompose(context.Background(), 99, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestDecompose_InvalidArguments(t *testing.T) {
	d := NewDecomposer(newStore(), nil, nil)

	_, err := d.Decompose(context.Background(), 1, nil, 0)
	assert.ErrorIs(t, err, model.ErrInvalidMaxLevel)

	bad := &model.WbsTemplate{Phases: []model.PhaseTemplate{{Name: "x", DurationDays: -1}}}
	_, err = d.Decompose(context.Background(), 1, bad, 1)
	assert.ErrorIs(t, err, model.ErrInvalidTemplate)
}

func TestDecompose_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDecomposer(newStore(), nil, nil).Decompose(ctx, 1, nil, 2)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(`{"name":"标准","phases":[{"name":"规划","durationDays":10}]}`))
	require.NoError(t, err)
	require.Len(t, tmpl.Phases, 1)
	assert.Equal(t, 10, tmpl.Phases[0].DurationDays)

	_, err = ParseTemplate([]byte(`{"phases":[`))
	assert.ErrorIs(t, err, model.ErrInvalidTemplate)

	_, err = ParseTemplate([]byte(`{"phases":[{"durationDays":3}]}`))
	assert.ErrorIs(t, err, model.ErrInvalidTemplate)
}
