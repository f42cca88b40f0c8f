package model

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWbsNode_Transition(t *testing.T) {
	n := &WbsNode{Status: StatusSuggested}
	require.NoError(t, n.Transition(StatusAccepted))
	assert.Equal(t, StatusAccepted, n.Status)

	// 同状态重复提交视为幂等
	require.NoError(t, n.Transition(StatusAccepted))

	err := n.Transition(StatusRejected)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, StatusAccepted, n.Status)

	back := &WbsNode{Status: StatusRejected}
	assert.ErrorIs(t, back.Transition(StatusSuggested), ErrInvalidStatusTransition)
}

func TestCompareCodes(t *testing.T) {
	assert.Equal(t, -1, CompareCodes("1.9", "1.10"))
	assert.Equal(t, 1, CompareCodes("2", "1.5"))
	assert.Equal(t, -1, CompareCodes("1", "1.1"))
	assert.Equal(t, 0, CompareCodes("3.2.1", "3.2.1"))
}

func TestLessByLevelCode(t *testing.T) {
	nodes := []*WbsNode{
		{ID: 1, Level: 2, Code: "1.10"},
		{ID: 2, Level: 1, Code: "2"},
		{ID: 3, Level: 2, Code: "1.2"},
		{ID: 4, Level: 1, Code: "1"},
	}
	sort.Slice(nodes, func(i, j int) bool { return LessByLevelCode(nodes[i], nodes[j]) })

	var codes []string
	for _, n := range nodes {
		codes = append(codes, n.Code)
	}
	assert.Equal(t, []string{"1", "2", "1.2", "1.10"}, codes)
}

func TestParseHelpers(t *testing.T) {
	assert.Equal(t, ComplexityCritical, ParseComplexity("critical"))
	assert.Equal(t, ComplexityMedium, ParseComplexity("huge"))
	assert.Equal(t, RiskHigh, ParseRiskLevel(" high "))
	assert.Equal(t, TierSenior, ParseTier("资深"))
	assert.Equal(t, TierUnknown, ParseTier("lead"))

	st, ok := ParseNodeStatus("accepted")
	assert.True(t, ok)
	assert.Equal(t, StatusAccepted, st)
	_, ok = ParseNodeStatus("done")
	assert.False(t, ok)
}

func TestCompletedTask_OnTime(t *testing.T) {
	planned := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	early := planned.Add(-24 * time.Hour)
	late := planned.Add(24 * time.Hour)

	assert.True(t, CompletedTask{PlannedEnd: &planned, ActualEnd: &early}.OnTime())
	assert.True(t, CompletedTask{PlannedEnd: &planned, ActualEnd: &planned}.OnTime())
	assert.False(t, CompletedTask{PlannedEnd: &planned, ActualEnd: &late}.OnTime())
	assert.False(t, CompletedTask{ActualEnd: &early}.OnTime())
}

func TestScheduleResult_EmptyMarshalsToObject(t *testing.T) {
	var r ScheduleResult
	assert.True(t, r.IsEmpty())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))

	r.GanttData = []GanttEntry{{ID: 1, Assignees: []string{}}}
	data, err = json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ganttData"`)
}
