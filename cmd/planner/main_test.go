package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmplanner/internal/model"
	"pmplanner/internal/service"
)

func run(t *testing.T, args ...string) []byte {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.Bytes()
}

func TestScheduleCommand(t *testing.T) {
	out := run(t, "schedule", "-i", "testdata/snapshot.yaml", "--project", "1", "--start", "2026-03-01")

	var result model.ScheduleResult
	require.NoError(t, json.Unmarshal(out, &result))
	assert.Equal(t, 15, result.TotalDurationDays)
	assert.Equal(t, "2026-03-16", result.EndDate)
	require.Len(t, result.CriticalPath, 2)
	assert.Equal(t, "1", result.CriticalPath[0].Code)
	assert.Equal(t, "2", result.CriticalPath[1].Code)
	require.Contains(t, result.ResourceLoad, int64(10))
	assert.Equal(t, 120.0, result.ResourceLoad[10].TotalHours)
}

func TestDecomposeCommand_Template(t *testing.T) {
	out := run(t, "decompose", "-i", "testdata/snapshot.yaml", "--project", "1", "--template", "1", "--max-level", "1")

	var nodes []model.WbsNode
	require.NoError(t, json.Unmarshal(out, &nodes))
	require.Len(t, nodes, 3)
	assert.Equal(t, "迭代开发", nodes[1].Name)
	assert.True(t, nodes[1].IsCriticalPath)
}

func TestAllocateCommand(t *testing.T) {
	out := run(t, "allocate", "-i", "testdata/snapshot.yaml", "--task", "2", "--max-candidates", "2")

	var allocations []model.ResourceAllocation
	require.NoError(t, json.Unmarshal(out, &allocations))
	require.Len(t, allocations, 2)
	assert.Equal(t, int64(10), allocations[0].PersonID)
	assert.Equal(t, model.AllocationPrimary, allocations[0].AllocationType)
}

func TestPlanCommand(t *testing.T) {
	out := run(t, "plan", "-i", "testdata/snapshot.yaml", "--project", "1", "--template", "1", "--start", "2026-03-01")

	var plan service.ProjectPlan
	require.NoError(t, json.Unmarshal(out, &plan))
	assert.NotEmpty(t, plan.Nodes)
	assert.NotEmpty(t, plan.Allocations)
	require.NotNil(t, plan.Schedule)
	assert.Equal(t, "2026-03-01", plan.Schedule.StartDate)
}

func TestScheduleCommand_BadStart(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"schedule", "-i", "testdata/snapshot.yaml", "--project", "1", "--start", "01.03.2026"})
	assert.Error(t, cmd.Execute())
}
