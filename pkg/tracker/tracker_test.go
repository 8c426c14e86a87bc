package tracker

import (
	"testing"

	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStopLifecycle(t *testing.T) {
	cwd := t.TempDir()
	tr := New(cwd)

	res, err := tr.OnSubagentStart(StartInput{AgentID: "a1", AgentType: "worker", SessionID: "S", TaskDescription: "do the thing"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.RunningCount)

	require.NoError(t, tr.OnSubagentStop(StopInput{AgentID: "a1", OutputSummary: "done"}))

	counts, err := tr.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.SubagentCompleted])
}

func TestOnSubagentStopDefaultsSuccessTrue(t *testing.T) {
	cwd := t.TempDir()
	tr := New(cwd)
	_, err := tr.OnSubagentStart(StartInput{AgentID: "a1", AgentType: "worker"})
	require.NoError(t, err)
	require.NoError(t, tr.OnSubagentStop(StopInput{AgentID: "a1"}))

	counts, err := tr.CountByStatus()
	require.NoError(t, err)
	assert.Equal(t, 1, counts[types.SubagentCompleted])
	assert.Equal(t, 0, counts[types.SubagentFailed])
}

func TestRecordToolUsageBottleneck(t *testing.T) {
	cwd := t.TempDir()
	tr := New(cwd)
	_, err := tr.OnSubagentStart(StartInput{AgentID: "a1", AgentType: "worker"})
	require.NoError(t, err)

	require.NoError(t, tr.RecordToolUsageWithTiming("a1", "slow_tool", 5000, true))
	require.NoError(t, tr.RecordToolUsageWithTiming("a1", "slow_tool", 7000, true))
	require.NoError(t, tr.RecordToolUsageWithTiming("a1", "fast_tool", 10, true))

	perf, err := tr.AgentPerformance("a1")
	require.NoError(t, err)
	assert.Equal(t, "slow_tool", perf.BottleneckTool)
}

func TestDetectFileConflicts(t *testing.T) {
	cwd := t.TempDir()
	tr := New(cwd)
	_, err := tr.OnSubagentStart(StartInput{AgentID: "a1", AgentType: "typeA"})
	require.NoError(t, err)
	_, err = tr.OnSubagentStart(StartInput{AgentID: "a2", AgentType: "typeB"})
	require.NoError(t, err)

	require.NoError(t, tr.RecordFileOwnership("a1", cwd+"/shared.go"))
	require.NoError(t, tr.RecordFileOwnership("a2", cwd+"/shared.go"))

	conflicts, err := tr.DetectFileConflicts()
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, []string{"a1", "a2"}, conflicts[0].Owners)
}

// S6 — subagent cycle detection.
func TestDetectCyclesPlannerCritic(t *testing.T) {
	count, pattern := DetectCycles([]string{"planner", "critic", "planner", "critic"})
	assert.Equal(t, 2, count)
	assert.Equal(t, "planner/critic", pattern)
}

func TestDetectCyclesNoRepeat(t *testing.T) {
	count, pattern := DetectCycles([]string{"a", "b", "c"})
	assert.Equal(t, 0, count)
	assert.Equal(t, "", pattern)
}

func TestReplaySummaryFromAppendedEvents(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, AppendReplayEvent(cwd, "S", ReplayRecord{Type: "agent_start", AgentID: "a1", Attrs: map[string]any{"agent_type": "planner"}}))
	require.NoError(t, AppendReplayEvent(cwd, "S", ReplayRecord{Type: "agent_start", AgentID: "a2", Attrs: map[string]any{"agent_type": "critic"}}))
	require.NoError(t, AppendReplayEvent(cwd, "S", ReplayRecord{Type: "agent_start", AgentID: "a3", Attrs: map[string]any{"agent_type": "planner"}}))
	require.NoError(t, AppendReplayEvent(cwd, "S", ReplayRecord{Type: "agent_start", AgentID: "a4", Attrs: map[string]any{"agent_type": "critic"}}))

	summary, err := GetReplaySummary(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.CycleCount)
	assert.Equal(t, "planner/critic", summary.CyclePattern)
}
