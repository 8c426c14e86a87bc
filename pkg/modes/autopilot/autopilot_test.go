package autopilot

import (
	"os"
	"testing"

	"github.com/omc-dev/coordinator/pkg/modes/ralph"
	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceWalksExpansionThroughExecution(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "idea", 10))

	_, err := Advance(cwd, "S", "EXPANSION_COMPLETE")
	require.NoError(t, err)
	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, types.PhasePlanning, state.Phase)

	_, err = Advance(cwd, "S", "PLANNING_COMPLETE")
	require.NoError(t, err)
	state, err = Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseExecution, state.Phase)
}

// S4 — Autopilot execution->QA rollback: step 4 (start UltraQA) fails
// because its target document path is occupied by a directory, and the
// transition must roll back the phase switch and preserved iteration
// count, leaving Ralph's termination in place (the accepted, documented
// rollback limitation — see DESIGN.md).
func TestExecutionToQARollsBackOnUltraQAStartFailure(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "idea", 10))

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	state.Phase = types.PhaseExecution
	require.NoError(t, save(cwd, "S", &state))

	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "x", MaxIterations: 7}))
	for i := 0; i < 3; i++ {
		st, err := ralph.Load(cwd, "S")
		require.NoError(t, err)
		st.Iteration++
		require.NoError(t, statestore.AtomicWriteJSON(registry.PathFor(statestore.ModeRalph, cwd, "S"), &st))
	}

	ultraQAPath := registry.PathFor(statestore.ModeUltraQA, cwd, "S")
	require.NoError(t, os.MkdirAll(ultraQAPath, 0o755))

	res := transitionExecutionToQA(cwd, "S", &state)
	require.False(t, res.Success)
	assert.Equal(t, "start-ultraqa", res.FailedStep)
	assert.Equal(t, types.PhaseExecution, state.Phase, "phase must roll back to execution")
	assert.Nil(t, state.Execution, "preserved iteration record must roll back too")

	onDisk, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseExecution, onDisk.Phase)

	ralphState, err := ralph.Load(cwd, "S")
	require.NoError(t, err)
	assert.False(t, ralphState.Active, "ralph termination is not reversible and stays cleared")
}

func TestRecordVerdictAllApprovedKeepsRoundOne(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "idea", 10))
	st, err := Load(cwd, "S")
	require.NoError(t, err)
	st.Phase = types.PhaseValidation
	require.NoError(t, save(cwd, "S", &st))

	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictFunctional, Result: types.VerdictApproved}))
	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictSecurity, Result: types.VerdictApproved}))
	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictQuality, Result: types.VerdictApproved}))

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Validation.Round)
	assert.True(t, allApproved(state.Validation))
}

func TestRecordVerdictRejectedStartsNewRound(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "idea", 10))
	st, err := Load(cwd, "S")
	require.NoError(t, err)
	st.Phase = types.PhaseValidation
	require.NoError(t, save(cwd, "S", &st))

	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictFunctional, Result: types.VerdictRejected}))
	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictSecurity, Result: types.VerdictApproved}))
	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictQuality, Result: types.VerdictApproved}))

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Validation.Round)
	assert.Len(t, state.Validation.Verdicts, 0)
}

func TestRecordVerdictRejectedAtMaxRoundsFailsPipeline(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "idea", 10))
	st, err := Load(cwd, "S")
	require.NoError(t, err)
	st.Phase = types.PhaseValidation
	st.Validation = &types.ValidationSubRecord{Round: defaultMaxRounds, MaxRounds: defaultMaxRounds}
	require.NoError(t, save(cwd, "S", &st))

	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictFunctional, Result: types.VerdictRejected}))
	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictSecurity, Result: types.VerdictApproved}))
	require.NoError(t, RecordVerdict(cwd, "S", types.Verdict{Type: types.VerdictQuality, Result: types.VerdictApproved}))

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseFailed, state.Phase)
}

func TestAdvanceSafetyCapFailsPipeline(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "idea", 1))

	decision, err := Advance(cwd, "S", "nothing relevant")
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseFailed, state.Phase)
}
