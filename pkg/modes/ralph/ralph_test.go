package ralph

import (
	"os"
	"testing"

	"github.com/omc-dev/coordinator/pkg/modes/registry"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S3 — Ralph + linked Ultrawork cancellation.
func TestStartLinkedUltraworkThenCancelRemovesBoth(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X", LinkUltrawork: true}))

	ralphPath := registry.PathFor(statestore.ModeRalph, cwd, "S")
	ultraworkPath := registry.PathFor(statestore.ModeUltrawork, cwd, "S")
	_, err := os.Stat(ralphPath)
	require.NoError(t, err)
	_, err = os.Stat(ultraworkPath)
	require.NoError(t, err)

	var uw types.UltraworkState
	require.NoError(t, statestore.ReadJSON(ultraworkPath, &uw))
	assert.True(t, uw.LinkedToRalph)

	require.NoError(t, Cancel(cwd, "S"))
	_, err = os.Stat(ralphPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(ultraworkPath)
	assert.True(t, os.IsNotExist(err))
}

func TestCancelDoesNotRemoveUnlinkedUltrawork(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X", LinkUltrawork: false}))

	unlinked := types.UltraworkState{
		ModeCommon:    types.ModeCommon{Active: true, SessionID: "S"},
		LinkedToRalph: false,
	}
	ultraworkPath := registry.PathFor(statestore.ModeUltrawork, cwd, "S")
	require.NoError(t, statestore.AtomicWriteJSON(ultraworkPath, &unlinked))

	require.NoError(t, Cancel(cwd, "S"))
	_, err := os.Stat(ultraworkPath)
	assert.NoError(t, err, "unlinked ultrawork must survive a ralph cancel")
}

func TestOnStopIncrementsIterationAndBlocks(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X", MaxIterations: 10}))

	decision, err := OnStop(cwd, "S", "still working", nil, nil)
	require.NoError(t, err)
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, "ralph", decision.Mode)
	assert.Equal(t, 2, decision.Metadata["iteration"])
}

func TestOnStopAtIterationCapAllowsStopAndClears(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X", MaxIterations: 1}))

	decision, err := OnStop(cwd, "S", "done", nil, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.False(t, state.Active)
}

func TestOnStopMismatchedSessionTreatedAsAbsent(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X"}))

	decision, err := OnStop(cwd, "other-session", "anything", nil, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}

func TestOnStopTeamPipelineTerminalClearsAndAllowsStop(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X"}))

	decision, err := OnStop(cwd, "S", "", &types.TeamPipelineState{Phase: types.TeamPipelineComplete}, nil)
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.False(t, state.Active)
}

func TestOnStopPRDAllCompleteClearsAndAllowsStop(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", StartOptions{Prompt: "X", PRDMode: true}))

	prd := &types.PRD{Stories: []types.PRDStory{{ID: "1", Complete: true}}}
	decision, err := OnStop(cwd, "S", "", nil, prd)
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}
