package enforcer

import (
	"testing"
	"time"

	"github.com/omc-dev/coordinator/pkg/modes/ralph"
	"github.com/omc-dev/coordinator/pkg/modes/ultrawork"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// S5 — Enforcer priority: Ralph and Ultrawork both active in the same
// session, Ralph wins.
func TestEnforcePrioritizesRalphOverUltrawork(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "X", MaxIterations: 10}))
	require.NoError(t, ultrawork.Start(cwd, "S", "/proj", "Y"))

	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd})
	require.NoError(t, err)
	assert.True(t, decision.ShouldBlock)
	assert.Equal(t, "ralph", decision.Mode)
	assert.Equal(t, 2, decision.Metadata["iteration"])
}

func TestEnforceContextLimitAlwaysAllowsStop(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "X"}))

	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd, StopReason: "context_window_exceeded"})
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}

func TestEnforceUserAbortAlwaysAllowsStop(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "X"}))

	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd, StopReason: "manual_stop"})
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}

func TestEnforceGenericAbortOnlyWhenUserRequested(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "X"}))

	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd, StopReason: "abort", UserRequested: false})
	require.NoError(t, err)
	assert.True(t, decision.ShouldBlock, "generic abort token without user_requested must not bypass active modes")

	decision, err = Enforce(Config{}, Input{SessionID: "S", Cwd: cwd, StopReason: "abort", UserRequested: true})
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}

func TestEnforcePrefixesRetryGuidanceWhenFresh(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "X"}))

	rec := types.LastToolError{ToolName: "bash", Error: "exit 1", Timestamp: time.Now().UTC(), RetryCount: 1}
	require.NoError(t, statestore.AtomicWriteJSON(statestore.DocPath(cwd, "last-tool-error.json"), &rec))

	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd})
	require.NoError(t, err)
	assert.Contains(t, decision.Message, "bash")
	assert.Contains(t, decision.Message, "retrying")
}

func TestEnforceStaleRetryGuidanceIgnored(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "X"}))

	rec := types.LastToolError{ToolName: "bash", Error: "exit 1", Timestamp: time.Now().UTC().Add(-2 * time.Minute), RetryCount: 1}
	require.NoError(t, statestore.AtomicWriteJSON(statestore.DocPath(cwd, "last-tool-error.json"), &rec))

	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd})
	require.NoError(t, err)
	assert.NotContains(t, decision.Message, "bash")
}

func TestEnforceNoActiveModeAllowsStop(t *testing.T) {
	cwd := t.TempDir()
	decision, err := Enforce(Config{}, Input{SessionID: "S", Cwd: cwd})
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}
