package ultraqa

import (
	"testing"

	"github.com/omc-dev/coordinator/pkg/modes/ralph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartBlockedWhileRalphActive(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, ralph.Start(cwd, "S", ralph.StartOptions{Prompt: "x"}))

	err := Start(cwd, "S", "/proj", 3)
	assert.Error(t, err)
}

func TestAdvanceCompletesOnToken(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", 5))

	out, err := Advance(cwd, "S", "all good, QA_COMPLETE")
	require.NoError(t, err)
	assert.True(t, out.Done)

	state, err := Load(cwd, "S")
	require.NoError(t, err)
	assert.False(t, state.Active)
}

func TestAdvanceCapsAtMaxCycle(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", 2))

	out, err := Advance(cwd, "S", "still checking")
	require.NoError(t, err)
	assert.False(t, out.Done)
	assert.Equal(t, 2, out.Cycle)

	out, err = Advance(cwd, "S", "still checking")
	require.NoError(t, err)
	assert.True(t, out.Done, "cycle cap reached must force completion")
}
