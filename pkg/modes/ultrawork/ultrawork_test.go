package ultrawork

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnStopBlocksUnconditionallyAndIncrements(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "keep going"))

	for want := 1; want <= 3; want++ {
		decision, err := OnStop(cwd, "S")
		require.NoError(t, err)
		assert.True(t, decision.ShouldBlock)
		assert.Equal(t, want, decision.Metadata["reinforcement_count"])
	}
}

func TestOnStopInactiveAllowsStop(t *testing.T) {
	cwd := t.TempDir()
	decision, err := OnStop(cwd, "S")
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}

func TestClearDeactivates(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, Start(cwd, "S", "/proj", "keep going"))
	require.NoError(t, Clear(cwd, "S"))

	decision, err := OnStop(cwd, "S")
	require.NoError(t, err)
	assert.False(t, decision.ShouldBlock)
}
