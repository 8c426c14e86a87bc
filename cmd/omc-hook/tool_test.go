package main

import (
	"testing"

	"github.com/omc-dev/coordinator/pkg/hooks"
	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordToolErrorFirstFailureStartsAtOne(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, recordToolError(cwd, hooks.PostToolInput{ToolName: "bash", Error: "exit 1"}))

	var rec types.LastToolError
	require.NoError(t, statestore.ReadJSON(statestore.DocPath(cwd, "last-tool-error.json"), &rec))
	assert.Equal(t, 1, rec.RetryCount)
}

func TestRecordToolErrorSameFailureIncrementsRetryCount(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, recordToolError(cwd, hooks.PostToolInput{ToolName: "bash", Error: "exit 1"}))
	require.NoError(t, recordToolError(cwd, hooks.PostToolInput{ToolName: "bash", Error: "exit 1"}))

	var rec types.LastToolError
	require.NoError(t, statestore.ReadJSON(statestore.DocPath(cwd, "last-tool-error.json"), &rec))
	assert.Equal(t, 2, rec.RetryCount)
}

func TestRecordToolErrorDifferentFailureResetsRetryCount(t *testing.T) {
	cwd := t.TempDir()
	require.NoError(t, recordToolError(cwd, hooks.PostToolInput{ToolName: "bash", Error: "exit 1"}))
	require.NoError(t, recordToolError(cwd, hooks.PostToolInput{ToolName: "bash", Error: "exit 2"}))

	var rec types.LastToolError
	require.NoError(t, statestore.ReadJSON(statestore.DocPath(cwd, "last-tool-error.json"), &rec))
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, "exit 2", rec.Error)
}
