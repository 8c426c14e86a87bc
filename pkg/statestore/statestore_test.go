package statestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omc-dev/coordinator/pkg/errs"
)

func TestSessionScopedPathIsolation(t *testing.T) {
	cwd := t.TempDir()

	pathA := SessionScopedPath(ModeRalph, "session-A", cwd)
	pathB := SessionScopedPath(ModeRalph, "session-B", cwd)
	assert.NotEqual(t, pathA, pathB)

	require.NoError(t, AtomicWriteJSON(pathA, map[string]string{"owner": "A"}))

	var got map[string]string
	err := ReadJSON(pathB, &got)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAtomicWriteJSONRoundTrip(t *testing.T) {
	cwd := t.TempDir()
	path := filepath.Join(cwd, ".omc", "state", "doc.json")

	type doc struct{ Value int }
	require.NoError(t, AtomicWriteJSON(path, doc{Value: 7}))

	var got doc
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, 7, got.Value)

	// No leftover temp files.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWithFileLockSerializes(t *testing.T) {
	cwd := t.TempDir()
	var counter int
	done := make(chan struct{}, 2)

	run := func() {
		_ = WithFileLock(cwd, "test-lock", func() error {
			local := counter
			time.Sleep(10 * time.Millisecond)
			counter = local + 1
			return nil
		})
		done <- struct{}{}
	}

	go run()
	go run()
	<-done
	<-done

	assert.Equal(t, 2, counter)
}

func TestWithFileLockRemovesStaleLock(t *testing.T) {
	cwd := t.TempDir()
	lockPath := DocPath(cwd, "stale.lock")
	require.NoError(t, os.MkdirAll(StateDir(cwd), 0o755))
	// A lock "owned" by a pid that can't be alive, with an old timestamp.
	stale := "999999:1"
	require.NoError(t, os.WriteFile(lockPath, []byte(stale), 0o644))

	called := false
	err := WithFileLock(cwd, "stale", func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestDebouncedMergeWriterMergesNewer(t *testing.T) {
	cwd := t.TempDir()

	type state struct {
		LastUpdated string
	}
	merge := func(disk, pending state) state {
		if pending.LastUpdated > disk.LastUpdated {
			return pending
		}
		return disk
	}

	w := NewDebouncedMergeWriter[state](cwd, "merged.json", "merged", 10*time.Millisecond, merge)
	w.Update(func(p *state) { p.LastUpdated = "2024-01-01T00:00:00Z" })
	require.NoError(t, w.FlushNow())

	w2 := NewDebouncedMergeWriter[state](cwd, "merged.json", "merged", 10*time.Millisecond, merge)
	w2.Update(func(p *state) { p.LastUpdated = "2023-01-01T00:00:00Z" })
	require.NoError(t, w2.FlushNow())

	var got state
	require.NoError(t, ReadJSON(DocPath(cwd, "merged.json"), &got))
	assert.Equal(t, "2024-01-01T00:00:00Z", got.LastUpdated, "older pending write must not clobber newer disk state")
}
