package swarm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T) *Pool {
	t.Helper()
	cwd := t.TempDir()
	p, err := Open(context.Background(), cwd)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

// S1 — atomic claim with three workers.
func TestClaimThreeWorkersAtomic(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	ids, err := p.AddTasks(ctx, []NewTask{
		{Description: "T1", Priority: 0},
		{Description: "T2", Priority: 1},
		{Description: "T3", Priority: 0},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"task-1", "task-2", "task-3"}, ids)

	var mu sync.Mutex
	var claimed []string
	var wg sync.WaitGroup
	for _, w := range []string{"w1", "w2", "w3"} {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Claim(ctx, w)
			require.NoError(t, err)
			require.True(t, res.Success)
			mu.Lock()
			claimed = append(claimed, res.TaskID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"task-1", "task-2", "task-3"}, claimed)

	hasPending, err := p.HasPendingTasks(ctx)
	require.NoError(t, err)
	assert.False(t, hasPending)
}

func TestClaimExclusivity(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()
	_, err := p.AddTasks(ctx, []NewTask{{Description: "only", Priority: 0}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]ClaimResult, 5)
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Claim(ctx, "w")
			require.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	successes := 0
	for _, r := range results {
		if r.Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes, "exactly one claim should succeed on a single task")
}

// S2 — stale cleanup.
func TestCleanupStaleClaims(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	_, err := p.AddTasks(ctx, []NewTask{{Description: "T1", Priority: 0}})
	require.NoError(t, err)

	res, err := p.Claim(ctx, "w1")
	require.NoError(t, err)
	require.True(t, res.Success)

	// Simulate 6 minutes of silence by backdating claimed_at/heartbeat
	// directly, since the clock itself can't be advanced in-process.
	old := time.Now().Add(-6 * time.Minute).UTC().Format(time.RFC3339)
	_, err = p.db.ExecContext(ctx, `UPDATE tasks SET claimed_at = ? WHERE id = ?`, old, res.TaskID)
	require.NoError(t, err)
	_, err = p.db.ExecContext(ctx, `UPDATE heartbeats SET last_heartbeat = ? WHERE worker_id = 'w1'`, old)
	require.NoError(t, err)

	released, err := p.CleanupStaleClaims(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	tasks, err := p.TasksByStatus(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, res.TaskID, tasks[0].ID)

	workers, err := p.TasksByWorker(ctx, "w1")
	require.NoError(t, err)
	assert.Len(t, workers, 0)
}

func TestClaimAfterFullCycleReportsNoPendingTasks(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()
	_, err := p.AddTasks(ctx, []NewTask{{Description: "only", Priority: 0}})
	require.NoError(t, err)

	res, err := p.Claim(ctx, "w1")
	require.NoError(t, err)
	require.True(t, res.Success)

	ok, err := p.Complete(ctx, "w1", res.TaskID, "done")
	require.NoError(t, err)
	require.True(t, ok)

	second, err := p.Claim(ctx, "w1")
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, "No pending tasks available", second.Reason)
}

func TestAddTasksIDMonotonicityAfterDeletion(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	ids, err := p.AddTasks(ctx, []NewTask{{Description: "a"}, {Description: "b"}})
	require.NoError(t, err)
	require.Equal(t, []string{"task-1", "task-2"}, ids)

	_, err = p.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = 'task-2'`)
	require.NoError(t, err)

	more, err := p.AddTasks(ctx, []NewTask{{Description: "c"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"task-3"}, more, "new id must exceed every previously used suffix, not just currently live ones")
}

func TestClaimForFilesPrefersScopeMatch(t *testing.T) {
	p := openTestPool(t)
	ctx := context.Background()

	_, err := p.AddTasks(ctx, []NewTask{
		{Description: "generic", Priority: 0},
		{Description: "scoped", Priority: 5, FilePatterns: []string{"pkg/swarm/**"}},
	})
	require.NoError(t, err)

	res, err := p.ClaimForFiles(ctx, "w1", []string{"pkg/swarm/pool.go"})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "scoped", res.Description, "scope match should win even though it has lower priority")
}
