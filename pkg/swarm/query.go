package swarm

import (
	"context"
	"database/sql"
	"time"

	"github.com/omc-dev/coordinator/pkg/types"
)

func scanTask(rows *sql.Rows) (types.Task, error) {
	var t types.Task
	var claimerID, claimedAt, completedAt, errStr, result sql.NullString
	var ownedRaw, patternsRaw sql.NullString

	if err := rows.Scan(&t.ID, &t.Description, &t.Status, &claimerID, &claimedAt,
		&completedAt, &errStr, &result, &t.Priority, &t.Wave, &ownedRaw, &patternsRaw); err != nil {
		return types.Task{}, err
	}

	t.ClaimerID = claimerID.String
	t.Error = errStr.String
	t.Result = result.String
	t.OwnedFiles = decodeStringList(ownedRaw)
	t.FilePatterns = decodeStringList(patternsRaw)
	if claimedAt.Valid {
		if parsed, err := time.Parse(time.RFC3339, claimedAt.String); err == nil {
			t.ClaimedAt = &parsed
		}
	}
	if completedAt.Valid {
		if parsed, err := time.Parse(time.RFC3339, completedAt.String); err == nil {
			t.CompletedAt = &parsed
		}
	}
	return t, nil
}

const taskSelectCols = `id, description, status, claimer_id, claimed_at, completed_at, error, result, priority, wave, owned_files, file_patterns`

func (p *Pool) queryTasks(ctx context.Context, where string, args ...any) ([]types.Task, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+taskSelectCols+` FROM tasks `+where+` ORDER BY priority ASC, id ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TasksByStatus returns all tasks with the given status, priority order.
func (p *Pool) TasksByStatus(ctx context.Context, status types.TaskStatus) ([]types.Task, error) {
	return p.queryTasks(ctx, "WHERE status = ?", status)
}

// TasksByWave returns all tasks in the given wave, priority order.
func (p *Pool) TasksByWave(ctx context.Context, wave int) ([]types.Task, error) {
	return p.queryTasks(ctx, "WHERE wave = ?", wave)
}

// TasksByWorker returns all tasks whose claimer is workerID, including done
// and failed tasks it claimed.
func (p *Pool) TasksByWorker(ctx context.Context, workerID string) ([]types.Task, error) {
	return p.queryTasks(ctx, "WHERE claimer_id = ?", workerID)
}

// HasPendingTasks reports whether any task is still pending.
func (p *Pool) HasPendingTasks(ctx context.Context) (bool, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status = 'pending'`).Scan(&n)
	return n > 0, err
}

// AllComplete reports whether the pool has at least one task and none are
// pending or claimed.
func (p *Pool) AllComplete(ctx context.Context) (bool, error) {
	var total, open int
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return false, err
	}
	if total == 0 {
		return false, nil
	}
	if err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status IN ('pending', 'claimed')`).Scan(&open); err != nil {
		return false, err
	}
	return open == 0, nil
}

// ActiveWorkerCount returns the number of workers with a heartbeat newer
// than now-leaseTimeout.
func (p *Pool) ActiveWorkerCount(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-leaseTimeout).UTC().Format(time.RFC3339)
	var n int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM heartbeats WHERE last_heartbeat >= ?`, cutoff).Scan(&n)
	return n, err
}

// AvailableSlots returns max(0, maxConcurrent - (pending + claimed)).
func (p *Pool) AvailableSlots(ctx context.Context, maxConcurrent int) (int, error) {
	var open int
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE status IN ('pending', 'claimed')`).Scan(&open)
	if err != nil {
		return 0, err
	}
	slots := maxConcurrent - open
	if slots < 0 {
		slots = 0
	}
	return slots, nil
}

// StatusCounts returns the count of tasks in each status, for the summary
// sidecar and operator dashboard.
func (p *Pool) StatusCounts(ctx context.Context) (map[types.TaskStatus]int, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[types.TaskStatus]int{
		types.TaskPending: 0, types.TaskClaimed: 0, types.TaskDone: 0, types.TaskFailed: 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[types.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}
