package swarm

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/omc-dev/coordinator/pkg/metrics"
)

// Release returns a claimed task to pending, but only if workerID is still
// its claimer (CAS-back).
func (p *Pool) Release(ctx context.Context, workerID, taskID string) (bool, error) {
	var ok bool
	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE tasks SET status = 'pending', claimer_id = NULL, claimed_at = NULL
			WHERE id = ? AND status = 'claimed' AND claimer_id = ?`, taskID, workerID)
		if err != nil {
			return err
		}
		ok, err = affectedOne(res)
		return err
	})
	return ok, err
}

// Complete marks a claimed task done, but only if workerID is still its
// claimer.
func (p *Pool) Complete(ctx context.Context, workerID, taskID, result string) (bool, error) {
	var ok bool
	now := time.Now().UTC().Format(time.RFC3339)
	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE tasks SET status = 'done', completed_at = ?, result = ?
			WHERE id = ? AND status = 'claimed' AND claimer_id = ?`, now, result, taskID, workerID)
		if err != nil {
			return err
		}
		ok, err = affectedOne(res)
		return err
	})
	if err == nil && ok {
		if werr := p.writeSummary(ctx); werr != nil {
			return ok, werr
		}
	}
	return ok, err
}

// Fail marks a claimed task failed, but only if workerID is still its
// claimer.
func (p *Pool) Fail(ctx context.Context, workerID, taskID, errMsg string) (bool, error) {
	var ok bool
	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE tasks SET status = 'failed', error = ?
			WHERE id = ? AND status = 'claimed' AND claimer_id = ?`, errMsg, taskID, workerID)
		if err != nil {
			return err
		}
		ok, err = affectedOne(res)
		return err
	})
	return ok, err
}

// ReclaimFailed moves a failed task back to claimed under a new worker and
// clears its error, but only if it is still in failed status.
func (p *Pool) ReclaimFailed(ctx context.Context, workerID, taskID string) (bool, error) {
	var ok bool
	now := time.Now().UTC().Format(time.RFC3339)
	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			UPDATE tasks SET status = 'claimed', claimer_id = ?, claimed_at = ?, error = NULL
			WHERE id = ? AND status = 'failed'`, workerID, now, taskID)
		if err != nil {
			return err
		}
		ok, err = affectedOne(res)
		return err
	})
	return ok, err
}

// Heartbeat upserts workerID's heartbeat row, inferring its current task
// from the tasks table. Idempotent.
func (p *Pool) Heartbeat(ctx context.Context, workerID string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	return p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		var taskID sql.NullString
		err := conn.QueryRowContext(ctx, `
			SELECT id FROM tasks WHERE claimer_id = ? AND status = 'claimed' LIMIT 1`, workerID).Scan(&taskID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO heartbeats(worker_id, last_heartbeat, current_task_id)
			VALUES (?, ?, ?)
			ON CONFLICT(worker_id) DO UPDATE SET last_heartbeat = excluded.last_heartbeat, current_task_id = excluded.current_task_id`,
			workerID, now, taskID)
		return err
	})
}

// CleanupStaleClaims returns to pending every task claimed before
// now-leaseTimeout whose worker has also not heartbeated since then, and
// drops those workers' heartbeat rows. Returns the number of tasks released.
func (p *Pool) CleanupStaleClaims(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	cutoff := time.Now().Add(-leaseTimeout).UTC().Format(time.RFC3339)
	var released int

	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT t.id, t.claimer_id FROM tasks t
			LEFT JOIN heartbeats h ON h.worker_id = t.claimer_id
			WHERE t.status = 'claimed'
			  AND t.claimed_at < ?
			  AND (h.last_heartbeat IS NULL OR h.last_heartbeat < ?)`, cutoff, cutoff)
		if err != nil {
			return err
		}

		type stale struct{ id, worker string }
		var staleRows []stale
		for rows.Next() {
			var s stale
			if err := rows.Scan(&s.id, &s.worker); err != nil {
				rows.Close()
				return err
			}
			staleRows = append(staleRows, s)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		for _, s := range staleRows {
			if _, err := conn.ExecContext(ctx, `
				UPDATE tasks SET status = 'pending', claimer_id = NULL, claimed_at = NULL
				WHERE id = ?`, s.id); err != nil {
				return err
			}
			if _, err := conn.ExecContext(ctx, `DELETE FROM heartbeats WHERE worker_id = ?`, s.worker); err != nil {
				return err
			}
			released++
		}
		return nil
	})
	if err == nil && released > 0 {
		metrics.StaleClaimsReclaimed.Add(float64(released))
	}
	return released, err
}

// NewTask describes one task to insert via AddTasks.
type NewTask struct {
	Description  string
	Priority     int
	Wave         int
	OwnedFiles   []string
	FilePatterns []string
}

var taskIDPattern = regexp.MustCompile(`^task-(\d+)$`)

// AddTasks inserts batch in a single transaction, assigning ids as
// MAX(numeric suffix of existing "task-<n>" ids, high-water mark kept in
// schema_meta) + 1, incrementing per task, so ids stay unique and monotonic
// even after earlier tasks were deleted.
func (p *Pool) AddTasks(ctx context.Context, batch []NewTask) ([]string, error) {
	var ids []string
	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT id FROM tasks WHERE id LIKE 'task-%'`)
		if err != nil {
			return err
		}
		max := 0
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			if m := taskIDPattern.FindStringSubmatch(id); m != nil {
				if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > max {
					max = n
				}
			}
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		var highWater string
		err = conn.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'task_id_high_water'`).Scan(&highWater)
		if err != nil && err != sql.ErrNoRows {
			return err
		}
		if n, convErr := strconv.Atoi(highWater); convErr == nil && n > max {
			max = n
		}

		for _, t := range batch {
			max++
			id := fmt.Sprintf("task-%d", max)
			ownedJSON, err := encodeStringList(t.OwnedFiles)
			if err != nil {
				return err
			}
			patternsJSON, err := encodeStringList(t.FilePatterns)
			if err != nil {
				return err
			}
			wave := t.Wave
			if wave == 0 {
				wave = 1
			}
			_, err = conn.ExecContext(ctx, `
				INSERT INTO tasks(id, description, status, priority, wave, owned_files, file_patterns)
				VALUES (?, ?, 'pending', ?, ?, ?, ?)`,
				id, t.Description, t.Priority, wave, ownedJSON, patternsJSON)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		_, err = conn.ExecContext(ctx, `
			INSERT INTO schema_meta(key, value) VALUES ('task_id_high_water', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, strconv.Itoa(max))
		return err
	})
	return ids, err
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
