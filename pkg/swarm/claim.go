package swarm

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/omc-dev/coordinator/pkg/glob"
	"github.com/omc-dev/coordinator/pkg/log"
	"github.com/omc-dev/coordinator/pkg/metrics"
)

// ClaimResult is the outcome of a claim attempt.
type ClaimResult struct {
	Success     bool
	TaskID      string
	Description string
	Reason      string
}

type pendingRow struct {
	id           string
	description  string
	ownedFiles   []string
	filePatterns []string
}

// Claim selects the highest-priority pending task (ties broken by id
// ascending), atomically marks it claimed by workerID, and upserts the
// worker's heartbeat. It is safe to call from many concurrent processes
// against the same pool: the underlying transaction takes SQLite's writer
// lock up front, so no two concurrent Claim calls can both win the same row.
func (p *Pool) Claim(ctx context.Context, workerID string) (ClaimResult, error) {
	timer := metrics.NewTimer()
	var result ClaimResult

	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
			SELECT id, description FROM tasks
			WHERE status = 'pending'
			ORDER BY priority ASC, id ASC
			LIMIT 1`)

		var id, description string
		if err := row.Scan(&id, &description); err != nil {
			if err == sql.ErrNoRows {
				result = ClaimResult{Success: false, Reason: "No pending tasks available"}
				return nil
			}
			return err
		}

		claimed, err := claimRow(ctx, conn, id, workerID)
		if err != nil {
			return err
		}
		if !claimed {
			result = ClaimResult{Success: false, Reason: "Task was claimed by another agent"}
			return nil
		}
		result = ClaimResult{Success: true, TaskID: id, Description: description}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	timer.ObserveDuration(metrics.ClaimDuration)
	if result.Success {
		metrics.ClaimsTotal.WithLabelValues("success").Inc()
		if werr := p.writeSummary(ctx); werr != nil {
			log.WithComponent("swarm").Warn().Err(werr).Msg("failed to write swarm summary")
		}
	} else if result.Reason == "No pending tasks available" {
		metrics.ClaimsTotal.WithLabelValues("none_available").Inc()
	} else {
		metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
	}
	return result, nil
}

// ClaimForFiles scans pending tasks for one whose owned-files or
// file-patterns overlap with patterns (matched via pkg/glob, with each
// task-side entry treated as the glob pattern and each caller-supplied
// path tested against it). It prefers a scope-matching task over plain
// priority order; if no pending task matches, it falls back to Claim's
// ordinary priority-ordered selection.
func (p *Pool) ClaimForFiles(ctx context.Context, workerID string, patterns []string) (ClaimResult, error) {
	timer := metrics.NewTimer()
	var result ClaimResult

	err := p.withImmediateTx(ctx, func(ctx context.Context, conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT id, description, owned_files, file_patterns FROM tasks
			WHERE status = 'pending'
			ORDER BY priority ASC, id ASC`)
		if err != nil {
			return err
		}

		var pending []pendingRow
		for rows.Next() {
			var id, description string
			var ownedRaw, patternsRaw sql.NullString
			if err := rows.Scan(&id, &description, &ownedRaw, &patternsRaw); err != nil {
				rows.Close()
				return err
			}
			pending = append(pending, pendingRow{
				id:           id,
				description:  description,
				ownedFiles:   decodeStringList(ownedRaw),
				filePatterns: decodeStringList(patternsRaw),
			})
		}
		if err := rows.Err(); err != nil {
			return err
		}
		rows.Close()

		match := firstMatch(pending, patterns)
		if match == nil {
			if len(pending) == 0 {
				result = ClaimResult{Success: false, Reason: "No pending tasks available"}
				return nil
			}
			match = &pending[0]
		}

		claimed, err := claimRow(ctx, conn, match.id, workerID)
		if err != nil {
			return err
		}
		if !claimed {
			result = ClaimResult{Success: false, Reason: "Task was claimed by another agent"}
			return nil
		}
		result = ClaimResult{Success: true, TaskID: match.id, Description: match.description}
		return nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	timer.ObserveDuration(metrics.ClaimDuration)
	if result.Success {
		metrics.ClaimsTotal.WithLabelValues("success").Inc()
		if werr := p.writeSummary(ctx); werr != nil {
			log.WithComponent("swarm").Warn().Err(werr).Msg("failed to write swarm summary")
		}
	} else if result.Reason == "No pending tasks available" {
		metrics.ClaimsTotal.WithLabelValues("none_available").Inc()
	} else {
		metrics.ClaimsTotal.WithLabelValues("conflict").Inc()
	}
	return result, nil
}

func firstMatch(pending []pendingRow, patterns []string) *pendingRow {
	for i := range pending {
		entries := append(append([]string{}, pending[i].ownedFiles...), pending[i].filePatterns...)
		for _, entry := range entries {
			for _, p := range patterns {
				if glob.Match(entry, p) {
					return &pending[i]
				}
			}
		}
	}
	return nil
}

// decodeStringList tolerates malformed JSON by treating it as an empty
// list, per the pool's "corrupt columns are skipped, not thrown" contract.
func decodeStringList(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil
	}
	return out
}

// claimRow performs the CAS: only succeeds if the row is still pending.
func claimRow(ctx context.Context, conn *sql.Conn, taskID, workerID string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := conn.ExecContext(ctx, `
		UPDATE tasks SET status = 'claimed', claimer_id = ?, claimed_at = ?
		WHERE id = ? AND status = 'pending'`, workerID, now, taskID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO heartbeats(worker_id, last_heartbeat, current_task_id)
		VALUES (?, ?, ?)
		ON CONFLICT(worker_id) DO UPDATE SET last_heartbeat = excluded.last_heartbeat, current_task_id = excluded.current_task_id`,
		workerID, now, taskID)
	if err != nil {
		return false, err
	}
	return true, nil
}
