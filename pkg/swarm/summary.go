package swarm

import (
	"context"
	"time"

	"github.com/omc-dev/coordinator/pkg/statestore"
	"github.com/omc-dev/coordinator/pkg/types"
)

// Summary is the sidecar document external monitors read, written
// atomically after every successful claim or complete.
type Summary struct {
	SessionID    string `json:"session_id"`
	StartedAt    string `json:"started_at"`
	UpdatedAt    string `json:"updated_at"`
	TaskCount    int    `json:"task_count"`
	TasksPending int    `json:"tasks_pending"`
	TasksClaimed int    `json:"tasks_claimed"`
	TasksDone    int    `json:"tasks_done"`
	Active       bool   `json:"active"`
	ProjectPath  string `json:"project_path"`
}

// InitSession sets the pool's singleton session row.
func (p *Pool) InitSession(ctx context.Context, sessionID, projectPath string, workerCount int) error {
	p.projectPath = projectPath
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO pool_session(id, session_id, active, worker_count, started_at)
		VALUES (1, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET session_id = excluded.session_id, active = 1,
			worker_count = excluded.worker_count, started_at = excluded.started_at`,
		sessionID, workerCount, now)
	return err
}

func (p *Pool) writeSummary(ctx context.Context) error {
	var sessionID, startedAt string
	var active int
	row := p.db.QueryRowContext(ctx, `SELECT session_id, active, started_at FROM pool_session WHERE id = 1`)
	_ = row.Scan(&sessionID, &active, &startedAt) // absent session row => zero values, summary still written

	counts, err := p.StatusCounts(ctx)
	if err != nil {
		return err
	}
	total := counts[types.TaskPending] + counts[types.TaskClaimed] + counts[types.TaskDone] + counts[types.TaskFailed]

	summary := Summary{
		SessionID:    sessionID,
		StartedAt:    startedAt,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
		TaskCount:    total,
		TasksPending: counts[types.TaskPending],
		TasksClaimed: counts[types.TaskClaimed],
		TasksDone:    counts[types.TaskDone],
		Active:       active == 1,
		ProjectPath:  p.projectPath,
	}
	return statestore.AtomicWriteJSON(statestore.DocPath(p.cwd, "swarm-summary.json"), summary)
}
