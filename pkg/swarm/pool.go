package swarm

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/omc-dev/coordinator/pkg/log"
	"github.com/omc-dev/coordinator/pkg/statestore"
)

const schemaVersion = 1

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id            TEXT PRIMARY KEY,
	description   TEXT NOT NULL,
	status        TEXT NOT NULL,
	claimer_id    TEXT,
	claimed_at    TEXT,
	completed_at  TEXT,
	error         TEXT,
	result        TEXT,
	priority      INTEGER NOT NULL DEFAULT 0,
	wave          INTEGER NOT NULL DEFAULT 1,
	owned_files   TEXT,
	file_patterns TEXT
);

CREATE INDEX IF NOT EXISTS idx_tasks_status_priority ON tasks(status, priority, id);

CREATE TABLE IF NOT EXISTS heartbeats (
	worker_id       TEXT PRIMARY KEY,
	last_heartbeat  TEXT NOT NULL,
	current_task_id TEXT
);

CREATE TABLE IF NOT EXISTS pool_session (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	session_id   TEXT,
	active       INTEGER NOT NULL DEFAULT 0,
	worker_count INTEGER NOT NULL DEFAULT 0,
	started_at   TEXT,
	completed_at TEXT
);
`

// Pool is the task pool for one working directory's `.omc/state/swarm.db`.
type Pool struct {
	db          *sql.DB
	cwd         string
	projectPath string
}

// Open opens (creating if necessary) the swarm database for cwd, applies
// the idempotent schema DDL, records schema_version on first open, and
// returns a ready Pool. The stored version is not compared or migrated.
func Open(ctx context.Context, cwd string) (*Pool, error) {
	dbPath := statestore.DocPath(cwd, "swarm.db")
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // one writer connection; sqlite serializes anyway

	p := &Pool{db: db, cwd: cwd}
	if err := p.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return p, nil
}

// Close releases the underlying database handle.
func (p *Pool) Close() error {
	return p.db.Close()
}

func (p *Pool) migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var versionStr string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&versionStr)
	if err == sql.ErrNoRows {
		_, err = p.db.ExecContext(ctx,
			`INSERT INTO schema_meta(key, value) VALUES ('schema_version', ?)`, fmt.Sprintf("%d", schemaVersion))
		if err != nil {
			return fmt.Errorf("init schema_version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema_version: %w", err)
	}

	// Future migrations compare versionStr against schemaVersion here and
	// run ALTER/backfill steps; there is exactly one schema generation so
	// far, so there is nothing to migrate yet.
	log.WithComponent("swarm").Debug().Str("schema_version", versionStr).Msg("swarm schema up to date")
	return nil
}

// withImmediateTx runs fn against a dedicated connection inside a SQLite
// "BEGIN IMMEDIATE" transaction, which takes the writer lock up front so
// every pool operation is genuinely all-or-nothing (spec's CAS contract)
// instead of racing another writer between a SELECT and the following
// UPDATE under the default deferred transaction mode.
func (p *Pool) withImmediateTx(ctx context.Context, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}

	if err := fn(ctx, conn); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = conn.ExecContext(ctx, "ROLLBACK")
		return err
	}
	return nil
}
