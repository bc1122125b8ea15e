package sqlqueue

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

// Timestamps are stored as unix milliseconds so the SQL stays portable
// between Postgres and SQLite and tests can inject a clock.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS work_queue (
        id              BIGSERIAL PRIMARY KEY,
        user_id         TEXT NOT NULL,
        pulse_id        TEXT NOT NULL,
        payload         JSONB NOT NULL,
        status          TEXT NOT NULL DEFAULT 'pending',
        delivery_count  INT NOT NULL DEFAULT 0,
        reason          TEXT,
        next_attempt_at BIGINT NOT NULL,
        created_at      BIGINT NOT NULL,
        updated_at      BIGINT NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS work_queue_ready_idx ON work_queue (status, next_attempt_at);`,
}

func postgresStatements() statements {
	return statements{
		insert: `INSERT INTO work_queue (user_id, pulse_id, payload, status, delivery_count, next_attempt_at, created_at, updated_at)
                 VALUES ($1, $2, $3, 'pending', 0, $4, $5, $6)`,
		lease: `SELECT id, payload, delivery_count FROM work_queue
                WHERE (status = 'pending' OR status = 'inflight') AND next_attempt_at <= $1
                ORDER BY id ASC LIMIT $2 FOR UPDATE SKIP LOCKED`,
		markLeased: `UPDATE work_queue SET status = 'inflight', delivery_count = delivery_count + 1,
                     next_attempt_at = $1, updated_at = $2 WHERE id = $3`,
		ack:      `UPDATE work_queue SET status = 'done', updated_at = $1 WHERE id = $2 AND status = 'inflight'`,
		fetchRow: `SELECT delivery_count FROM work_queue WHERE id = $1 AND status = 'inflight'`,
		requeue:  `UPDATE work_queue SET status = 'pending', next_attempt_at = $1, updated_at = $2 WHERE id = $3`,
		dead:     `UPDATE work_queue SET status = 'dead', reason = $1, updated_at = $2 WHERE id = $3 AND status <> 'done'`,
		listDead: `SELECT id, payload, reason, delivery_count FROM work_queue WHERE status = 'dead' ORDER BY id ASC LIMIT $1`,
		replay: `UPDATE work_queue SET status = 'pending', delivery_count = 0, reason = NULL,
                 next_attempt_at = $1, updated_at = $2 WHERE id = $3 AND status = 'dead'`,
		stats: `SELECT status, COUNT(*) FROM work_queue GROUP BY status`,
	}
}

// NewPostgres builds a Postgres-backed queue on an existing database handle.
func NewPostgres(db *sql.DB, opts Options, log zerolog.Logger) *SQLQueue {
	return newSQLQueue(db, postgresStatements(), opts, log)
}

// EnsurePostgresSchema creates the queue table if missing. Safe to call
// repeatedly.
func EnsurePostgresSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
