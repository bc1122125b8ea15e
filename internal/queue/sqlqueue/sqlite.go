package sqlqueue

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS work_queue (
        id              INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id         TEXT NOT NULL,
        pulse_id        TEXT NOT NULL,
        payload         TEXT NOT NULL,
        status          TEXT NOT NULL DEFAULT 'pending',
        delivery_count  INTEGER NOT NULL DEFAULT 0,
        reason          TEXT,
        next_attempt_at INTEGER NOT NULL,
        created_at      INTEGER NOT NULL,
        updated_at      INTEGER NOT NULL
    );`,
	`CREATE INDEX IF NOT EXISTS work_queue_ready_idx ON work_queue (status, next_attempt_at);`,
}

// SQLite has no SKIP LOCKED; the lease transaction relies on the database's
// single-writer model instead, which is fine for local and test use.
func sqliteStatements() statements {
	return statements{
		insert: `INSERT INTO work_queue (user_id, pulse_id, payload, status, delivery_count, next_attempt_at, created_at, updated_at)
                 VALUES (?, ?, ?, 'pending', 0, ?, ?, ?)`,
		lease: `SELECT id, payload, delivery_count FROM work_queue
                WHERE (status = 'pending' OR status = 'inflight') AND next_attempt_at <= ?
                ORDER BY id ASC LIMIT ?`,
		markLeased: `UPDATE work_queue SET status = 'inflight', delivery_count = delivery_count + 1,
                     next_attempt_at = ?, updated_at = ? WHERE id = ?`,
		ack:      `UPDATE work_queue SET status = 'done', updated_at = ? WHERE id = ? AND status = 'inflight'`,
		fetchRow: `SELECT delivery_count FROM work_queue WHERE id = ? AND status = 'inflight'`,
		requeue:  `UPDATE work_queue SET status = 'pending', next_attempt_at = ?, updated_at = ? WHERE id = ?`,
		dead:     `UPDATE work_queue SET status = 'dead', reason = ?, updated_at = ? WHERE id = ? AND status <> 'done'`,
		listDead: `SELECT id, payload, reason, delivery_count FROM work_queue WHERE status = 'dead' ORDER BY id ASC LIMIT ?`,
		replay: `UPDATE work_queue SET status = 'pending', delivery_count = 0, reason = NULL,
                 next_attempt_at = ?, updated_at = ? WHERE id = ? AND status = 'dead'`,
		stats: `SELECT status, COUNT(*) FROM work_queue GROUP BY status`,
	}
}

// NewSQLite builds a SQLite-backed queue on an existing database handle.
func NewSQLite(db *sql.DB, opts Options, log zerolog.Logger) *SQLQueue {
	return newSQLQueue(db, sqliteStatements(), opts, log)
}

// EnsureSQLiteSchema creates the queue table if missing. Safe to call
// repeatedly.
func EnsureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
