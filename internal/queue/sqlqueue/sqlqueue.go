// Package sqlqueue implements queue.Queue on a SQL table, using the record
// store's own database so stop events can be enqueued in the same
// transaction that writes the stopped pulse.
package sqlqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsekeep/pulsekeep/internal/queue"
)

// Options tune redelivery behavior.
type Options struct {
	// MaxDeliveries is the delivery budget before automatic dead-lettering.
	MaxDeliveries int
	// Visibility is how long a leased message stays invisible before it is
	// considered abandoned and redelivered.
	Visibility time.Duration
	// BackoffCap bounds the exponential redelivery backoff.
	BackoffCap time.Duration
}

func (o *Options) fillDefaults() {
	if o.MaxDeliveries <= 0 {
		o.MaxDeliveries = 8
	}
	if o.Visibility <= 0 {
		o.Visibility = 30 * time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 5 * time.Minute
	}
}

// statements holds the driver-specific SQL text.
type statements struct {
	insert     string
	lease      string
	markLeased string
	ack        string
	fetchRow   string
	requeue    string
	dead       string
	listDead   string
	replay     string
	stats      string
}

// SQLQueue is a queue.Queue backed by a work_queue table.
type SQLQueue struct {
	db    *sql.DB
	st    statements
	opts  Options
	log   zerolog.Logger
	nowFn func() time.Time
}

var _ queue.Queue = (*SQLQueue)(nil)

func newSQLQueue(db *sql.DB, st statements, opts Options, log zerolog.Logger) *SQLQueue {
	opts.fillDefaults()
	return &SQLQueue{db: db, st: st, opts: opts, log: log, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Enqueue adds a message outside any transaction.
func (q *SQLQueue) Enqueue(ctx context.Context, msg queue.Message) error {
	return q.enqueue(ctx, q.db, msg)
}

// EnqueueTx adds a message inside the caller's transaction. The record store
// uses this to make the stopped-pulse write and its stop event atomic.
func (q *SQLQueue) EnqueueTx(ctx context.Context, tx *sql.Tx, msg queue.Message) error {
	return q.enqueue(ctx, tx, msg)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (q *SQLQueue) enqueue(ctx context.Context, ex execer, msg queue.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal queue message: %w", err)
	}
	now := q.nowFn().UnixMilli()
	_, err = ex.ExecContext(ctx, q.st.insert, msg.UserID, msg.PulseID, payload, now, now, now)
	return err
}

// Dequeue leases up to max ready messages. Both pending rows and inflight
// rows whose visibility deadline lapsed are eligible; the latter is the
// redelivery path for crashed consumers.
func (q *SQLQueue) Dequeue(ctx context.Context, max int) ([]queue.Delivery, error) {
	if max <= 0 {
		max = 1
	}
	tx, err := q.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := q.nowFn()
	rows, err := tx.QueryContext(ctx, q.st.lease, now.UnixMilli(), max)
	if err != nil {
		return nil, err
	}

	type leased struct {
		id      int64
		payload []byte
		count   int
	}
	var batch []leased
	for rows.Next() {
		var l leased
		if err := rows.Scan(&l.id, &l.payload, &l.count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		batch = append(batch, l)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	deadline := now.Add(q.opts.Visibility).UnixMilli()
	var out []queue.Delivery
	for _, l := range batch {
		if _, err := tx.ExecContext(ctx, q.st.markLeased, deadline, now.UnixMilli(), l.id); err != nil {
			return nil, err
		}
		var msg queue.Message
		if err := json.Unmarshal(l.payload, &msg); err != nil {
			// Poison pill: park it instead of hot-looping on a corrupt row.
			q.log.Error().Err(err).Int64("id", l.id).Msg("corrupt queue payload, dead-lettering")
			if _, derr := tx.ExecContext(ctx, q.st.dead, "corrupt payload: "+err.Error(), now.UnixMilli(), l.id); derr != nil {
				return nil, derr
			}
			continue
		}
		out = append(out, queue.Delivery{
			Message: msg,
			Handle:  queue.AckHandle(l.id),
			Attempt: l.count + 1,
		})
	}
	return out, tx.Commit()
}

// Ack marks a delivery done.
func (q *SQLQueue) Ack(ctx context.Context, h queue.AckHandle) error {
	res, err := q.db.ExecContext(ctx, q.st.ack, q.nowFn().UnixMilli(), int64(h))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrUnknownHandle
	}
	return nil
}

// Nack schedules redelivery with exponential backoff, or dead-letters the
// message once its delivery budget is spent.
func (q *SQLQueue) Nack(ctx context.Context, h queue.AckHandle) error {
	var count int
	if err := q.db.QueryRowContext(ctx, q.st.fetchRow, int64(h)).Scan(&count); err != nil {
		if err == sql.ErrNoRows {
			return queue.ErrUnknownHandle
		}
		return err
	}
	now := q.nowFn()
	if count >= q.opts.MaxDeliveries {
		_, err := q.db.ExecContext(ctx, q.st.dead, "delivery budget exhausted", now.UnixMilli(), int64(h))
		return err
	}
	next := now.Add(q.backoff(count)).UnixMilli()
	_, err := q.db.ExecContext(ctx, q.st.requeue, next, now.UnixMilli(), int64(h))
	return err
}

// DeadLetter parks a delivery for manual inspection.
func (q *SQLQueue) DeadLetter(ctx context.Context, h queue.AckHandle, reason string) error {
	res, err := q.db.ExecContext(ctx, q.st.dead, reason, q.nowFn().UnixMilli(), int64(h))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrUnknownHandle
	}
	return nil
}

// ListDead returns up to limit dead-lettered messages.
func (q *SQLQueue) ListDead(ctx context.Context, limit int) ([]queue.DeadMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.QueryContext(ctx, q.st.listDead, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []queue.DeadMessage
	for rows.Next() {
		var id int64
		var payload []byte
		var reason sql.NullString
		var count int
		if err := rows.Scan(&id, &payload, &reason, &count); err != nil {
			return nil, err
		}
		dm := queue.DeadMessage{Handle: queue.AckHandle(id), Reason: reason.String, Attempt: count}
		// Corrupt payloads are listable too; leave the message zero-valued.
		_ = json.Unmarshal(payload, &dm.Message)
		out = append(out, dm)
	}
	return out, rows.Err()
}

// Replay moves a dead-lettered message back to pending with a fresh budget.
func (q *SQLQueue) Replay(ctx context.Context, h queue.AckHandle) error {
	now := q.nowFn().UnixMilli()
	res, err := q.db.ExecContext(ctx, q.st.replay, now, now, int64(h))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return queue.ErrUnknownHandle
	}
	return nil
}

// Stats reports queue depths.
func (q *SQLQueue) Stats(ctx context.Context) (queue.Stats, error) {
	rows, err := q.db.QueryContext(ctx, q.st.stats)
	if err != nil {
		return queue.Stats{}, err
	}
	defer func() { _ = rows.Close() }()

	var s queue.Stats
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return queue.Stats{}, err
		}
		switch status {
		case "pending":
			s.Pending = n
		case "inflight":
			s.Inflight = n
		case "done":
			s.Done = n
		case "dead":
			s.Dead = n
		}
	}
	return s, rows.Err()
}

// backoff returns the redelivery delay after `attempts` deliveries.
func (q *SQLQueue) backoff(attempts int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempts))) * time.Second
	if d > q.opts.BackoffCap {
		d = q.opts.BackoffCap
	}
	return d
}
