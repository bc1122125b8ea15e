// Package memqueue is an in-process queue.Queue used by unit tests and
// local development. It mirrors the SQL queue's redelivery semantics
// (visibility window, delivery budget, dead letters) without a database.
package memqueue

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pulsekeep/pulsekeep/internal/queue"
)

type status string

const (
	statusPending  status = "pending"
	statusInflight status = "inflight"
	statusDone     status = "done"
	statusDead     status = "dead"
)

type row struct {
	id          int64
	msg         queue.Message
	status      status
	deliveries  int
	reason      string
	nextAttempt time.Time
}

// Queue is an in-memory queue.Queue.
type Queue struct {
	mu            sync.Mutex
	rows          map[int64]*row
	nextID        int64
	maxDeliveries int
	visibility    time.Duration
	backoffCap    time.Duration
	nowFn         func() time.Time
}

var _ queue.Queue = (*Queue)(nil)

// New creates an in-memory queue with the given delivery budget and
// visibility window.
func New(maxDeliveries int, visibility time.Duration) *Queue {
	if maxDeliveries <= 0 {
		maxDeliveries = 8
	}
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &Queue{
		rows:          make(map[int64]*row),
		maxDeliveries: maxDeliveries,
		visibility:    visibility,
		backoffCap:    5 * time.Minute,
		nowFn:         time.Now,
	}
}

// SetNow injects a clock for tests.
func (q *Queue) SetNow(now func() time.Time) { q.nowFn = now }

// Enqueue adds a message.
func (q *Queue) Enqueue(_ context.Context, msg queue.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.rows[q.nextID] = &row{id: q.nextID, msg: msg, status: statusPending, nextAttempt: q.nowFn()}
	return nil
}

// Dequeue leases up to max ready messages, including inflight rows whose
// visibility deadline lapsed.
func (q *Queue) Dequeue(_ context.Context, max int) ([]queue.Delivery, error) {
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.nowFn()
	var ready []*row
	for _, r := range q.rows {
		if (r.status == statusPending || r.status == statusInflight) && !r.nextAttempt.After(now) {
			ready = append(ready, r)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].id < ready[j].id })
	if len(ready) > max {
		ready = ready[:max]
	}

	out := make([]queue.Delivery, 0, len(ready))
	for _, r := range ready {
		r.status = statusInflight
		r.deliveries++
		r.nextAttempt = now.Add(q.visibility)
		out = append(out, queue.Delivery{
			Message: r.msg,
			Handle:  queue.AckHandle(r.id),
			Attempt: r.deliveries,
		})
	}
	return out, nil
}

// Ack marks a delivery done.
func (q *Queue) Ack(_ context.Context, h queue.AckHandle) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[int64(h)]
	if !ok || r.status != statusInflight {
		return queue.ErrUnknownHandle
	}
	r.status = statusDone
	return nil
}

// Nack schedules redelivery with backoff, or dead-letters past the budget.
func (q *Queue) Nack(_ context.Context, h queue.AckHandle) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[int64(h)]
	if !ok || r.status != statusInflight {
		return queue.ErrUnknownHandle
	}
	if r.deliveries >= q.maxDeliveries {
		r.status = statusDead
		r.reason = "delivery budget exhausted"
		return nil
	}
	backoff := time.Duration(math.Pow(2, float64(r.deliveries))) * time.Second
	if backoff > q.backoffCap {
		backoff = q.backoffCap
	}
	r.status = statusPending
	r.nextAttempt = q.nowFn().Add(backoff)
	return nil
}

// DeadLetter parks a delivery for manual inspection.
func (q *Queue) DeadLetter(_ context.Context, h queue.AckHandle, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[int64(h)]
	if !ok || r.status == statusDone {
		return queue.ErrUnknownHandle
	}
	r.status = statusDead
	r.reason = reason
	return nil
}

// ListDead returns up to limit dead-lettered messages.
func (q *Queue) ListDead(_ context.Context, limit int) ([]queue.DeadMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var dead []*row
	for _, r := range q.rows {
		if r.status == statusDead {
			dead = append(dead, r)
		}
	}
	sort.Slice(dead, func(i, j int) bool { return dead[i].id < dead[j].id })
	if len(dead) > limit {
		dead = dead[:limit]
	}
	out := make([]queue.DeadMessage, 0, len(dead))
	for _, r := range dead {
		out = append(out, queue.DeadMessage{
			Handle:  queue.AckHandle(r.id),
			Message: r.msg,
			Reason:  r.reason,
			Attempt: r.deliveries,
		})
	}
	return out, nil
}

// Replay moves a dead-lettered message back to pending with a fresh budget.
func (q *Queue) Replay(_ context.Context, h queue.AckHandle) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[int64(h)]
	if !ok || r.status != statusDead {
		return queue.ErrUnknownHandle
	}
	r.status = statusPending
	r.deliveries = 0
	r.reason = ""
	r.nextAttempt = q.nowFn()
	return nil
}

// Stats reports queue depths.
func (q *Queue) Stats(_ context.Context) (queue.Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s queue.Stats
	for _, r := range q.rows {
		switch r.status {
		case statusPending:
			s.Pending++
		case statusInflight:
			s.Inflight++
		case statusDone:
			s.Done++
		case statusDead:
			s.Dead++
		}
	}
	return s, nil
}
