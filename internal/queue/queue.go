// Package queue defines the at-least-once work queue carrying stop events
// into the enrichment pipeline. Consumers must tolerate duplicate and
// out-of-order deliveries; every message handler is idempotent by
// construction downstream.
package queue

import (
	"context"
	"errors"

	"github.com/pulsekeep/pulsekeep/internal/model"
)

// Message is the stop-event payload: identity plus a snapshot of the stopped
// pulse so consumers need no read-back from the record store.
type Message struct {
	UserID  string             `json:"userId"`
	PulseID string             `json:"pulseId"`
	Stopped model.StoppedPulse `json:"stoppedPulse"`
}

// AckHandle identifies a specific delivery for Ack/Nack/DeadLetter.
type AckHandle int64

// Delivery is a leased message plus its delivery metadata.
type Delivery struct {
	Message
	Handle AckHandle
	// Attempt is 1 on first delivery and increments on each redelivery.
	Attempt int
}

// DeadMessage is a dead-lettered delivery held for manual inspection.
type DeadMessage struct {
	Handle  AckHandle
	Message Message
	Reason  string
	Attempt int
}

// Stats summarizes queue depths for the ops surface.
type Stats struct {
	Pending  int64 `json:"pending"`
	Inflight int64 `json:"inflight"`
	Done     int64 `json:"done"`
	Dead     int64 `json:"dead"`
}

// ErrUnknownHandle is returned when an ack handle does not match an
// in-flight delivery (already acked, or redelivered to another consumer).
var ErrUnknownHandle = errors.New("unknown ack handle")

// Queue is the delivery substrate contract. Implementations redeliver
// unacked messages after a visibility window and dead-letter messages that
// exhaust their delivery budget.
type Queue interface {
	// Enqueue adds a message. Safe to call with duplicates.
	Enqueue(ctx context.Context, msg Message) error

	// Dequeue leases up to max ready messages. Leased messages are invisible
	// to other consumers until acked, nacked, or the visibility window lapses.
	Dequeue(ctx context.Context, max int) ([]Delivery, error)

	// Ack marks a delivery processed; the message will not be redelivered.
	Ack(ctx context.Context, h AckHandle) error

	// Nack schedules redelivery with backoff. A message that has exhausted
	// its delivery budget is dead-lettered instead.
	Nack(ctx context.Context, h AckHandle) error

	// DeadLetter parks a delivery for manual inspection, recording why.
	DeadLetter(ctx context.Context, h AckHandle, reason string) error

	// ListDead returns up to limit dead-lettered messages.
	ListDead(ctx context.Context, limit int) ([]DeadMessage, error)

	// Replay moves a dead-lettered message back to pending with a fresh
	// delivery budget.
	Replay(ctx context.Context, h AckHandle) error

	// Stats reports queue depths.
	Stats(ctx context.Context) (Stats, error)
}
