// Package store defines the persistence contract for the enrichment
// pipeline. Implementations live under store/<driver>/ (postgres, sqlite).
package store

import (
	"context"
	"database/sql"

	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/queue"
)

// Store exposes the persistence operations the pipeline requires.
type Store interface {
	Pulses() Pulses
	Ingested() Ingested
	Markers() Markers

	// HealthPing verifies connectivity for health checks.
	HealthPing(ctx context.Context) error
	// Close releases the underlying database handle.
	Close() error
}

// Pulses manages stopped-pulse records.
type Pulses interface {
	// PutStopped writes the stopped record and publishes its stop event in
	// one transaction, so a stored stop can never be lost by the queue.
	// Returns model.ErrDuplicate when the pulse was already stopped.
	PutStopped(ctx context.Context, sp *model.StoppedPulse) error
	GetStopped(ctx context.Context, userID, pulseID string) (*model.StoppedPulse, error)
}

// Ingested manages terminal records. The conditional write is the pipeline's
// only serialization point.
type Ingested interface {
	// PutIfAbsent writes the terminal record unless one already exists for
	// (UserID, PulseID). written=false means another attempt won the race;
	// callers treat that as success.
	PutIfAbsent(ctx context.Context, ip *model.IngestedPulse) (written bool, err error)
	Get(ctx context.Context, userID, pulseID string) (*model.IngestedPulse, error)
	// List returns ingested pulses for a user in reverse-chronological order
	// (ascending inverted timestamp).
	List(ctx context.Context, userID string, limit int) ([]*model.IngestedPulse, error)
}

// Markers manages the per-pulse enrichment attempt marker that keeps the
// AI path from being invoked and billed twice.
type Markers interface {
	// Claim atomically acquires the marker for a pulse. Exactly one caller
	// across all deliveries observes ClaimAcquired.
	Claim(ctx context.Context, userID, pulseID string) (model.ClaimResult, error)
	// RecordResult stores the enrichment outcome on the marker so later
	// deliveries can short-circuit to it.
	RecordResult(ctx context.Context, userID, pulseID string, er model.EnrichmentResult) error
	Get(ctx context.Context, userID, pulseID string) (*model.EnrichmentMarker, error)
}

// StopFeed publishes a stop event inside the store's own transaction.
// The SQL queue implements this; it is the transactional-outbox seam between
// the record store and the delivery substrate.
type StopFeed interface {
	EnqueueTx(ctx context.Context, tx *sql.Tx, msg queue.Message) error
}

// StopFeedFunc adapts a function to StopFeed.
type StopFeedFunc func(ctx context.Context, tx *sql.Tx, msg queue.Message) error

// EnqueueTx calls f.
func (f StopFeedFunc) EnqueueTx(ctx context.Context, tx *sql.Tx, msg queue.Message) error {
	return f(ctx, tx, msg)
}
