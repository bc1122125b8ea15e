// Package pipeline wires the enrichment stages together: stop events come
// in from the queue, exactly one terminal record per pulse goes out to the
// store.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/store"
)

// Coordinator owns the terminal write discipline. However many pipeline
// replays race to ingest the same pulse, at most one IngestedPulse lands;
// losing the race is success, not failure.
type Coordinator struct {
	ingested store.Ingested
	log      zerolog.Logger
	nowFn    func() time.Time
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(ingested store.Ingested, log zerolog.Logger) *Coordinator {
	return &Coordinator{ingested: ingested, log: log, nowFn: func() time.Time { return time.Now().UTC() }}
}

// Ingest merges the enrichment into the terminal record via the store's
// conditional write. The first write wins; a rejected write means the
// invariant already holds and the local result is silently discarded.
func (c *Coordinator) Ingest(ctx context.Context, sp *model.StoppedPulse, er model.EnrichmentResult) error {
	if err := model.ValidateEnrichment(&er); err != nil {
		return err
	}
	ip := &model.IngestedPulse{
		StoppedPulse:      *sp,
		Enrichment:        er,
		InvertedTimestamp: model.InvertedTimestamp(sp.StoppedAt),
		IngestedAt:        c.nowFn(),
	}
	written, err := c.ingested.PutIfAbsent(ctx, ip)
	if err != nil {
		return err
	}
	if !written {
		c.log.Debug().
			Str("user_id", sp.UserID).Str("pulse_id", sp.PulseID).
			Msg("terminal record already exists, discarding result")
		return nil
	}
	c.log.Info().
		Str("user_id", sp.UserID).Str("pulse_id", sp.PulseID).
		Str("source", string(er.Source)).
		Msg("pulse ingested")
	return nil
}
