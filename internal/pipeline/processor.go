package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pulsekeep/pulsekeep/internal/enrich"
	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/queue"
	"github.com/pulsekeep/pulsekeep/internal/selector"
	"github.com/pulsekeep/pulsekeep/internal/store"
)

// Disposition tells the worker what to do with a delivery.
type Disposition int

const (
	// DispositionAck marks the message processed.
	DispositionAck Disposition = iota
	// DispositionRetry schedules redelivery; only transport-level store
	// failures earn this. AI failures never do; the fallback absorbs them.
	DispositionRetry
	// DispositionDead parks the message for manual inspection.
	DispositionDead
)

// AIResolver resolves the AI path for a worthy pulse. Always returns a
// complete result, substituting the fallback on any failure.
type AIResolver interface {
	Enrich(ctx context.Context, sp *model.StoppedPulse, budget model.Budget, fallback model.EnrichmentResult) model.EnrichmentResult
}

// Processor runs the per-message pipeline: validate, select, enrich, ingest.
// It is safe to re-run with the same input any number of times.
type Processor struct {
	store       store.Store
	sel         *selector.Selector
	ai          AIResolver
	coordinator *Coordinator
	log         zerolog.Logger
}

// NewProcessor constructs a Processor. ai may be nil to disable the AI path
// entirely (every pulse then ingests the standard enrichment).
func NewProcessor(st store.Store, sel *selector.Selector, ai AIResolver, coord *Coordinator, log zerolog.Logger) *Processor {
	return &Processor{store: st, sel: sel, ai: ai, coordinator: coord, log: log}
}

// Process handles one delivery and returns its disposition. A non-nil error
// accompanies DispositionRetry and DispositionDead with the cause.
func (p *Processor) Process(ctx context.Context, d queue.Delivery) (Disposition, error) {
	sp := d.Stopped
	log := p.log.With().Str("user_id", d.UserID).Str("pulse_id", d.PulseID).Int("attempt", d.Attempt).Logger()

	if err := model.ValidateStopped(&sp); err != nil {
		log.Error().Err(err).Msg("malformed stop event")
		return DispositionDead, err
	}
	if sp.UserID != d.UserID || sp.PulseID != d.PulseID {
		err := fmt.Errorf("%w: envelope identity %s/%s does not match snapshot %s/%s",
			model.ErrValidation, d.UserID, d.PulseID, sp.UserID, sp.PulseID)
		log.Error().Err(err).Msg("malformed stop event")
		return DispositionDead, err
	}

	// Redelivery short-circuit: a terminal record ends the pipeline.
	if _, err := p.store.Ingested().Get(ctx, sp.UserID, sp.PulseID); err == nil {
		log.Debug().Msg("pulse already ingested")
		return DispositionAck, nil
	} else if !errors.Is(err, model.ErrNotFound) {
		return DispositionRetry, fmt.Errorf("terminal record lookup: %w", err)
	}

	decision := p.sel.Select(&sp)

	// The standard enrichment is computed eagerly and unconditionally so an
	// AI failure can never block ingestion.
	final := enrich.Standard(&sp)

	if decision.Worthy && p.ai != nil {
		log.Info().Float64("score", decision.Score).
			Dur("latency_budget", decision.Budget.MaxLatency).
			Msg("pulse selected for ai enrichment")
		final = p.ai.Enrich(ctx, &sp, decision.Budget, final)
	}

	// Single terminal write after both paths resolved; the AI path has
	// already degraded to the fallback if it had to.
	if err := p.coordinator.Ingest(ctx, &sp, final); err != nil {
		if errors.Is(err, model.ErrValidation) {
			log.Error().Err(err).Msg("unwritable enrichment")
			return DispositionDead, err
		}
		return DispositionRetry, fmt.Errorf("ingest: %w", err)
	}
	return DispositionAck, nil
}
