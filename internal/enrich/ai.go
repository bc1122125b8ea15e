package enrich

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/pulsekeep/pulsekeep/internal/llm"
	"github.com/pulsekeep/pulsekeep/internal/model"
	"github.com/pulsekeep/pulsekeep/internal/store"
)

// AIConfig tunes the AI enricher's retry and circuit-breaker behavior.
type AIConfig struct {
	// MaxAttempts bounds model invocations per pulse, within the latency budget.
	MaxAttempts int
	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the breaker.
	BreakerFailureThreshold uint32
	// BreakerWindow is the counting window for failure statistics.
	BreakerWindow time.Duration
	// BreakerCooloff is how long the breaker stays open before probing again.
	BreakerCooloff time.Duration
}

func (c *AIConfig) fillDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BreakerFailureThreshold == 0 {
		c.BreakerFailureThreshold = 5
	}
	if c.BreakerWindow <= 0 {
		c.BreakerWindow = time.Minute
	}
	if c.BreakerCooloff <= 0 {
		c.BreakerCooloff = 30 * time.Second
	}
}

// AIEnricher calls the external generative model under a per-pulse budget.
// It never fails the pipeline: every path resolves to a complete
// EnrichmentResult, substituting the caller's fallback when the model is
// unusable. The enrichment-attempted marker keeps a pulse from being billed
// twice across redeliveries.
type AIEnricher struct {
	model    llm.Model
	markers  store.Markers
	ingested store.Ingested
	breaker  *gobreaker.CircuitBreaker
	cfg      AIConfig
	log      zerolog.Logger
}

// NewAIEnricher constructs an AIEnricher.
func NewAIEnricher(m llm.Model, markers store.Markers, ingested store.Ingested, cfg AIConfig, log zerolog.Logger) *AIEnricher {
	cfg.fillDefaults()
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "genai-model",
		Interval: cfg.BreakerWindow,
		Timeout:  cfg.BreakerCooloff,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("model breaker state change")
		},
	})
	return &AIEnricher{model: m, markers: markers, ingested: ingested, breaker: cb, cfg: cfg, log: log}
}

// BreakerState reports the circuit breaker state for the ops surface.
func (e *AIEnricher) BreakerState() string { return e.breaker.State().String() }

// Enrich resolves the AI path for a worthy pulse. fallback must be the
// already-computed standard enrichment; it is returned whenever the model
// cannot produce a usable result within budget.
func (e *AIEnricher) Enrich(ctx context.Context, sp *model.StoppedPulse, budget model.Budget, fallback model.EnrichmentResult) model.EnrichmentResult {
	log := e.log.With().Str("user_id", sp.UserID).Str("pulse_id", sp.PulseID).Logger()

	// A terminal record means some earlier delivery finished the whole
	// pipeline; its enrichment is the only answer that matters.
	if ip, err := e.ingested.Get(ctx, sp.UserID, sp.PulseID); err == nil {
		return ip.Enrichment
	}

	claim, err := e.markers.Claim(ctx, sp.UserID, sp.PulseID)
	if err != nil {
		log.Error().Err(err).Msg("marker claim failed, using fallback")
		return fallback
	}
	switch claim.State {
	case model.ClaimResolved:
		return *claim.Result
	case model.ClaimHeld:
		// A previous delivery attempted enrichment and recorded nothing.
		// Re-invoking would risk double billing, so degrade.
		log.Info().Msg("enrichment already attempted, using fallback")
		return fallback
	}

	resp, err := e.callModel(ctx, sp, budget)
	if err != nil {
		log.Info().Err(err).Msg("ai enrichment unavailable, using fallback")
		e.record(ctx, sp, fallback)
		return fallback
	}
	if resp.CostUnits > budget.MaxCostUnits {
		log.Warn().Int64("cost", resp.CostUnits).Int64("budget", budget.MaxCostUnits).
			Msg("model response over cost budget, using fallback")
		e.record(ctx, sp, fallback)
		return fallback
	}

	result := model.EnrichmentResult{
		Title:     resp.Title,
		Badge:     resp.Badge,
		Source:    model.SourceAI,
		CostUnits: resp.CostUnits,
	}
	for _, in := range resp.Insights {
		result.Insights = append(result.Insights, model.Insight{Kind: in.Kind, Text: in.Text})
	}
	e.record(ctx, sp, result)
	log.Info().Int64("cost", result.CostUnits).Int("insights", len(result.Insights)).
		Msg("ai enrichment complete")
	return result
}

// callModel runs the bounded retry loop. The latency budget caps the whole
// loop; transient failures back off exponentially, permanent ones stop
// immediately, and an open breaker rejects without touching the network.
func (e *AIEnricher) callModel(ctx context.Context, sp *model.StoppedPulse, budget model.Budget) (*llm.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, budget.MaxLatency)
	defer cancel()

	req := llm.Request{
		Intent:          sp.Intent,
		Reflection:      sp.Reflection,
		Emotion:         sp.Emotion,
		EnergyType:      string(sp.EnergyType),
		DurationSeconds: sp.DurationSeconds,
		MaxCostUnits:    budget.MaxCostUnits,
	}

	operation := func() (*llm.Response, error) {
		out, err := e.breaker.Execute(func() (interface{}, error) {
			return e.model.Generate(callCtx, req)
		})
		if err != nil {
			if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
				return nil, backoff.Permanent(model.ErrModelUnavailable)
			}
			if llm.IsTransient(err) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return out.(*llm.Response), nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 200 * time.Millisecond
	expo.MaxInterval = 2 * time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(e.cfg.MaxAttempts-1)), callCtx)
	return backoff.RetryWithData(operation, policy)
}

// record stores the outcome on the marker so redeliveries short-circuit.
// Best effort: a failed write only costs an extra fallback later.
func (e *AIEnricher) record(ctx context.Context, sp *model.StoppedPulse, er model.EnrichmentResult) {
	if err := e.markers.RecordResult(ctx, sp.UserID, sp.PulseID, er); err != nil {
		e.log.Warn().Err(err).
			Str("user_id", sp.UserID).Str("pulse_id", sp.PulseID).
			Msg("marker result write failed")
	}
}
