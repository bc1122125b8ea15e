package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateStopped checks that a StoppedPulse satisfies the pipeline's input
// contract. Failures are fatal for the carrying message (dead-letter class),
// never retried.
func ValidateStopped(sp *StoppedPulse) error {
	if sp == nil {
		return fmt.Errorf("%w: nil stopped pulse", ErrValidation)
	}
	if err := validate.Struct(sp); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !sp.EnergyType.Valid() {
		return fmt.Errorf("%w: unknown energy type %q", ErrValidation, sp.EnergyType)
	}
	if !sp.StoppedAt.After(sp.StartedAt) {
		return fmt.Errorf("%w: stoppedAt must be after startedAt", ErrValidation)
	}
	if sp.DurationSeconds <= 0 {
		return fmt.Errorf("%w: durationSeconds must be > 0", ErrValidation)
	}
	// durationSeconds is derived from the timestamps; a snapshot where they
	// disagree was corrupted somewhere and would skew worthiness scoring.
	// One second of tolerance absorbs sub-second truncation.
	gap := sp.StoppedAt.Sub(sp.StartedAt)
	if skew := gap - time.Duration(sp.DurationSeconds)*time.Second; skew < -time.Second || skew > time.Second {
		return fmt.Errorf("%w: durationSeconds %d disagrees with timestamps (%s apart)",
			ErrValidation, sp.DurationSeconds, gap)
	}
	return nil
}

// ValidateEnrichment checks the never-partially-populated contract.
func ValidateEnrichment(er *EnrichmentResult) error {
	if er == nil {
		return fmt.Errorf("%w: nil enrichment", ErrValidation)
	}
	if er.Title == "" || er.Badge == "" {
		return fmt.Errorf("%w: enrichment must carry a non-empty title and badge", ErrValidation)
	}
	switch er.Source {
	case SourceStandard, SourceAI:
	default:
		return fmt.Errorf("%w: unknown enrichment source %q", ErrValidation, er.Source)
	}
	if er.CostUnits < 0 {
		return fmt.Errorf("%w: costUnits must be non-negative", ErrValidation)
	}
	return nil
}
