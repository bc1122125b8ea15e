package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validStopped() *StoppedPulse {
	now := time.Now().UTC()
	return &StoppedPulse{
		Pulse: Pulse{
			UserID:     "u1",
			PulseID:    "p1",
			Intent:     "review the quarterly numbers",
			EnergyType: EnergyDeepWork,
			StartedAt:  now.Add(-30 * time.Minute),
		},
		StoppedAt:       now,
		DurationSeconds: 1800,
	}
}

func TestValidateStopped(t *testing.T) {
	assert.NoError(t, ValidateStopped(validStopped()))

	// Sub-second truncation between the stored timestamps and the integer
	// duration is tolerated.
	truncated := validStopped()
	truncated.StartedAt = truncated.StartedAt.Add(400 * time.Millisecond)
	assert.NoError(t, ValidateStopped(truncated))

	cases := []struct {
		name   string
		mutate func(*StoppedPulse)
	}{
		{"missing user", func(sp *StoppedPulse) { sp.UserID = "" }},
		{"missing pulse id", func(sp *StoppedPulse) { sp.PulseID = "" }},
		{"missing intent", func(sp *StoppedPulse) { sp.Intent = "" }},
		{"unknown energy type", func(sp *StoppedPulse) { sp.EnergyType = "gardening" }},
		{"zero duration", func(sp *StoppedPulse) { sp.DurationSeconds = 0 }},
		{"negative duration", func(sp *StoppedPulse) { sp.DurationSeconds = -5 }},
		{"stopped before started", func(sp *StoppedPulse) { sp.StoppedAt = sp.StartedAt.Add(-time.Minute) }},
		{"duration disagrees with timestamps", func(sp *StoppedPulse) { sp.DurationSeconds = 10 }},
		{"timestamp gap disagrees with duration", func(sp *StoppedPulse) { sp.StartedAt = sp.StoppedAt.Add(-2 * time.Hour) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sp := validStopped()
			tc.mutate(sp)
			err := ValidateStopped(sp)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestValidateEnrichment(t *testing.T) {
	ok := EnrichmentResult{Title: "t", Badge: "b", Source: SourceStandard}
	assert.NoError(t, ValidateEnrichment(&ok))

	cases := []struct {
		name string
		er   EnrichmentResult
	}{
		{"empty title", EnrichmentResult{Badge: "b", Source: SourceAI}},
		{"empty badge", EnrichmentResult{Title: "t", Source: SourceAI}},
		{"unknown source", EnrichmentResult{Title: "t", Badge: "b", Source: "oracle"}},
		{"negative cost", EnrichmentResult{Title: "t", Badge: "b", Source: SourceAI, CostUnits: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			er := tc.er
			assert.ErrorIs(t, ValidateEnrichment(&er), ErrValidation)
		})
	}
}

func TestInvertedTimestampOrdersNewestFirst(t *testing.T) {
	earlier := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	assert.Greater(t, InvertedTimestamp(earlier), InvertedTimestamp(later))
}
