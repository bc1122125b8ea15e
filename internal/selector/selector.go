// Package selector decides whether a stopped pulse deserves generative
// enrichment. Scoring is pure and deterministic so duplicate deliveries of
// the same stop event always reach the same verdict.
package selector

import (
	"time"

	"github.com/pulsekeep/pulsekeep/internal/model"
)

// Decision is the selector verdict plus the spend ceiling for the AI path.
type Decision struct {
	Worthy bool
	Score  float64
	Budget model.Budget
}

// Policy carries the scoring weights and budget ceilings. The zero value is
// not usable; construct with DefaultPolicy and override as needed.
type Policy struct {
	// Threshold separates worthy from not-worthy. A score equal to the
	// threshold is not worthy.
	Threshold float64

	// DurationCap is the session length at which the duration signal saturates.
	DurationCap time.Duration
	// DurationWeight scales the normalized duration signal.
	DurationWeight float64

	// ReflectionPresenceWeight is granted for any non-empty reflection.
	ReflectionPresenceWeight float64
	// ReflectionLengthWeight scales reflection length, saturating at
	// ReflectionLengthCap bytes.
	ReflectionLengthWeight float64
	ReflectionLengthCap    int

	EnergyWeights  map[model.EnergyType]float64
	EmotionWeights map[string]float64

	// Budget ceilings handed to the AI enricher.
	MaxLatency     time.Duration
	MaxLatencyLong time.Duration
	// LongSessionMin is the duration from which the long latency budget applies.
	LongSessionMin time.Duration
	MaxCostUnits   int64
}

// DefaultPolicy returns the production scoring policy.
func DefaultPolicy() Policy {
	return Policy{
		Threshold: 0.55,

		DurationCap:    2 * time.Hour,
		DurationWeight: 0.30,

		ReflectionPresenceWeight: 0.25,
		ReflectionLengthWeight:   0.15,
		ReflectionLengthCap:      280,

		EnergyWeights: map[model.EnergyType]float64{
			model.EnergyCreation:    0.20,
			model.EnergyDeepWork:    0.15,
			model.EnergyLearning:    0.12,
			model.EnergyConnection:  0.08,
			model.EnergyRecovery:    0.05,
			model.EnergyMaintenance: 0.02,
		},
		EmotionWeights: map[string]float64{
			"accomplished": 0.10,
			"energized":    0.08,
			"focused":      0.08,
			"proud":        0.08,
			"calm":         0.05,
		},

		MaxLatency:     8 * time.Second,
		MaxLatencyLong: 12 * time.Second,
		LongSessionMin: 45 * time.Minute,
		MaxCostUnits:   50,
	}
}

// Selector scores stopped pulses against a fixed policy.
type Selector struct {
	policy Policy
}

// New returns a Selector using the given policy.
func New(policy Policy) *Selector {
	return &Selector{policy: policy}
}

// Select scores sp and returns the worthiness verdict and budget. It makes
// no external calls and holds no state; identical input yields an identical
// decision.
func (s *Selector) Select(sp *model.StoppedPulse) Decision {
	p := s.policy
	score := 0.0

	dur := time.Duration(sp.DurationSeconds) * time.Second
	norm := float64(dur) / float64(p.DurationCap)
	if norm > 1 {
		norm = 1
	}
	score += norm * p.DurationWeight

	if sp.Reflection != "" {
		score += p.ReflectionPresenceWeight
		ln := float64(len(sp.Reflection)) / float64(p.ReflectionLengthCap)
		if ln > 1 {
			ln = 1
		}
		score += ln * p.ReflectionLengthWeight
	}

	score += p.EnergyWeights[sp.EnergyType]
	score += p.EmotionWeights[sp.Emotion]

	budget := model.Budget{MaxLatency: p.MaxLatency, MaxCostUnits: p.MaxCostUnits}
	if dur >= p.LongSessionMin {
		budget.MaxLatency = p.MaxLatencyLong
	}

	// Ties resolve to not worthy: avoids spending on borderline pulses.
	return Decision{Worthy: score > p.Threshold, Score: score, Budget: budget}
}
