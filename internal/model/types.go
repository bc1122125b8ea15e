package model

import (
	"math"
	"time"
)

// EnergyType categorizes what kind of effort a pulse represents.
type EnergyType string

const (
	EnergyCreation    EnergyType = "creation"
	EnergyDeepWork    EnergyType = "deep_work"
	EnergyLearning    EnergyType = "learning"
	EnergyConnection  EnergyType = "connection"
	EnergyMaintenance EnergyType = "maintenance"
	EnergyRecovery    EnergyType = "recovery"
)

// KnownEnergyTypes enumerates every accepted energy type.
var KnownEnergyTypes = []EnergyType{
	EnergyCreation, EnergyDeepWork, EnergyLearning,
	EnergyConnection, EnergyMaintenance, EnergyRecovery,
}

// Valid reports whether e is one of the known energy types.
func (e EnergyType) Valid() bool {
	for _, k := range KnownEnergyTypes {
		if e == k {
			return true
		}
	}
	return false
}

// Pulse is a tracked activity session. Identity is (UserID, PulseID).
type Pulse struct {
	UserID     string     `json:"userId" validate:"required"`
	PulseID    string     `json:"pulseId" validate:"required"`
	Intent     string     `json:"intent" validate:"required"`
	EnergyType EnergyType `json:"energyType" validate:"required"`
	StartedAt  time.Time  `json:"startedAt" validate:"required"`
}

// StoppedPulse is a pulse the user has ended. It is the pipeline's input.
type StoppedPulse struct {
	Pulse
	StoppedAt       time.Time `json:"stoppedAt" validate:"required"`
	DurationSeconds int64     `json:"durationSeconds" validate:"required,gt=0"`
	Reflection      string    `json:"reflection"`
	Emotion         string    `json:"emotion"`
}

// EnrichmentSource tags which path produced an enrichment.
type EnrichmentSource string

const (
	SourceStandard EnrichmentSource = "standard"
	SourceAI       EnrichmentSource = "ai"
)

// Insight is a structured annotation produced by the AI path.
type Insight struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// EnrichmentResult carries the title and badge attached to a pulse at
// ingestion. It is never partially populated: Title and Badge are always
// non-empty, Insights and CostUnits are set only on the AI path.
type EnrichmentResult struct {
	Title     string           `json:"title"`
	Badge     string           `json:"badge"`
	Source    EnrichmentSource `json:"source"`
	Insights  []Insight        `json:"insights,omitempty"`
	CostUnits int64            `json:"costUnits,omitempty"`
}

// IngestedPulse is the terminal record. At most one exists per
// (UserID, PulseID); the first successful write wins.
type IngestedPulse struct {
	StoppedPulse
	Enrichment        EnrichmentResult `json:"enrichment"`
	InvertedTimestamp int64            `json:"invertedTimestamp"`
	IngestedAt        time.Time        `json:"ingestedAt"`
}

// InvertedTimestamp returns the reverse-chronological sort key for a stop time.
func InvertedTimestamp(stoppedAt time.Time) int64 {
	return math.MaxInt64 - stoppedAt.UnixNano()
}

// Budget bounds what the AI enricher may spend on a single pulse.
type Budget struct {
	MaxLatency   time.Duration `json:"maxLatency"`
	MaxCostUnits int64         `json:"maxCostUnits"`
}

// ClaimState tracks the per-pulse enrichment attempt marker.
type ClaimState string

const (
	// ClaimAcquired means this caller holds the marker and may invoke the model.
	ClaimAcquired ClaimState = "acquired"
	// ClaimHeld means a previous delivery already attempted enrichment but
	// recorded no result; the caller must not invoke the model again.
	ClaimHeld ClaimState = "held"
	// ClaimResolved means a previous delivery recorded a result.
	ClaimResolved ClaimState = "resolved"
)

// ClaimResult is the outcome of claiming the enrichment marker for a pulse.
type ClaimResult struct {
	State  ClaimState
	Result *EnrichmentResult // set when State == ClaimResolved
}

// EnrichmentMarker is the stored attempt marker for billing idempotency.
type EnrichmentMarker struct {
	UserID      string            `json:"userId"`
	PulseID     string            `json:"pulseId"`
	AttemptedAt time.Time         `json:"attemptedAt"`
	Result      *EnrichmentResult `json:"result,omitempty"`
}
