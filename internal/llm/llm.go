// Package llm abstracts the external generative model used for AI
// enrichment. Providers are opaque network dependencies; callers bound them
// with contexts and treat every failure as a fallback signal, never a
// pipeline error.
package llm

import (
	"context"
	"errors"
)

// Request carries the pulse fields the model needs to produce an enrichment.
type Request struct {
	Intent          string `json:"intent"`
	Reflection      string `json:"reflection"`
	Emotion         string `json:"emotion"`
	EnergyType      string `json:"energyType"`
	DurationSeconds int64  `json:"durationSeconds"`
	MaxCostUnits    int64  `json:"maxCostUnits"`
}

// InsightPayload is a single structured annotation in a model response.
type InsightPayload struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

// Response is the model's enrichment proposal.
type Response struct {
	Title     string           `json:"title"`
	Badge     string           `json:"badge"`
	Insights  []InsightPayload `json:"insights"`
	CostUnits int64            `json:"costUnits"`
}

// Model is implemented by each provider.
type Model interface {
	// Generate requests an enrichment. Implementations honor ctx deadlines
	// and classify failures via the sentinel errors below.
	Generate(ctx context.Context, req Request) (*Response, error)
	// Name identifies the provider and model for logging.
	Name() string
	// Close releases provider resources.
	Close() error
}

var (
	// ErrThrottled marks rate-limit rejections. Transient.
	ErrThrottled = errors.New("model throttled")
	// ErrUnavailable marks 5xx-equivalent provider failures. Transient.
	ErrUnavailable = errors.New("model unavailable")
	// ErrMalformed marks unusable responses: unparseable, or missing the
	// required title/badge. Not retried.
	ErrMalformed = errors.New("malformed model response")
	// ErrBadRequest marks request/config errors the provider rejected.
	// Not retried.
	ErrBadRequest = errors.New("model rejected request")
)

// IsTransient reports whether err is worth retrying within the budget.
// Deadline expiry counts as transient; the budget context stops the retry
// loop once it is truly spent.
func IsTransient(err error) bool {
	return errors.Is(err, ErrThrottled) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
