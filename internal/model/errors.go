package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrDuplicate  = errors.New("duplicate")

	// ErrBudgetExhausted signals the AI latency budget expired before a
	// usable response arrived.
	ErrBudgetExhausted = errors.New("enrichment budget exhausted")

	// ErrModelUnavailable signals the generative model cannot currently be
	// reached (breaker open, throttled, or down).
	ErrModelUnavailable = errors.New("model unavailable")
)
