package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Synthesis provider errors
	ErrProviderUnavailable = errors.New("synthesis provider unavailable")
	ErrMalformedSynthesis  = errors.New("synthesis response failed validation")
	ErrSynthesisTimeout    = errors.New("synthesis request timed out")
	ErrUnknownProvider     = errors.New("unknown synthesis provider")

	// State errors
	ErrInvalidState = errors.New("invalid player state")
)
