package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the application layer depends on them.

// SynthesisProvider is the external service that turns a snapshot and recent
// history into an AISynthesis. Implemented by infra/synth.
type SynthesisProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Synthesize performs one remote call. It must honour ctx cancellation.
	Synthesize(ctx context.Context, req SynthesisRequest) (AISynthesis, error)
}

// KVStore is the key→bytes persistence port owned by the pulse subsystem.
// Implemented by infra/sqlite.DB and infra/kvcache.Store.
type KVStore interface {
	// Get returns the stored value, or nil with no error when the key is absent.
	Get(key string) ([]byte, error)

	// Set overwrites the value for key.
	Set(key string, value []byte) error
}

// BatchKVStore is implemented by stores that can write several keys atomically.
type BatchKVStore interface {
	KVStore
	SetBatch(pairs map[string][]byte) error
}
