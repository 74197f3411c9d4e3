package synth

import (
	"context"

	"github.com/nexus-quest/pulse/internal/domain"
)

// Disabled is the provider used when synthesis is switched off. The engine
// keeps serving local insights.
type Disabled struct{}

// Name implements domain.SynthesisProvider.
func (Disabled) Name() string { return ProviderNone }

// Synthesize always fails with domain.ErrProviderUnavailable.
func (Disabled) Synthesize(context.Context, domain.SynthesisRequest) (domain.AISynthesis, error) {
	return domain.AISynthesis{}, domain.ErrProviderUnavailable
}
