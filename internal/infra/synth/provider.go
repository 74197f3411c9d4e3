// Package synth implements the external synthesis providers: a Gemini client,
// an OpenAI-compatible HTTP client, and a disabled provider that always
// reports unavailability. All of them share one prompt and one strict
// response decoder.
package synth

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nexus-quest/pulse/internal/domain"
)

// Provider names accepted by New.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Config selects and configures a provider.
type Config struct {
	Provider string // gemini | openai | none
	Model    string
	BaseURL  string // openai only
	APIKey   string
}

// Default models per provider.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultOpenAIBase  = "https://api.openai.com"
)

// New builds the provider named by cfg.Provider. An empty name selects none.
func New(ctx context.Context, cfg Config) (domain.SynthesisProvider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case ProviderGemini:
		return NewGemini(ctx, cfg.APIKey, cfg.Model)
	case ProviderOpenAI:
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	case ProviderNone, "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownProvider, cfg.Provider)
	}
}

// APIKeyFromEnv reads the named environment variable, falling back to the
// provider's conventional variable when name is empty.
func APIKeyFromEnv(provider, name string) string {
	if name != "" {
		return os.Getenv(name)
	}
	switch strings.ToLower(provider) {
	case ProviderGemini:
		if k := os.Getenv("GEMINI_API_KEY"); k != "" {
			return k
		}
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}
