package synth

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"

	"github.com/nexus-quest/pulse/internal/domain"
)

// Gemini calls the Gemini API through the official genai client and asks
// for an application/json response.
type Gemini struct {
	cli   *genai.Client
	model string
}

// NewGemini creates a Gemini provider. An empty apiKey lets the client fall
// back to GEMINI_API_KEY / GOOGLE_API_KEY from the environment.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", domain.ErrProviderUnavailable, err)
	}
	return &Gemini{cli: cli, model: model}, nil
}

// Name implements domain.SynthesisProvider.
func (g *Gemini) Name() string { return "gemini:" + g.model }

// Synthesize implements domain.SynthesisProvider.
func (g *Gemini) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.AISynthesis, error) {
	full, err := BuildPrompt(req)
	if err != nil {
		return domain.AISynthesis{}, err
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return domain.AISynthesis{}, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return domain.AISynthesis{}, fmt.Errorf("%w: gemini returned no candidates", domain.ErrMalformedSynthesis)
	}
	return Decode(resp.Candidates[0].Content.Parts[0].Text)
}
