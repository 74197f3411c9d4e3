package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nexus-quest/pulse/internal/domain"
)

// ─── OpenAI-compatible provider (/v1/chat/completions) ──────────────────────

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenAI talks to any OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAI creates an OpenAI-compatible provider. The context deadline of
// each call bounds the request; the client itself has a generous ceiling.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	if baseURL == "" {
		baseURL = DefaultOpenAIBase
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Name implements domain.SynthesisProvider.
func (o *OpenAI) Name() string { return "openai:" + o.model }

// Synthesize implements domain.SynthesisProvider.
func (o *OpenAI) Synthesize(ctx context.Context, req domain.SynthesisRequest) (domain.AISynthesis, error) {
	input, err := BuildInput(req)
	if err != nil {
		return domain.AISynthesis{}, err
	}
	temp := float32(0.4)
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: input},
		},
		Temperature:    &temp,
		ResponseFormat: &responseFormat{Type: "json_object"},
	})
	if err != nil {
		return domain.AISynthesis{}, fmt.Errorf("encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.AISynthesis{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return domain.AISynthesis{}, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.AISynthesis{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.AISynthesis{}, fmt.Errorf("%w: status %d: %s",
			domain.ErrProviderUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return domain.AISynthesis{}, fmt.Errorf("%w: %v", domain.ErrMalformedSynthesis, err)
	}
	if len(cr.Choices) == 0 {
		return domain.AISynthesis{}, fmt.Errorf("%w: no choices", domain.ErrMalformedSynthesis)
	}
	return Decode(cr.Choices[0].Message.Content)
}
