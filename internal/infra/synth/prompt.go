package synth

import (
	"encoding/json"
	"fmt"

	"github.com/nexus-quest/pulse/internal/domain"
)

// SystemPrompt instructs the model on its role and the exact output shape.
const SystemPrompt = `You are the Nexus Pulse coach inside a gamified productivity app.
You receive a JSON snapshot of the player's recent activity and up to seven
prior daily syntheses. Read the trends across quests, habits, energy,
vocabulary, focus and goals, then answer with ONE JSON object and nothing else:

{
  "summary": "two or three sentences on how the player is doing",
  "burnoutRisk": 0.0,
  "momentum": "rising" | "steady" | "declining",
  "suggestion": "one concrete next step for today",
  "celebrationOpportunity": "optional, only when something deserves praise"
}

burnoutRisk is a number between 0 and 1. Be warm and specific. Do not invent
data that is not in the snapshot.`

// promptInput is the JSON body sent alongside the system prompt.
type promptInput struct {
	Snapshot domain.Snapshot            `json:"snapshot"`
	History  []domain.PulseHistoryEntry `json:"history"`
}

// BuildInput renders the request as indented JSON.
func BuildInput(req domain.SynthesisRequest) (string, error) {
	hist := req.History
	if hist == nil {
		hist = []domain.PulseHistoryEntry{}
	}
	in, err := json.MarshalIndent(promptInput{Snapshot: req.Snapshot, History: hist}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt input: %w", err)
	}
	return string(in), nil
}

// BuildPrompt concatenates the system prompt and the input block, for
// providers that take a single text part.
func BuildPrompt(req domain.SynthesisRequest) (string, error) {
	in, err := BuildInput(req)
	if err != nil {
		return "", err
	}
	return SystemPrompt + "\n\n[INPUT JSON]\n" + in, nil
}
