package synth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nexus-quest/pulse/internal/domain"
)

// wireSynthesis mirrors the provider payload with pointer fields so missing
// keys can be told apart from zero values.
type wireSynthesis struct {
	Summary                *string  `json:"summary"`
	BurnoutRisk            *float64 `json:"burnoutRisk"`
	Momentum               *string  `json:"momentum"`
	Suggestion             *string  `json:"suggestion"`
	CelebrationOpportunity *string  `json:"celebrationOpportunity"`
}

// Decode validates a raw provider payload against the synthesis schema.
// Markdown code fences around the object are tolerated. Every violation
// wraps domain.ErrMalformedSynthesis.
func Decode(raw string) (domain.AISynthesis, error) {
	body := stripFences(raw)
	if body == "" {
		return domain.AISynthesis{}, fmt.Errorf("%w: empty payload", domain.ErrMalformedSynthesis)
	}

	var w wireSynthesis
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return domain.AISynthesis{}, fmt.Errorf("%w: %v", domain.ErrMalformedSynthesis, err)
	}

	switch {
	case w.Summary == nil || strings.TrimSpace(*w.Summary) == "":
		return domain.AISynthesis{}, fmt.Errorf("%w: summary is required", domain.ErrMalformedSynthesis)
	case w.Suggestion == nil || strings.TrimSpace(*w.Suggestion) == "":
		return domain.AISynthesis{}, fmt.Errorf("%w: suggestion is required", domain.ErrMalformedSynthesis)
	case w.Momentum == nil:
		return domain.AISynthesis{}, fmt.Errorf("%w: momentum is required", domain.ErrMalformedSynthesis)
	case w.BurnoutRisk == nil:
		return domain.AISynthesis{}, fmt.Errorf("%w: burnoutRisk is required", domain.ErrMalformedSynthesis)
	}

	m := domain.Momentum(strings.ToLower(strings.TrimSpace(*w.Momentum)))
	switch m {
	case domain.MomentumRising, domain.MomentumSteady, domain.MomentumDeclining:
	default:
		return domain.AISynthesis{}, fmt.Errorf("%w: momentum %q", domain.ErrMalformedSynthesis, *w.Momentum)
	}

	risk := *w.BurnoutRisk
	if risk < 0 || risk > 1 {
		return domain.AISynthesis{}, fmt.Errorf("%w: burnoutRisk %v outside [0,1]", domain.ErrMalformedSynthesis, risk)
	}

	out := domain.AISynthesis{
		Summary:     strings.TrimSpace(*w.Summary),
		BurnoutRisk: risk,
		Momentum:    m,
		Suggestion:  strings.TrimSpace(*w.Suggestion),
	}
	if w.CelebrationOpportunity != nil {
		out.CelebrationOpportunity = strings.TrimSpace(*w.CelebrationOpportunity)
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:] // drop the language tag line
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
