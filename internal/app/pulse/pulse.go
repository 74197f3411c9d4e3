package pulse

import (
	"log"

	"github.com/nexus-quest/pulse/internal/domain"
	"github.com/nexus-quest/pulse/internal/infra/metrics"
)

// Pulse is the consumer-facing read model: live insights, the cached
// synthesis, a loading flag and the manual refresh entry point.
type Pulse struct {
	orch  *Orchestrator
	state func() domain.State
}

// New builds the engine over a provider, a KV store and a state source.
func New(provider domain.SynthesisProvider, kv domain.KVStore, state func() domain.State, cfg Config) *Pulse {
	return &Pulse{
		orch:  NewOrchestrator(provider, kv, state, cfg),
		state: state,
	}
}

// Orchestrator exposes the underlying orchestrator.
func (p *Pulse) Orchestrator() *Orchestrator { return p.orch }

// Insights evaluates the rule bank against the current state, optionally
// filtered to one domain ("" = all).
func (p *Pulse) Insights(d domain.InsightDomain) []domain.Insight {
	return FilterDomain(Evaluate(p.state(), p.orch.Now()), d)
}

// Synthesis returns today's cached synthesis, if any.
func (p *Pulse) Synthesis() (domain.AISynthesis, bool) {
	return p.orch.Cache().GetCached()
}

// Loading reports whether a synthesis call is in flight.
func (p *Pulse) Loading() bool { return p.orch.Loading() }

// RequestRefresh is the manual, cooldown-bypassing refresh.
func (p *Pulse) RequestRefresh() {
	metrics.Events.WithLabelValues(string(domain.EventManual)).Inc()
	p.orch.RequestRefresh(domain.EventManual, true)
}

// History returns the most recent limit history entries, oldest first.
func (p *Pulse) History(limit int) []domain.PulseHistoryEntry {
	return p.orch.History().Read(limit)
}

// Status is a point-in-time view of the refresh machinery.
type Status struct {
	Loading     bool   `json:"loading"`
	CoolingDown bool   `json:"cooling_down"`
	LastRunID   string `json:"last_run_id,omitempty"`
}

// Status reports loading, cooldown and the last run id.
func (p *Pulse) Status() Status {
	return Status{
		Loading:     p.orch.Loading(),
		CoolingDown: p.orch.Cache().IsCoolingDown(),
		LastRunID:   p.orch.LastRunID(),
	}
}

// OnStateChange is the state-store listener: it refreshes the insight gauge
// and requests a cooldown-gated synthesis for the first detected event.
func (p *Pulse) OnStateChange(prev, curr domain.State) {
	counts := map[domain.Severity]int{
		domain.SeverityCritical:    0,
		domain.SeverityWarning:     0,
		domain.SeverityCelebration: 0,
		domain.SeverityInfo:        0,
	}
	for _, in := range Evaluate(curr, p.orch.Now()) {
		counts[in.Severity]++
	}
	for sev, n := range counts {
		metrics.InsightsCurrent.WithLabelValues(string(sev)).Set(float64(n))
	}

	events := DetectEvents(prev, curr)
	if len(events) == 0 {
		return
	}
	for _, e := range events {
		metrics.Events.WithLabelValues(string(e)).Inc()
	}
	log.Printf("[pulse] state change raised %v", events)
	p.orch.RequestRefresh(events[0], Forced(events[0]))
}

// Close stops background work.
func (p *Pulse) Close() { p.orch.Close() }
