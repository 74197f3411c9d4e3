package domain

// ─── Insights ───────────────────────────────────────────────────────────────

// Severity ranks insights; lower rank sorts first.
type Severity string

const (
	SeverityCritical    Severity = "critical"
	SeverityWarning     Severity = "warning"
	SeverityCelebration Severity = "celebration"
	SeverityInfo        Severity = "info"
)

// Rank returns the fixed ordering key: critical(0) < warning(1) < celebration(2) < info(3).
// Unknown severities sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityCelebration:
		return 2
	case SeverityInfo:
		return 3
	}
	return 4
}

// InsightDomain tags an insight for consumer-side filtering.
type InsightDomain string

const (
	DomainEnergy      InsightDomain = "energy"
	DomainQuests      InsightDomain = "quests"
	DomainHabits      InsightDomain = "habits"
	DomainVocab       InsightDomain = "vocab"
	DomainFocus       InsightDomain = "focus"
	DomainStreaks     InsightDomain = "streaks"
	DomainGoals       InsightDomain = "goals"
	DomainCrossDomain InsightDomain = "cross-domain"
)

// ValidDomain reports whether d is one of the known domain tags.
func ValidDomain(d InsightDomain) bool {
	switch d {
	case DomainEnergy, DomainQuests, DomainHabits, DomainVocab,
		DomainFocus, DomainStreaks, DomainGoals, DomainCrossDomain:
		return true
	}
	return false
}

// Insight is a single detected behavioural pattern.
type Insight struct {
	ID           string        `json:"id"`
	Icon         string        `json:"icon"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Severity     Severity      `json:"severity"`
	Domain       InsightDomain `json:"domain"`
	ActionLabel  string        `json:"action_label,omitempty"`
	ActionTarget string        `json:"action_target,omitempty"`
}

// ─── Snapshot ───────────────────────────────────────────────────────────────

// Snapshot is a compact, serializable projection of player state.
// It holds no insight data and is rebuilt for every synthesis request.
type Snapshot struct {
	Day               string             `json:"day"`
	Player            Player             `json:"player"`
	Today             TodaySummary       `json:"today"`
	QuestsCompleted7d int                `json:"quests_completed_7d"`
	Energy            []EnergyPoint      `json:"energy"`
	Habits            []HabitSummary     `json:"habits"`
	PendingQuests     map[Difficulty]int `json:"pending_quests"`
	Vocab             VocabSummary       `json:"vocab"`
	Focus             FocusSummary       `json:"focus"`
	ActiveGoals       int                `json:"active_goals"`
}

// TodaySummary counts today's activity.
type TodaySummary struct {
	QuestsCompleted int  `json:"quests_completed"`
	HabitsCompleted int  `json:"habits_completed"`
	FocusMinutes    int  `json:"focus_minutes"`
	Reflected       bool `json:"reflected"`
}

// EnergyPoint is one rated day in the rolling energy window.
type EnergyPoint struct {
	Day    string `json:"day"`
	Rating int    `json:"rating"`
}

// HabitSummary is a per-habit streak digest.
type HabitSummary struct {
	Name          string `json:"name"`
	Streak        int    `json:"streak"`
	DoneToday     bool   `json:"done_today"`
	Completions7d int    `json:"completions_7d"`
}

// VocabSummary aggregates vocabulary statistics.
type VocabSummary struct {
	Total       int     `json:"total"`
	Learning    int     `json:"learning"`
	Mastered    int     `json:"mastered"`
	DueToday    int     `json:"due_today"`
	AvgAccuracy float64 `json:"avg_accuracy"`
}

// FocusSummary totals focus sessions.
type FocusSummary struct {
	Sessions     int    `json:"sessions"`
	TotalMinutes int    `json:"total_minutes"`
	LastDay      string `json:"last_day,omitempty"`
}

// ─── Synthesis ──────────────────────────────────────────────────────────────

// Momentum is the provider's reading of the player's trajectory.
type Momentum string

const (
	MomentumRising    Momentum = "rising"
	MomentumSteady    Momentum = "steady"
	MomentumDeclining Momentum = "declining"
)

// AISynthesis is the structured output of the external synthesis provider.
// It is never produced locally.
type AISynthesis struct {
	Summary                string   `json:"summary"`
	BurnoutRisk            float64  `json:"burnoutRisk"`
	Momentum               Momentum `json:"momentum"`
	Suggestion             string   `json:"suggestion"`
	CelebrationOpportunity string   `json:"celebrationOpportunity,omitempty"`
}

// CachedSynthesis is the persisted most-recent synthesis.
type CachedSynthesis struct {
	Data      AISynthesis `json:"data"`
	Day       string      `json:"day"`
	Timestamp int64       `json:"timestamp"` // epoch milliseconds
}

// PulseHistoryEntry is one day of synthesis plus the snapshot it was built from.
type PulseHistoryEntry struct {
	Day       string      `json:"day"`
	Synthesis AISynthesis `json:"synthesis"`
	Snapshot  Snapshot    `json:"snapshot"`
}

// SynthesisRequest is what the engine sends to a provider.
type SynthesisRequest struct {
	Snapshot Snapshot            `json:"snapshot"`
	History  []PulseHistoryEntry `json:"history"`
}

// ─── Trigger Events ─────────────────────────────────────────────────────────

// PulseEvent names a state transition that requests a synthesis refresh.
type PulseEvent string

const (
	EventBatchComplete       PulseEvent = "batch-complete"
	EventReflectionSubmitted PulseEvent = "reflection-submitted"
	EventStreakBroken        PulseEvent = "streak-broken"
	EventManual              PulseEvent = "manual"
)
