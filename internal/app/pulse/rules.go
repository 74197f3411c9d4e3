// Package pulse implements the Nexus Pulse insight engine.
// Local rules turn the player-state aggregate into ranked insights on every
// change; an orchestrator layers a rate-limited, cached AI synthesis on top.
// Design rule: never emit an insight from data too sparse to support it.
package pulse

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nexus-quest/pulse/internal/domain"
)

// Rule thresholds.
const (
	EnergyWindowDays      = 5
	EnergyMinRatings      = 3
	EnergyTrendThreshold  = 0.4
	QuestSpreeMin         = 5
	HabitRiskMinStreak    = 3
	HabitCriticalStreak   = 7
	HabitDeclineRate      = 0.30
	VocabMinReviews       = 3
	VocabOverconfident    = 4
	VocabAccuracyFloor    = 0.60
	VocabOverconfidentMin = 2
	VocabBacklogInfo      = 10
	VocabBacklogWarning   = 20
	FocusAbsenceDays      = 3
	VitalityCriticalRatio = 0.25
	AvoidanceHardMin      = 3
	AvoidanceEasyMin      = 5
	AvoidanceWindowDays   = 3
	GoalDeadlineDays      = 3
)

// StreakMilestones are the streak lengths that earn a celebration.
var StreakMilestones = []int{7, 14, 30, 50, 100, 365}

// Rule examines a state and emits at most one insight.
type Rule struct {
	Name  string
	Check func(v view) (domain.Insight, bool)
}

// DefaultRules is the fixed rule bank in emission order. Ties in severity
// keep this order.
var DefaultRules = []Rule{
	{Name: "energy-trend", Check: energyTrend},
	{Name: "quest-stall", Check: questStall},
	{Name: "quest-spree", Check: questSpree},
	{Name: "habit-streak-risk", Check: habitStreakRisk},
	{Name: "habit-decline", Check: habitDecline},
	{Name: "vocab-overconfidence", Check: vocabOverconfidence},
	{Name: "vocab-backlog", Check: vocabBacklog},
	{Name: "focus-absence", Check: focusAbsence},
	{Name: "streak-milestone", Check: streakMilestone},
	{Name: "vitality-critical", Check: vitalityCritical},
	{Name: "difficulty-avoidance", Check: difficultyAvoidance},
	{Name: "goal-deadline", Check: goalDeadline},
	{Name: "burnout-signal", Check: burnoutSignal},
}

// Evaluate runs the default rule bank. It is pure: no I/O, no clock reads.
func Evaluate(s domain.State, now time.Time) []domain.Insight {
	return EvaluateRules(DefaultRules, s, now)
}

// EvaluateRules runs the given rules, drops duplicate ids (first wins) and
// stable-sorts by severity rank.
func EvaluateRules(rules []Rule, s domain.State, now time.Time) []domain.Insight {
	v := newView(s, now)
	seen := make(map[string]bool, len(rules))
	out := make([]domain.Insight, 0, len(rules))
	for _, r := range rules {
		in, ok := runRule(r, v)
		if !ok || seen[in.ID] {
			continue
		}
		seen[in.ID] = true
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})
	return out
}

// FilterDomain returns the insights tagged with d. An empty d returns all.
func FilterDomain(insights []domain.Insight, d domain.InsightDomain) []domain.Insight {
	if d == "" {
		return insights
	}
	out := make([]domain.Insight, 0, len(insights))
	for _, in := range insights {
		if in.Domain == d {
			out = append(out, in)
		}
	}
	return out
}

// runRule treats a panicking rule as "no insight".
func runRule(r Rule, v view) (in domain.Insight, ok bool) {
	defer func() {
		if recover() != nil {
			in, ok = domain.Insight{}, false
		}
	}()
	return r.Check(v)
}

// ─── Energy ─────────────────────────────────────────────────────────────────

// energyDelta returns mean(second half) - mean(first half) of the recent
// ratings and the latest rating. ok is false below EnergyMinRatings.
func energyDelta(v view) (delta float64, latest int, ok bool) {
	points := v.energyWindow(EnergyWindowDays)
	if len(points) < EnergyMinRatings {
		return 0, 0, false
	}
	half := len(points) / 2
	first, second := points[:half], points[half:]
	return mean(second) - mean(first), points[len(points)-1].Rating, true
}

func mean(points []domain.EnergyPoint) float64 {
	sum := 0
	for _, p := range points {
		sum += p.Rating
	}
	return float64(sum) / float64(len(points))
}

func energyTrend(v view) (domain.Insight, bool) {
	delta, latest, ok := energyDelta(v)
	if !ok {
		return domain.Insight{}, false
	}
	switch {
	case delta < -EnergyTrendThreshold:
		return domain.Insight{
			ID:           "energy-declining",
			Icon:         "🔋",
			Title:        "Energy is trending down",
			Description:  fmt.Sprintf("Your energy ratings dropped by %.1f points over the last few days. Consider a lighter load.", -delta),
			Severity:     domain.SeverityWarning,
			Domain:       domain.DomainEnergy,
			ActionLabel:  "Log a reflection",
			ActionTarget: "/reflect",
		}, true
	case delta > EnergyTrendThreshold && latest >= 4:
		return domain.Insight{
			ID:          "energy-rising",
			Icon:        "⚡",
			Title:       "Energy is climbing",
			Description: fmt.Sprintf("Your energy is up %.1f points and today is rated %d/5. Good day for a hard quest.", delta, latest),
			Severity:    domain.SeverityCelebration,
			Domain:      domain.DomainEnergy,
		}, true
	}
	return domain.Insight{}, false
}

// ─── Quests ─────────────────────────────────────────────────────────────────

func stalled(v view) bool {
	return v.completedOn(v.today) == 0 &&
		v.completedOn(v.daysAgo(1)) == 0 &&
		v.completedOn(v.daysAgo(2)) >= 1
}

func questStall(v view) (domain.Insight, bool) {
	if !stalled(v) {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "quest-stall",
		Icon:         "🧭",
		Title:        "Quest momentum stalled",
		Description:  "No quests completed today or yesterday. Pick one small quest to restart the chain.",
		Severity:     domain.SeverityWarning,
		Domain:       domain.DomainQuests,
		ActionLabel:  "Open quests",
		ActionTarget: "/quests",
	}, true
}

func questSpree(v view) (domain.Insight, bool) {
	n := v.completedOn(v.today)
	if n < QuestSpreeMin {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:          "quest-spree",
		Icon:        "🔥",
		Title:       "Quest spree!",
		Description: fmt.Sprintf("%d quests completed today.", n),
		Severity:    domain.SeverityCelebration,
		Domain:      domain.DomainQuests,
	}, true
}

// ─── Habits ─────────────────────────────────────────────────────────────────

func habitStreakRisk(v view) (domain.Insight, bool) {
	var names []string
	severity := domain.SeverityWarning
	for _, h := range v.s.Habits {
		if h.Streak < HabitRiskMinStreak || h.DoneOn(v.today) {
			continue
		}
		names = append(names, h.Name)
		if h.Streak >= HabitCriticalStreak {
			severity = domain.SeverityCritical
		}
	}
	if len(names) == 0 {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "habit-streak-risk",
		Icon:         "⏳",
		Title:        "Habit streaks at risk",
		Description:  "Not done yet today: " + listNames(names, 3) + ".",
		Severity:     severity,
		Domain:       domain.DomainHabits,
		ActionLabel:  "Check in",
		ActionTarget: "/habits",
	}, true
}

// listNames joins up to limit names and appends an overflow count.
func listNames(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:limit], ", "), len(names)-limit)
}

func habitDecline(v view) (domain.Insight, bool) {
	if len(v.s.Habits) == 0 {
		return domain.Insight{}, false
	}
	week, fortnight := v.habitRate(7), v.habitRate(14)
	if week >= HabitDeclineRate || week >= fortnight {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "habit-decline",
		Icon:         "📉",
		Title:        "Habit completion is slipping",
		Description:  fmt.Sprintf("Only %.0f%% of habits done this week, down from %.0f%% over two weeks.", week*100, fortnight*100),
		Severity:     domain.SeverityWarning,
		Domain:       domain.DomainHabits,
		ActionLabel:  "Review habits",
		ActionTarget: "/habits",
	}, true
}

// ─── Vocabulary ─────────────────────────────────────────────────────────────

func vocabOverconfidence(v view) (domain.Insight, bool) {
	n := 0
	for _, w := range v.s.Words {
		if w.TimesReviewed >= VocabMinReviews && w.Confidence >= VocabOverconfident && w.Accuracy() < VocabAccuracyFloor {
			n++
		}
	}
	if n < VocabOverconfidentMin {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "vocab-overconfidence",
		Icon:         "🎯",
		Title:        "Confidence outpaces recall",
		Description:  fmt.Sprintf("%d words feel familiar but are answered correctly less than %.0f%% of the time.", n, VocabAccuracyFloor*100),
		Severity:     domain.SeverityWarning,
		Domain:       domain.DomainVocab,
		ActionLabel:  "Drill weak words",
		ActionTarget: "/vocab",
	}, true
}

func vocabBacklog(v view) (domain.Insight, bool) {
	due := v.dueToday()
	if due < VocabBacklogInfo {
		return domain.Insight{}, false
	}
	severity := domain.SeverityInfo
	if due >= VocabBacklogWarning {
		severity = domain.SeverityWarning
	}
	return domain.Insight{
		ID:           "vocab-backlog",
		Icon:         "📚",
		Title:        "Review backlog",
		Description:  fmt.Sprintf("%d words are due for review.", due),
		Severity:     severity,
		Domain:       domain.DomainVocab,
		ActionLabel:  "Start review",
		ActionTarget: "/vocab/review",
	}, true
}

// ─── Focus ──────────────────────────────────────────────────────────────────

func focusAbsence(v view) (domain.Insight, bool) {
	last, ok := v.lastFocusDay()
	if !ok {
		return domain.Insight{}, false
	}
	gap := daysBetween(last, v.today)
	if gap < FocusAbsenceDays {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "focus-absence",
		Icon:         "🧘",
		Title:        "Time for a focus session",
		Description:  fmt.Sprintf("Your last focus session was %d days ago.", gap),
		Severity:     domain.SeverityInfo,
		Domain:       domain.DomainFocus,
		ActionLabel:  "Start focus",
		ActionTarget: "/focus",
	}, true
}

// ─── Streaks & Vitality ─────────────────────────────────────────────────────

func streakMilestone(v view) (domain.Insight, bool) {
	streak := v.s.Player.Streak
	for _, m := range StreakMilestones {
		if streak != m {
			continue
		}
		return domain.Insight{
			ID:          fmt.Sprintf("streak-milestone-%d", m),
			Icon:        "🏆",
			Title:       fmt.Sprintf("%d-day streak!", m),
			Description: fmt.Sprintf("You have shown up %d days in a row.", m),
			Severity:    domain.SeverityCelebration,
			Domain:      domain.DomainStreaks,
		}, true
	}
	return domain.Insight{}, false
}

func vitalityCritical(v view) (domain.Insight, bool) {
	p := v.s.Player
	if p.MaxVitality <= 0 || p.Vitality <= 0 {
		return domain.Insight{}, false
	}
	if float64(p.Vitality) >= float64(p.MaxVitality)*VitalityCriticalRatio {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "vitality-critical",
		Icon:         "❤️",
		Title:        "Vitality critically low",
		Description:  fmt.Sprintf("Vitality is at %d/%d. Rest or complete a restorative habit.", p.Vitality, p.MaxVitality),
		Severity:     domain.SeverityCritical,
		Domain:       domain.DomainCrossDomain,
		ActionLabel:  "Recover",
		ActionTarget: "/habits",
	}, true
}

// ─── Difficulty & Goals ─────────────────────────────────────────────────────

func difficultyAvoidance(v view) (domain.Insight, bool) {
	hard := 0
	for _, t := range v.s.Tasks {
		if !t.Completed && (t.Difficulty == domain.DifficultyHard || t.Difficulty == domain.DifficultyEpic) {
			hard++
		}
	}
	if hard < AvoidanceHardMin {
		return domain.Insight{}, false
	}
	easy := v.completedSince(AvoidanceWindowDays, domain.DifficultyEasy)
	if easy < AvoidanceEasyMin {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "difficulty-avoidance",
		Icon:         "🪨",
		Title:        "Hard quests are piling up",
		Description:  fmt.Sprintf("%d hard or epic quests are waiting while %d easy ones were finished recently.", hard, easy),
		Severity:     domain.SeverityInfo,
		Domain:       domain.DomainQuests,
		ActionLabel:  "Tackle one",
		ActionTarget: "/quests?difficulty=hard",
	}, true
}

func goalDeadline(v view) (domain.Insight, bool) {
	for _, g := range v.s.Goals {
		if g.Completed || g.TargetDate.IsZero() || len(g.Milestones) == 0 {
			continue
		}
		left := daysBetween(v.today, v.dayOf(g.TargetDate))
		if left < 0 || left > GoalDeadlineDays {
			continue
		}
		done := 0
		for _, m := range g.Milestones {
			if m.Done {
				done++
			}
		}
		if done*2 >= len(g.Milestones) {
			continue
		}
		return domain.Insight{
			ID:           "goal-deadline-" + g.ID,
			Icon:         "🎯",
			Title:        "Goal deadline approaching",
			Description:  fmt.Sprintf("%q is due in %d days with %d of %d milestones done.", g.Title, left, done, len(g.Milestones)),
			Severity:     domain.SeverityWarning,
			Domain:       domain.DomainGoals,
			ActionLabel:  "Plan milestones",
			ActionTarget: "/goals/" + g.ID,
		}, true
	}
	return domain.Insight{}, false
}

// ─── Cross-domain ───────────────────────────────────────────────────────────

func burnoutSignal(v view) (domain.Insight, bool) {
	delta, _, ok := energyDelta(v)
	if !ok || delta >= -EnergyTrendThreshold || !stalled(v) {
		return domain.Insight{}, false
	}
	return domain.Insight{
		ID:           "burnout-signal",
		Icon:         "🛑",
		Title:        "Burnout warning",
		Description:  "Falling energy and a stalled quest log together often mean overload. Scale today back to one essential task.",
		Severity:     domain.SeverityCritical,
		Domain:       domain.DomainCrossDomain,
		ActionLabel:  "Reflect",
		ActionTarget: "/reflect",
	}, true
}
