package pulse

import (
	"math"
	"time"

	"github.com/nexus-quest/pulse/internal/domain"
)

// SnapshotEnergyDays is the length of the energy window carried in a snapshot.
const SnapshotEnergyDays = 7

// BuildSnapshot projects the state into a compact summary. It is
// deterministic for a given (state, now) and never mutates the state.
func BuildSnapshot(s domain.State, now time.Time) domain.Snapshot {
	v := newView(s, now)

	snap := domain.Snapshot{
		Day:               v.today,
		Player:            s.Player,
		QuestsCompleted7d: v.completedSince(7, ""),
		Energy:            v.energyWindow(SnapshotEnergyDays),
		PendingQuests:     make(map[domain.Difficulty]int, len(domain.Difficulties)),
	}

	// Today
	snap.Today.QuestsCompleted = v.completedOn(v.today)
	for _, r := range s.Reflections {
		if r.Day == v.today {
			snap.Today.Reflected = true
			break
		}
	}

	// Habits
	week := make([]string, 7)
	for i := range week {
		week[i] = v.daysAgo(i)
	}
	for _, h := range s.Habits {
		sum := domain.HabitSummary{Name: h.Name, Streak: h.Streak, DoneToday: h.DoneOn(v.today)}
		for _, day := range week {
			if h.DoneOn(day) {
				sum.Completions7d++
			}
		}
		if sum.DoneToday {
			snap.Today.HabitsCompleted++
		}
		snap.Habits = append(snap.Habits, sum)
	}

	// Pending quests by difficulty
	for _, d := range domain.Difficulties {
		snap.PendingQuests[d] = 0
	}
	for _, t := range s.Tasks {
		if !t.Completed {
			snap.PendingQuests[t.Difficulty]++
		}
	}

	// Vocabulary
	var accSum float64
	reviewed := 0
	for _, w := range s.Words {
		snap.Vocab.Total++
		switch w.Status {
		case domain.WordLearning:
			snap.Vocab.Learning++
		case domain.WordMastered:
			snap.Vocab.Mastered++
		}
		if w.TimesReviewed > 0 {
			accSum += w.Accuracy()
			reviewed++
		}
	}
	snap.Vocab.DueToday = v.dueToday()
	if reviewed > 0 {
		snap.Vocab.AvgAccuracy = round2(accSum / float64(reviewed))
	}

	// Focus
	for _, a := range s.Activity {
		if a.Kind != domain.ActivityFocusSession {
			continue
		}
		snap.Focus.Sessions++
		snap.Focus.TotalMinutes += a.Minutes
		if v.dayOf(a.At) == v.today {
			snap.Today.FocusMinutes += a.Minutes
		}
	}
	if last, ok := v.lastFocusDay(); ok {
		snap.Focus.LastDay = last
	}

	// Goals
	for _, g := range s.Goals {
		if !g.Completed {
			snap.ActiveGoals++
		}
	}

	return snap
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
