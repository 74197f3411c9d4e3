package pulse

import (
	"time"

	"github.com/nexus-quest/pulse/internal/domain"
)

// view is a read-only lens over a state at a fixed instant. Every day
// comparison goes through it so rules and the snapshot agree on "today".
type view struct {
	s     domain.State
	now   time.Time
	today string
}

func newView(s domain.State, now time.Time) view {
	return view{s: s, now: now, today: domain.DayKey(now)}
}

// dayOf maps a timestamp onto a day key in the evaluation's location.
func (v view) dayOf(t time.Time) string {
	return domain.DayKey(t.In(v.now.Location()))
}

// daysAgo returns the day key n days before today.
func (v view) daysAgo(n int) string {
	return domain.ShiftDay(v.today, -n)
}

// completedOn counts tasks completed on the given day.
func (v view) completedOn(day string) int {
	n := 0
	for _, t := range v.s.Tasks {
		if t.Completed && !t.CompletedAt.IsZero() && v.dayOf(t.CompletedAt) == day {
			n++
		}
	}
	return n
}

// completedSince counts tasks completed from n-1 days ago through today,
// optionally restricted to one difficulty ("" = any).
func (v view) completedSince(n int, diff domain.Difficulty) int {
	from := v.daysAgo(n - 1)
	count := 0
	for _, t := range v.s.Tasks {
		if !t.Completed || t.CompletedAt.IsZero() {
			continue
		}
		if diff != "" && t.Difficulty != diff {
			continue
		}
		day := v.dayOf(t.CompletedAt)
		if day >= from && day <= v.today {
			count++
		}
	}
	return count
}

// energyWindow returns energy ratings for the last n days, oldest first.
// Days without a rating are skipped; a later entry for a day wins.
func (v view) energyWindow(n int) []domain.EnergyPoint {
	byDay := make(map[string]int, len(v.s.Reflections))
	for _, r := range v.s.Reflections {
		if r.Energy > 0 {
			byDay[r.Day] = r.Energy
		}
	}
	var out []domain.EnergyPoint
	for i := n - 1; i >= 0; i-- {
		day := v.daysAgo(i)
		if rating, ok := byDay[day]; ok {
			out = append(out, domain.EnergyPoint{Day: day, Rating: rating})
		}
	}
	return out
}

// habitRate returns completions / (habits × days) over the trailing window.
func (v view) habitRate(days int) float64 {
	if len(v.s.Habits) == 0 || days <= 0 {
		return 0
	}
	done := 0
	for i := 0; i < days; i++ {
		day := v.daysAgo(i)
		for _, h := range v.s.Habits {
			if h.DoneOn(day) {
				done++
			}
		}
	}
	return float64(done) / float64(len(v.s.Habits)*days)
}

// lastFocusDay returns the day of the most recent focus session.
func (v view) lastFocusDay() (string, bool) {
	var latest time.Time
	for _, a := range v.s.Activity {
		if a.Kind == domain.ActivityFocusSession && a.At.After(latest) {
			latest = a.At
		}
	}
	if latest.IsZero() {
		return "", false
	}
	return v.dayOf(latest), true
}

// dueToday counts words whose next review falls on or before today.
func (v view) dueToday() int {
	n := 0
	for _, w := range v.s.Words {
		if !w.NextReview.IsZero() && v.dayOf(w.NextReview) <= v.today {
			n++
		}
	}
	return n
}

// daysBetween returns b - a in whole calendar days.
func daysBetween(a, b string) int {
	ta, errA := time.Parse(domain.DayKeyLayout, a)
	tb, errB := time.Parse(domain.DayKeyLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}
