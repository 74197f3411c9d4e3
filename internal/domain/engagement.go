// Package domain holds the pure types shared by every layer of Nexus Pulse.
// The player-state aggregate below is owned by the host application; the
// pulse engine only ever reads copies of it.
package domain

import (
	"fmt"
	"time"
)

// ─── Day Keys ───────────────────────────────────────────────────────────────

// DayKeyLayout is the calendar-day format used for cache validity and history.
const DayKeyLayout = "2006-01-02"

// DayKey returns the "YYYY-MM-DD" calendar day of t in t's own location.
func DayKey(t time.Time) string {
	return t.Format(DayKeyLayout)
}

// ShiftDay returns the day key n days after day (negative n goes back).
// An unparsable key is returned unchanged.
func ShiftDay(day string, n int) string {
	t, err := time.Parse(DayKeyLayout, day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(DayKeyLayout)
}

// ─── Player ─────────────────────────────────────────────────────────────────

// Player carries identity, progress counters and the vitality resource.
type Player struct {
	Name        string `json:"name"`
	Level       int    `json:"level"`
	XP          int64  `json:"xp"`
	Streak      int    `json:"streak"`
	Vitality    int    `json:"vitality"`
	MaxVitality int    `json:"max_vitality"`
}

// ─── Quests ─────────────────────────────────────────────────────────────────

// Difficulty grades a quest.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	DifficultyEpic   Difficulty = "epic"
)

// Difficulties lists every difficulty in ascending order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyEpic}

// Task is a quest on the player's board.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Difficulty  Difficulty `json:"difficulty"`
	Category    string     `json:"category,omitempty"`
	Completed   bool       `json:"completed"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
}

// ─── Habits ─────────────────────────────────────────────────────────────────

// Habit is a recurring behaviour with a streak and the days it was done.
type Habit struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Streak         int      `json:"streak"`
	CompletedDates []string `json:"completed_dates"` // day keys
}

// DoneOn reports whether the habit was completed on the given day key.
func (h Habit) DoneOn(day string) bool {
	for _, d := range h.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}

// ─── Reflections ────────────────────────────────────────────────────────────

// Reflection is one journal entry with a 1–5 energy rating (0 = not rated).
type Reflection struct {
	Day    string `json:"day"`
	Energy int    `json:"energy"`
	Note   string `json:"note,omitempty"`
}

// ─── Vocabulary ─────────────────────────────────────────────────────────────

// WordStatus is the learning state of a vocabulary word.
type WordStatus string

const (
	WordNew      WordStatus = "new"
	WordLearning WordStatus = "learning"
	WordMastered WordStatus = "mastered"
)

// VocabWord is a vocabulary record with review statistics.
type VocabWord struct {
	ID            string     `json:"id"`
	Word          string     `json:"word"`
	Status        WordStatus `json:"status"`
	TimesReviewed int        `json:"times_reviewed"`
	TimesCorrect  int        `json:"times_correct"`
	Confidence    int        `json:"confidence"` // self-reported, 1–5
	NextReview    time.Time  `json:"next_review,omitempty"`
}

// Accuracy returns the fraction of correct reviews, 0 when never reviewed.
func (w VocabWord) Accuracy() float64 {
	if w.TimesReviewed <= 0 {
		return 0
	}
	return float64(w.TimesCorrect) / float64(w.TimesReviewed)
}

// ─── Activity ───────────────────────────────────────────────────────────────

// ActivityKind categorizes activity log entries.
type ActivityKind string

const (
	ActivityQuestCompleted ActivityKind = "quest_completed"
	ActivityHabitCompleted ActivityKind = "habit_completed"
	ActivityFocusSession   ActivityKind = "focus_session"
	ActivityReflection     ActivityKind = "reflection"
	ActivityWordReviewed   ActivityKind = "word_reviewed"
)

// Activity is one chronological log entry.
type Activity struct {
	Kind    ActivityKind `json:"kind"`
	At      time.Time    `json:"at"`
	Minutes int          `json:"minutes,omitempty"`
	Detail  string       `json:"detail,omitempty"`
}

// ─── Goals ──────────────────────────────────────────────────────────────────

// Milestone is a checkpoint inside a goal.
type Milestone struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Goal is a long-running objective with a target date.
type Goal struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	TargetDate time.Time   `json:"target_date,omitempty"`
	Completed  bool        `json:"completed"`
	Milestones []Milestone `json:"milestones,omitempty"`
}

// ─── Aggregate ──────────────────────────────────────────────────────────────

// State is the read-only player-state aggregate consumed by the engine.
type State struct {
	Player      Player       `json:"player"`
	Tasks       []Task       `json:"tasks"`
	Habits      []Habit      `json:"habits"`
	Reflections []Reflection `json:"reflections"`
	Words       []VocabWord  `json:"words"`
	Activity    []Activity   `json:"activity"`
	Goals       []Goal       `json:"goals"`
}

// CompletedQuests returns the cumulative number of completed tasks.
func (s State) CompletedQuests() int {
	n := 0
	for _, t := range s.Tasks {
		if t.Completed {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so holders never share backing arrays.
func (s State) Clone() State {
	out := State{Player: s.Player}
	out.Tasks = append([]Task(nil), s.Tasks...)
	out.Reflections = append([]Reflection(nil), s.Reflections...)
	out.Words = append([]VocabWord(nil), s.Words...)
	out.Activity = append([]Activity(nil), s.Activity...)
	if s.Habits != nil {
		out.Habits = make([]Habit, len(s.Habits))
		for i, h := range s.Habits {
			h.CompletedDates = append([]string(nil), h.CompletedDates...)
			out.Habits[i] = h
		}
	}
	if s.Goals != nil {
		out.Goals = make([]Goal, len(s.Goals))
		for i, g := range s.Goals {
			g.Milestones = append([]Milestone(nil), g.Milestones...)
			out.Goals[i] = g
		}
	}
	return out
}

// Validate rejects aggregates the engine cannot reason about.
func (s State) Validate() error {
	if s.Player.Vitality < 0 || s.Player.MaxVitality < 0 {
		return fmt.Errorf("%w: negative vitality", ErrInvalidState)
	}
	for _, t := range s.Tasks {
		switch t.Difficulty {
		case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyEpic:
		default:
			return fmt.Errorf("%w: task %q has difficulty %q", ErrInvalidState, t.ID, t.Difficulty)
		}
	}
	for _, r := range s.Reflections {
		if r.Energy < 0 || r.Energy > 5 {
			return fmt.Errorf("%w: energy %d on %s out of range", ErrInvalidState, r.Energy, r.Day)
		}
	}
	return nil
}
