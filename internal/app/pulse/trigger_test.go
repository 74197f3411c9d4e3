package pulse_test

import (
	"reflect"
	"testing"

	"github.com/nexus-quest/pulse/internal/app/pulse"
	"github.com/nexus-quest/pulse/internal/domain"
)

func withCompleted(n int) []domain.Task {
	tasks := make([]domain.Task, 0, n)
	for i := 0; i < n; i++ {
		tasks = append(tasks, doneTask(string(rune('a'+i)), domain.DifficultyEasy, 0))
	}
	return tasks
}

func TestDetectEvents(t *testing.T) {
	tests := []struct {
		name       string
		prev, curr domain.State
		want       []domain.PulseEvent
	}{
		{
			name: "no change",
		},
		{
			name: "three quests at once",
			prev: domain.State{Tasks: withCompleted(1)},
			curr: domain.State{Tasks: withCompleted(4)},
			want: []domain.PulseEvent{domain.EventBatchComplete},
		},
		{
			name: "two quests is not a batch",
			prev: domain.State{Tasks: withCompleted(1)},
			curr: domain.State{Tasks: withCompleted(3)},
		},
		{
			name: "reflection submitted",
			curr: domain.State{Reflections: []domain.Reflection{{Day: "2024-03-10", Energy: 3}}},
			want: []domain.PulseEvent{domain.EventReflectionSubmitted},
		},
		{
			name: "streak broken",
			prev: domain.State{Player: domain.Player{Streak: 9}},
			curr: domain.State{Player: domain.Player{Streak: 0}},
			want: []domain.PulseEvent{domain.EventStreakBroken},
		},
		{
			name: "streak grows",
			prev: domain.State{Player: domain.Player{Streak: 9}},
			curr: domain.State{Player: domain.Player{Streak: 10}},
		},
		{
			name: "several at once keep order",
			prev: domain.State{Player: domain.Player{Streak: 3}},
			curr: domain.State{
				Tasks:       withCompleted(5),
				Reflections: []domain.Reflection{{Day: "2024-03-10"}},
			},
			want: []domain.PulseEvent{domain.EventBatchComplete, domain.EventReflectionSubmitted, domain.EventStreakBroken},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pulse.DetectEvents(tt.prev, tt.curr)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DetectEvents() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForced(t *testing.T) {
	if !pulse.Forced(domain.EventManual) {
		t.Error("manual refresh must bypass the cooldown")
	}
	for _, e := range []domain.PulseEvent{domain.EventBatchComplete, domain.EventReflectionSubmitted, domain.EventStreakBroken} {
		if pulse.Forced(e) {
			t.Errorf("%s must respect the cooldown", e)
		}
	}
}
