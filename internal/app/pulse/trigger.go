package pulse

import "github.com/nexus-quest/pulse/internal/domain"

// BatchCompleteJump is the rise in completed quests within one transition
// that counts as a batch.
const BatchCompleteJump = 3

// DetectEvents compares two consecutive states and names the transitions that
// should request a synthesis refresh. Manual refreshes never come from here.
func DetectEvents(prev, curr domain.State) []domain.PulseEvent {
	var events []domain.PulseEvent

	if curr.CompletedQuests()-prev.CompletedQuests() >= BatchCompleteJump {
		events = append(events, domain.EventBatchComplete)
	}
	if len(curr.Reflections) > len(prev.Reflections) {
		events = append(events, domain.EventReflectionSubmitted)
	}
	if prev.Player.Streak > 0 && curr.Player.Streak < prev.Player.Streak {
		events = append(events, domain.EventStreakBroken)
	}

	return events
}

// Forced reports whether an event bypasses the cooldown.
func Forced(e domain.PulseEvent) bool {
	return e == domain.EventManual
}
