package pulse

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"

	"github.com/nexus-quest/pulse/internal/domain"
)

// HistoryKey is the fixed KV key of the persisted history list.
const HistoryKey = "nexus_pulse_history"

// History depth defaults.
const (
	DefaultHistoryDays    = 30
	DefaultContextEntries = 7
)

// History is a day-keyed, size-bounded log of syntheses and their snapshots.
// One entry per day; a later write for the same day replaces the earlier one.
type History struct {
	kv      domain.KVStore
	maxDays int
}

// NewHistory creates a history store keeping at most maxDays entries.
func NewHistory(kv domain.KVStore, maxDays int) *History {
	if maxDays <= 0 {
		maxDays = DefaultHistoryDays
	}
	return &History{kv: kv, maxDays: maxDays}
}

// Append inserts or replaces the entry for day, then trims to the most
// recent maxDays days.
func (h *History) Append(day string, s domain.AISynthesis, snap domain.Snapshot) error {
	data, err := h.encodeAppend(day, s, snap)
	if err != nil {
		return err
	}
	if err := h.kv.Set(HistoryKey, data); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Read returns the most recent limit entries, oldest first.
// limit <= 0 returns every retained entry.
func (h *History) Read(limit int) []domain.PulseHistoryEntry {
	entries := h.load()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}

// encodeAppend returns the persisted form of the history after the append.
func (h *History) encodeAppend(day string, s domain.AISynthesis, snap domain.Snapshot) ([]byte, error) {
	entries := merge(h.load(), domain.PulseHistoryEntry{Day: day, Synthesis: s, Snapshot: snap}, h.maxDays)
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return data, nil
}

// merge replaces a same-day entry in place or appends, orders by day and
// keeps the newest keep entries.
func merge(entries []domain.PulseHistoryEntry, e domain.PulseHistoryEntry, keep int) []domain.PulseHistoryEntry {
	replaced := false
	for i := range entries {
		if entries[i].Day == e.Day {
			entries[i] = e
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Day < entries[j].Day })
	if len(entries) > keep {
		entries = entries[len(entries)-keep:]
	}
	return entries
}

// load reads the persisted list; unreadable or corrupt data reads as empty.
func (h *History) load() []domain.PulseHistoryEntry {
	raw, err := h.kv.Get(HistoryKey)
	if err != nil {
		log.Printf("[pulse] history read: %v", err)
		return nil
	}
	if raw == nil {
		return nil
	}
	var entries []domain.PulseHistoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		log.Printf("[pulse] history corrupt, treating as empty: %v", err)
		return nil
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Day < entries[j].Day })
	return entries
}
