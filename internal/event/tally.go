package event

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
)

// AttemptTally counts provider.attempt events by provider and outcome.
type AttemptTally struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

// NewAttemptTally creates an empty tally.
func NewAttemptTally() *AttemptTally {
	return &AttemptTally{counts: make(map[string]map[string]int)}
}

// Handle records e. Events without a provider are ignored.
func (t *AttemptTally) Handle(e Event) {
	name, _ := e.Data["provider"].(string)
	if name == "" {
		return
	}
	outcome := fmt.Sprint(e.Data["outcome"])
	t.mu.Lock()
	defer t.mu.Unlock()
	byOutcome, ok := t.counts[name]
	if !ok {
		byOutcome = make(map[string]int)
		t.counts[name] = byOutcome
	}
	byOutcome[outcome]++
}

// Counts returns a copy of the outcome counts for each provider.
func (t *AttemptTally) Counts() map[string]map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]map[string]int, len(t.counts))
	for name, byOutcome := range t.counts {
		out[name] = maps.Clone(byOutcome)
	}
	return out
}

// Log writes one record per provider, sorted by name.
func (t *AttemptTally) Log(logger *slog.Logger) {
	counts := t.Counts()
	for _, name := range slices.Sorted(maps.Keys(counts)) {
		attrs := []any{slog.String("provider", name)}
		for _, outcome := range slices.Sorted(maps.Keys(counts[name])) {
			attrs = append(attrs, slog.Int(outcome, counts[name][outcome]))
		}
		logger.Info("provider attempts", attrs...)
	}
}
