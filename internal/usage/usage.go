// Package usage counts how often each document contributes chunks to answers.
package usage

import (
	"sort"
	"sync"
)

// Stat is a per-source count and its share of the total in percent.
type Stat struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Tally is the counter for one request. It starts empty and is owned by the
// request that created it.
type Tally struct {
	counts map[string]int
}

// Snapshot returns the request's counts with percentages.
func (t *Tally) Snapshot() map[string]Stat {
	if t == nil {
		return map[string]Stat{}
	}
	return stats(t.counts)
}

// Tracker holds lifetime counts. Sources are never removed, so counts for
// deleted documents remain visible.
type Tracker struct {
	mu       sync.Mutex
	lifetime map[string]int
}

// NewTracker creates a new usage tracker
func NewTracker() *Tracker {
	return &Tracker{lifetime: map[string]int{}}
}

// Begin starts a request-scoped tally.
func (t *Tracker) Begin() *Tally {
	return &Tally{counts: map[string]int{}}
}

// Record adds one use per entry of sources to tally and to the lifetime counts.
func (t *Tracker) Record(tally *Tally, sources []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range sources {
		t.lifetime[s]++
		if tally != nil {
			tally.counts[s]++
		}
	}
}

// Snapshot returns lifetime counts with percentages.
func (t *Tracker) Snapshot() map[string]Stat {
	t.mu.Lock()
	defer t.mu.Unlock()
	return stats(t.lifetime)
}

// Sources returns every source ever recorded, sorted.
func (t *Tracker) Sources() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.lifetime))
	for s := range t.lifetime {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func stats(counts map[string]int) map[string]Stat {
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make(map[string]Stat, len(counts))
	for s, c := range counts {
		pct := 0.0
		if total > 0 {
			pct = float64(c) / float64(total) * 100
		}
		out[s] = Stat{Count: c, Percentage: pct}
	}
	return out
}
