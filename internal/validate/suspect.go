// ABOUTME: Tracks consecutive invalid-token failures per source address
// ABOUTME: Flags suspicious sources in audit detail only; responses are unchanged

package validate

import (
	"sync"
	"time"
)

const (
	suspectThreshold = 3
	suspectWindow    = 5 * time.Minute
)

// sourceState tracks one source's consecutive invalid-token failures.
type sourceState struct {
	failures int
	first    time.Time
}

// suspectTracker counts consecutive invalid_token outcomes per source
// inside a rolling window. Any other outcome for the source resets it.
// Purely advisory: hits only annotate the audit detail for external
// alerting, never the response code.
type suspectTracker struct {
	mu      sync.Mutex
	sources map[string]*sourceState
}

func newSuspectTracker() *suspectTracker {
	return &suspectTracker{sources: make(map[string]*sourceState)}
}

// RecordFailure counts one invalid-token outcome for the source and
// reports whether the source has now hit the suspicious threshold.
func (t *suspectTracker) RecordFailure(source string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.sources[source]
	if !ok || now.Sub(state.first) > suspectWindow {
		state = &sourceState{first: now}
		t.sources[source] = state
	}
	state.failures++

	// Opportunistic pruning keeps the map bounded without a timer
	if len(t.sources) > 10_000 {
		for src, st := range t.sources {
			if now.Sub(st.first) > suspectWindow {
				delete(t.sources, src)
			}
		}
	}

	return state.failures >= suspectThreshold
}

// RecordSuccess resets the consecutive-failure count for the source.
func (t *suspectTracker) RecordSuccess(source string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sources, source)
}
