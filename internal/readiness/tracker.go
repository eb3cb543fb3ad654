// Package readiness tracks per-index media readiness. Pure bookkeeping:
// no network or player access. Every other component consults the tracker
// before fetching or swapping to avoid duplicate work.
package readiness

import (
	"sync"

	"reelengine/internal/domain"
)

type Tracker struct {
	mu      sync.RWMutex
	states  map[int]domain.Readiness
	reasons map[int]error
}

func NewTracker() *Tracker {
	return &Tracker{
		states:  make(map[int]domain.Readiness),
		reasons: make(map[int]error),
	}
}

// Mark transitions an index to the given state. Illegal transitions are
// rejected and leave the tracker unchanged; repeating the current state is a
// no-op. Returns whether the tracker accepted the mark.
func (t *Tracker) Mark(index int, state domain.Readiness) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.states[index]
	if !domain.CanTransition(from, state) {
		return false
	}
	if from == state {
		return true
	}

	if state == domain.NotRequested {
		delete(t.states, index)
		delete(t.reasons, index)
		return true
	}
	t.states[index] = state
	if state != domain.Failed {
		delete(t.reasons, index)
	}
	return true
}

// Fail marks an index Failed and records the cause.
func (t *Tracker) Fail(index int, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !domain.CanTransition(t.states[index], domain.Failed) {
		return
	}
	t.states[index] = domain.Failed
	t.reasons[index] = cause
}

func (t *Tracker) Get(index int) domain.Readiness {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[index]
}

// FailureReason returns the recorded cause for a Failed index, nil otherwise.
func (t *Tracker) FailureReason(index int) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.states[index] != domain.Failed {
		return nil
	}
	return t.reasons[index]
}

// IsReadyOrPlaying reports whether the index's media is loaded enough to
// play without stalling. A playing item remains ready.
func (t *Tracker) IsReadyOrPlaying(index int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[index] == domain.Ready
}

// Snapshot copies the current state map, for diagnostics and event payloads.
func (t *Tracker) Snapshot() map[int]domain.Readiness {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[int]domain.Readiness, len(t.states))
	for k, v := range t.states {
		out[k] = v
	}
	return out
}

// Reset drops all tracked state. Used on feed refresh.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[int]domain.Readiness)
	t.reasons = make(map[int]error)
}
