// Package store holds the engine's single source of truth (State) behind
// a mutex, and a Notifier that coalesces change events to subscribers at
// most once per frame (spec §4.2).
package store

import (
	"sync"

	"github.com/makercode/maker/pkg/engine/model"
)

// Store serializes every mutation to the engine's State behind one mutex,
// matching the teacher's single-writer state pattern.
type Store struct {
	mu    sync.Mutex
	state *model.State
}

// New returns a Store wrapping a fresh, empty State.
func New() *Store {
	return &Store{state: model.NewState()}
}

// Mutate runs fn with exclusive access to the live state and recomputes
// derived counters before returning. Callers must not retain references
// into the state after fn returns.
func (st *Store) Mutate(fn func(*model.State)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st.state)
	st.state.RecomputeGlobalActiveWorkers()
}

// Snapshot returns an immutable deep copy of the current state, safe to
// hand to a subscriber or render from another goroutine.
func (st *Store) Snapshot() model.Snapshot {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.state.Snapshot()
}
