package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

// Tracker registers the States of in-flight uploads so progress can be
// polled from outside the uploading request. Entries are removed when
// the initiating interaction releases them.
type Tracker struct {
	mu     sync.RWMutex
	states map[string]*State
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]*State)}
}

// Begin registers a fresh State and returns its upload id.
func (t *Tracker) Begin() (string, *State) {
	id := uuid.New().String()
	state := NewState()

	t.mu.Lock()
	t.states[id] = state
	t.mu.Unlock()

	return id, state
}

// Track registers a fresh State under a caller-chosen upload id.
// Callers that poll progress concurrently with the upload supply their
// own id so they can start polling before the upload request returns.
func (t *Tracker) Track(id string) *State {
	state := NewState()

	t.mu.Lock()
	t.states[id] = state
	t.mu.Unlock()

	return state
}

// Get returns the State for an upload id, or nil if unknown.
func (t *Tracker) Get(id string) *State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.states[id]
}

// Release removes a finished upload's State.
func (t *Tracker) Release(id string) {
	t.mu.Lock()
	delete(t.states, id)
	t.mu.Unlock()
}
