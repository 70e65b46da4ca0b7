package pipeline

import (
	"sync"

	"github.com/pitchside/video-pipeline/pkg/models"
)

// State is the transient progress of one in-flight upload. Each stage
// reports its own 0-100 value; stages deliberately do not share a single
// global percentage, because stage durations are unpredictable. Callers
// rendering one bar must map per-stage progress to stage boundaries
// themselves.
//
// A State is owned by a single upload interaction and never shared
// across concurrent uploads.
type State struct {
	mu       sync.Mutex
	stage    models.Stage
	percent  int
	err      error
	finished bool
}

// Snapshot is a point-in-time copy of a State.
type Snapshot struct {
	Stage    models.Stage `json:"stage"`
	Progress int          `json:"progress"`
	Error    string       `json:"error,omitempty"`
	Finished bool         `json:"finished"`
}

// NewState creates an idle State.
func NewState() *State {
	return &State{stage: models.StageIdle}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Stage:    s.stage,
		Progress: s.percent,
		Finished: s.finished,
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}

// transition enters a new stage with progress reset to zero.
func (s *State) transition(stage models.Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.percent = 0
}

// progress records the active stage's progress percentage.
func (s *State) progress(stage models.Stage, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stage != stage {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	s.percent = percent
}

// fail records a terminal error and returns the state to the given
// stage (idle for aborted runs).
func (s *State) fail(stage models.Stage, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.err = err
	s.finished = true
}

// finish marks the run complete.
func (s *State) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = true
}
