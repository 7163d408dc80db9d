package gather

import (
	"errors"
	"sync"

	"github.com/willoughbyrm/lighthouse/internal/model"
)

// errNotCollected marks an artifact whose terminal phase never ran.
var errNotCollected = errors.New("artifact was not collected")

// ArtifactState is the per-navigation arena of settled phase results.
// Each phase owns one map from artifact id to result. The scheduler reads
// earlier phases to find predecessor and dependency results and writes the
// map of the phase it runs.
//
// Design decision: Results are threaded between phases through this explicit
// arena rather than captured in closures, so a phase can be run in isolation
// against a seeded state.
type ArtifactState struct {
	mu     sync.RWMutex
	phases map[model.Phase]model.Artifacts
}

// NewArtifactState creates an empty arena.
func NewArtifactState() *ArtifactState {
	phases := make(map[model.Phase]model.Artifacts, len(model.Phases()))
	for _, p := range model.Phases() {
		phases[p] = make(model.Artifacts)
	}
	return &ArtifactState{phases: phases}
}

// Record stores the result of id for phase.
func (s *ArtifactState) Record(phase model.Phase, id string, r model.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phases[phase] == nil {
		s.phases[phase] = make(model.Artifacts)
	}
	s.phases[phase][id] = r
}

// Lookup returns the result of id for phase.
func (s *ArtifactState) Lookup(phase model.Phase, id string) (model.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.phases[phase][id]
	return r, ok
}

// Phase returns a copy of the phase artifact map.
func (s *ArtifactState) Phase(phase model.Phase) model.Artifacts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(model.Artifacts, len(s.phases[phase]))
	out.Merge(s.phases[phase])
	return out
}

// terminalResult finds the result of id in a terminal-capable phase that
// runs before phase.
func (s *ArtifactState) terminalResult(id string, before model.Phase) (model.Result, bool) {
	for _, p := range model.Phases() {
		if p >= before {
			break
		}
		if !p.CanBeTerminal() {
			continue
		}
		if r, ok := s.Lookup(p, id); ok {
			return r, true
		}
	}
	return model.Result{}, false
}

func (s *ArtifactState) hasTerminalBefore(id string, before model.Phase) bool {
	_, ok := s.terminalResult(id, before)
	return ok
}

// merged assembles the navigation's artifact map from each artifact's
// terminal phase.
func (s *ArtifactState) merged(p *plan) model.Artifacts {
	out := make(model.Artifacts, len(p.artifacts))
	for _, a := range p.artifacts {
		r, ok := s.Lookup(a.terminal, a.defn.ID)
		if !ok {
			r = model.Fail(errNotCollected)
		}
		out[a.defn.ID] = r
	}
	return out
}
