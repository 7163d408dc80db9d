package gather

import (
	"fmt"
	"sort"

	"github.com/willoughbyrm/lighthouse/internal/model"
)

// plannedArtifact is an artifact definition with its derived schedule.
type plannedArtifact struct {
	defn     ArtifactDefn
	index    int
	modes    model.ModeSet
	terminal model.Phase
}

// plan is the validated schedule of one navigation's artifacts.
type plan struct {
	artifacts []plannedArtifact
	byID      map[string]int
}

// ValidateNavigations checks a navigation set without touching the session.
func ValidateNavigations(navigations []NavigationDefn) error {
	if len(navigations) == 0 {
		return &ConfigError{Err: ErrNoNavigations}
	}

	seen := make(map[string]bool, len(navigations))
	for _, nav := range navigations {
		if nav.ID == "" {
			return &ConfigError{Err: ErrMissingNavigationID}
		}
		if seen[nav.ID] {
			return &ConfigError{Navigation: nav.ID, Err: ErrDuplicateNavigation}
		}
		seen[nav.ID] = true

		if err := ValidateNavigation(nav); err != nil {
			return err
		}
	}
	return nil
}

// ValidateNavigation checks that every artifact of nav is well formed and
// that every dependency resolves to an artifact computed before the one that
// needs it: one with an earlier terminal phase, or an earlier position in the
// same terminal phase.
func ValidateNavigation(nav NavigationDefn) error {
	if _, err := planArtifacts(nav.Artifacts, nil); err != nil {
		return withNavigation(err, nav.ID)
	}
	return nil
}

// planArtifacts validates defns and derives their schedule. Dependencies that
// are not defined in defns are accepted only when state already holds a
// terminal result for them.
func planArtifacts(defns []ArtifactDefn, state *ArtifactState) (*plan, error) {
	p := &plan{
		artifacts: make([]plannedArtifact, 0, len(defns)),
		byID:      make(map[string]int, len(defns)),
	}

	for i, defn := range defns {
		if defn.ID == "" {
			return nil, &ConfigError{Err: fmt.Errorf("%w at position %d", ErrMissingArtifactID, i)}
		}
		if _, dup := p.byID[defn.ID]; dup {
			return nil, &ConfigError{Artifact: defn.ID, Err: ErrDuplicateArtifact}
		}
		if defn.Collector == nil {
			return nil, &ConfigError{Artifact: defn.ID, Err: ErrMissingCollector}
		}

		modes := defn.Collector.Meta().SupportedModes
		terminal, err := model.TerminalPhase(modes)
		if err != nil {
			return nil, &ConfigError{Artifact: defn.ID, Err: err}
		}

		p.byID[defn.ID] = i
		p.artifacts = append(p.artifacts, plannedArtifact{
			defn:     defn,
			index:    i,
			modes:    modes,
			terminal: terminal,
		})
	}

	for _, a := range p.artifacts {
		for _, name := range dependencyNames(a.defn) {
			ref := a.defn.Dependencies[name]
			j, ok := p.byID[ref.ID]
			if !ok {
				if state != nil && state.hasTerminalBefore(ref.ID, a.terminal) {
					continue
				}
				return nil, &ConfigError{
					Artifact: a.defn.ID,
					Err:      fmt.Errorf("%w: %s -> %q", ErrUnknownDependency, name, ref.ID),
				}
			}

			dep := p.artifacts[j]
			earlierPhase := dep.terminal < a.terminal
			earlierSlot := dep.terminal == a.terminal && dep.index < a.index
			if !earlierPhase && !earlierSlot {
				return nil, &ConfigError{
					Artifact: a.defn.ID,
					Err: fmt.Errorf("%w: %s -> %q (%s, needed at %s)",
						ErrForwardDependency, name, ref.ID, dep.terminal, a.terminal),
				}
			}
		}
	}

	return p, nil
}

// dependencyNames returns the logical dependency names of defn in sorted
// order, which is the order failures are inherited in.
func dependencyNames(defn ArtifactDefn) []string {
	names := make([]string, 0, len(defn.Dependencies))
	for name := range defn.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func withNavigation(err error, navigationID string) error {
	if ce, ok := err.(*ConfigError); ok && ce.Navigation == "" {
		ce.Navigation = navigationID
	}
	return err
}
