package gather

import (
	"errors"
	"fmt"
)

// Configuration errors. They are reported before any session interaction.
var (
	// ErrNoNavigations is returned when a run has no navigations.
	ErrNoNavigations = errors.New("no navigations configured")

	// ErrMissingNavigationID is returned for a navigation without an id.
	ErrMissingNavigationID = errors.New("navigation has no id")

	// ErrDuplicateNavigation is returned when two navigations share an id.
	ErrDuplicateNavigation = errors.New("duplicate navigation id")

	// ErrMissingArtifactID is returned for an artifact without an id.
	ErrMissingArtifactID = errors.New("artifact has no id")

	// ErrDuplicateArtifact is returned when an id is defined twice in one navigation.
	ErrDuplicateArtifact = errors.New("duplicate artifact id")

	// ErrMissingCollector is returned for an artifact without a collector.
	ErrMissingCollector = errors.New("artifact has no collector")

	// ErrUnknownDependency is returned when a dependency names an undefined artifact.
	ErrUnknownDependency = errors.New("dependency references an undefined artifact")

	// ErrForwardDependency is returned when a dependency is not computed
	// before the artifact that needs it.
	ErrForwardDependency = errors.New("dependency references an artifact that is not computed earlier")
)

// Collector call failures. They are recorded as artifact values.
var (
	// ErrCollectorTimeout wraps a collector call that exceeded its timeout.
	ErrCollectorTimeout = errors.New("collector timed out")

	// ErrCollectorPanic wraps a panic raised by a collector.
	ErrCollectorPanic = errors.New("collector panicked")
)

// ConfigError reports an invalid navigation or artifact definition.
type ConfigError struct {
	// Navigation is the id of the offending navigation, if any.
	Navigation string

	// Artifact is the id of the offending artifact, if any.
	Artifact string

	// Err is one of the configuration sentinels.
	Err error
}

// Error implements error.
func (e *ConfigError) Error() string {
	switch {
	case e.Navigation != "" && e.Artifact != "":
		return fmt.Sprintf("navigation %q, artifact %q: %v", e.Navigation, e.Artifact, e.Err)
	case e.Artifact != "":
		return fmt.Sprintf("artifact %q: %v", e.Artifact, e.Err)
	case e.Navigation != "":
		return fmt.Sprintf("navigation %q: %v", e.Navigation, e.Err)
	default:
		return e.Err.Error()
	}
}

// Unwrap returns the underlying sentinel.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NavigationError is a navigation-level fault: the session could not be set
// up or the page could not be loaded. Every artifact of the navigation is
// invalid when it occurs.
type NavigationError struct {
	// Navigation is the id of the failed navigation. Empty for run setup.
	Navigation string

	// Step names what failed, e.g. "setup", "setupNavigation" or "navigate".
	Step string

	// URL is the URL being loaded when the fault occurred.
	URL string

	// Err is the underlying failure.
	Err error
}

// Error implements error.
func (e *NavigationError) Error() string {
	if e.Navigation == "" {
		return fmt.Sprintf("%s %s: %v", e.Step, e.URL, e.Err)
	}
	return fmt.Sprintf("navigation %q: %s %s: %v", e.Navigation, e.Step, e.URL, e.Err)
}

// Unwrap returns the underlying failure.
func (e *NavigationError) Unwrap() error {
	return e.Err
}
