package gather

import (
	"time"

	"github.com/willoughbyrm/lighthouse/internal/gatherer"
	"github.com/willoughbyrm/lighthouse/internal/prepare"
)

// DependencyRef points at another artifact of the same navigation.
type DependencyRef struct {
	ID string
}

// ArtifactDefn is one collector instance's contribution to a navigation.
type ArtifactDefn struct {
	// ID is unique within the navigation and keys the artifact in results.
	ID string

	// Collector produces the artifact.
	Collector gatherer.Collector

	// Dependencies maps a logical name, as the collector knows it, to the
	// artifact whose value it needs.
	Dependencies map[string]DependencyRef
}

// NavigationDefn is one full page-load cycle.
type NavigationDefn struct {
	// ID names the navigation in logs, traces and stored runs.
	ID string

	// Artifacts are gathered in this order within each phase.
	Artifacts []ArtifactDefn

	// BlankPage is loaded before the requested URL. Empty means about:blank.
	BlankPage string

	// DisableThrottling skips devtools throttling for this navigation.
	DisableThrottling bool

	// DisableStorageReset keeps storage and cache of the previous navigation.
	DisableStorageReset bool
}

// Settings are run-wide options shared by every navigation.
type Settings struct {
	// ThrottlingMethod is one of simulate, devtools or provided.
	ThrottlingMethod prepare.ThrottlingMethod

	// Throttling is applied when ThrottlingMethod is devtools.
	Throttling prepare.Throttling

	// DisableStorageReset skips storage and cache clearing for every navigation.
	DisableStorageReset bool

	// MaxWaitForLoad bounds each page load of the requested URL.
	MaxWaitForLoad time.Duration
}

// DefaultMaxWaitForLoad is used when Settings.MaxWaitForLoad is zero.
const DefaultMaxWaitForLoad = 45 * time.Second

// DefaultSettings returns the settings of a default run.
func DefaultSettings() Settings {
	return Settings{
		ThrottlingMethod: prepare.ThrottlingSimulate,
		Throttling:       prepare.MobileSlow4G,
		MaxWaitForLoad:   DefaultMaxWaitForLoad,
	}
}

func (s Settings) prepareSettings() prepare.Settings {
	return prepare.Settings{
		ThrottlingMethod: s.ThrottlingMethod,
		Throttling:       s.Throttling,
	}
}
