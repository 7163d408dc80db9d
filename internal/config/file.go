package config

import (
	"fmt"
	"time"

	"github.com/willoughbyrm/lighthouse/internal/collector"
	"github.com/willoughbyrm/lighthouse/internal/gather"
	"github.com/willoughbyrm/lighthouse/internal/prepare"
)

// DefaultNavigationID names the navigation built when the file lists none.
const DefaultNavigationID = "default"

// FileSettings are run-wide settings in the gather config file. Zero values
// leave the command line defaults in place.
type FileSettings struct {
	ThrottlingMethod    string              `yaml:"throttlingMethod,omitempty"`
	Throttling          *prepare.Throttling `yaml:"throttling,omitempty"`
	DisableStorageReset bool                `yaml:"disableStorageReset,omitempty"`
	MaxWaitForLoad      time.Duration       `yaml:"maxWaitForLoad,omitempty"`
	ProtocolTimeout     time.Duration       `yaml:"protocolTimeout,omitempty"`
	CollectorTimeout    time.Duration       `yaml:"collectorTimeout,omitempty"`
}

// ArtifactConfig adds one gatherer to a navigation.
type ArtifactConfig struct {
	// ID keys the artifact in results. Defaults to the gatherer name.
	ID string `yaml:"id,omitempty"`

	// Gatherer names a collector from the gatherers list. Defaults to ID.
	Gatherer string `yaml:"gatherer,omitempty"`

	// Dependencies maps the name a gatherer knows a dependency by to the id
	// of an earlier artifact.
	Dependencies map[string]string `yaml:"dependencies,omitempty"`
}

// NavigationConfig is one navigation in the gather config file.
// Pointer fields fall back to Defaults when unset.
type NavigationConfig struct {
	ID                  string           `yaml:"id"`
	BlankPage           string           `yaml:"blankPage,omitempty"`
	DisableThrottling   *bool            `yaml:"disableThrottling,omitempty"`
	DisableStorageReset *bool            `yaml:"disableStorageReset,omitempty"`
	Artifacts           []ArtifactConfig `yaml:"artifacts"`
}

// NavigationDefaults apply to every navigation unless it overrides them.
type NavigationDefaults struct {
	BlankPage           string `yaml:"blankPage,omitempty"`
	DisableThrottling   bool   `yaml:"disableThrottling,omitempty"`
	DisableStorageReset bool   `yaml:"disableStorageReset,omitempty"`
}

// File represents the structure of the gather config file.
type File struct {
	// Settings are run-wide settings.
	Settings FileSettings `yaml:"settings,omitempty"`

	// Gatherers declares the collectors navigations can use.
	Gatherers []collector.Spec `yaml:"gatherers"`

	// Navigations lists the navigations in run order. When empty a single
	// navigation gathers every declared gatherer.
	Navigations []NavigationConfig `yaml:"navigations,omitempty"`

	// Defaults apply to every navigation.
	Defaults NavigationDefaults `yaml:"defaults,omitempty"`
}

// Registry builds the collectors declared in the file.
func (f *File) Registry() (*collector.Registry, error) {
	if len(f.Gatherers) == 0 {
		return nil, ErrNoGatherers
	}
	return collector.FromSpecs(f.Gatherers)
}

// GetNavigationConfig returns nav merged with the file defaults.
func (f *File) GetNavigationConfig(nav NavigationConfig) NavigationConfig {
	result := nav
	if result.BlankPage == "" {
		result.BlankPage = f.Defaults.BlankPage
	}
	if result.DisableThrottling == nil {
		v := f.Defaults.DisableThrottling
		result.DisableThrottling = &v
	}
	if result.DisableStorageReset == nil {
		v := f.Defaults.DisableStorageReset
		result.DisableStorageReset = &v
	}
	return result
}

// NavigationConfigs returns the navigations to run, merged with defaults.
// Without explicit navigations, one navigation gathers every gatherer.
func (f *File) NavigationConfigs() []NavigationConfig {
	navs := f.Navigations
	if len(navs) == 0 {
		artifacts := make([]ArtifactConfig, 0, len(f.Gatherers))
		for _, g := range f.Gatherers {
			artifacts = append(artifacts, ArtifactConfig{ID: g.Name, Gatherer: g.Name})
		}
		navs = []NavigationConfig{{ID: DefaultNavigationID, Artifacts: artifacts}}
	}

	out := make([]NavigationConfig, 0, len(navs))
	for _, nav := range navs {
		out = append(out, f.GetNavigationConfig(nav))
	}
	return out
}

// NavigationDefns builds navigation definitions with collectors from the
// file's registry. Structural checks such as duplicate ids and forward
// dependencies are left to gather.ValidateNavigations.
func (f *File) NavigationDefns() ([]gather.NavigationDefn, error) {
	registry, err := f.Registry()
	if err != nil {
		return nil, err
	}

	configs := f.NavigationConfigs()
	defns := make([]gather.NavigationDefn, 0, len(configs))
	for _, nav := range configs {
		defn := gather.NavigationDefn{
			ID:                  nav.ID,
			BlankPage:           nav.BlankPage,
			DisableThrottling:   *nav.DisableThrottling,
			DisableStorageReset: *nav.DisableStorageReset,
			Artifacts:           make([]gather.ArtifactDefn, 0, len(nav.Artifacts)),
		}

		for i, a := range nav.Artifacts {
			name := a.Gatherer
			if name == "" {
				name = a.ID
			}
			if name == "" {
				return nil, fmt.Errorf("navigation %s, artifact %d: %w", nav.ID, i, ErrMissingGatherer)
			}
			id := a.ID
			if id == "" {
				id = name
			}

			c, err := registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("navigation %s, artifact %s: %w", nav.ID, id, err)
			}

			var deps map[string]gather.DependencyRef
			if len(a.Dependencies) > 0 {
				deps = make(map[string]gather.DependencyRef, len(a.Dependencies))
				for depName, ref := range a.Dependencies {
					deps[depName] = gather.DependencyRef{ID: ref}
				}
			}

			defn.Artifacts = append(defn.Artifacts, gather.ArtifactDefn{
				ID:           id,
				Collector:    c,
				Dependencies: deps,
			})
		}
		defns = append(defns, defn)
	}
	return defns, nil
}
