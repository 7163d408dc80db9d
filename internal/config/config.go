package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/willoughbyrm/lighthouse/internal/gather"
	"github.com/willoughbyrm/lighthouse/internal/prepare"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "lighthouse"

	// DefaultProtocolTimeout bounds a single protocol command. Collectors
	// that need longer can override it per command.
	DefaultProtocolTimeout = 30 * time.Second

	// DefaultMaxWaitForLoad bounds each load of the requested URL.
	DefaultMaxWaitForLoad = gather.DefaultMaxWaitForLoad

	// DefaultCollectorTimeout bounds each collector call. A hung collector
	// then fails on its own instead of stalling the navigation.
	DefaultCollectorTimeout = 60 * time.Second

	// DefaultThrottlingMethod simulates throttling after the fact, so page
	// loads run at full speed.
	DefaultThrottlingMethod = string(prepare.ThrottlingSimulate)
)

// Config holds all options of a gather run.
// It is populated from CLI flags and the gather config file and passed
// through the application rather than kept in global state.
//
// Design decision: We use a single flat struct instead of nested structs
// for simplicity. The number of options is manageable, and the gather config
// file carries everything that is naturally nested.
type Config struct {
	// URL is the requested URL every navigation loads.
	URL string

	// ConfigFilePath is the path to the gather config file. If empty, the
	// file is searched for as described by FindConfigFile.
	ConfigFilePath string

	// File is the loaded gather config file.
	File *File

	// ChromePath overrides the browser executable.
	ChromePath string

	// RemoteURL connects to a running browser instead of starting one.
	RemoteURL string

	// Headless runs the browser without a window.
	Headless bool

	// UserAgent overrides the browser user agent when set.
	UserAgent string

	// ProtocolTimeout bounds each protocol command.
	ProtocolTimeout time.Duration

	// MaxWaitForLoad bounds each page load of the requested URL.
	MaxWaitForLoad time.Duration

	// CollectorTimeout bounds each collector call. Zero disables it.
	CollectorTimeout time.Duration

	// ThrottlingMethod is one of simulate, devtools or provided.
	ThrottlingMethod string

	// CPUSlowdownMultiplier overrides the throttling CPU multiplier when
	// positive.
	CPUSlowdownMultiplier float64

	// DisableStorageReset keeps storage and cache between navigations.
	DisableStorageReset bool

	// Verbose enables debug logging.
	Verbose bool

	// JSONReport writes the run as JSON. Mutually exclusive with
	// MarkdownReport.
	JSONReport bool

	// MarkdownReport writes the run as GitHub Flavored Markdown.
	MarkdownReport bool

	// ReportFile is the output file path. Empty means stdout.
	ReportFile string

	// Trace writes OpenTelemetry spans of the run to stderr.
	Trace bool

	// DBDir is the directory of the run history database.
	DBDir string

	// SaveToDB stores the run in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
//
// Design decision: We use a constructor function instead of relying on
// zero values because many defaults are non-zero. This also serves as
// documentation of what the defaults are.
func NewConfig() *Config {
	return &Config{
		Headless:         true,
		ProtocolTimeout:  DefaultProtocolTimeout,
		MaxWaitForLoad:   DefaultMaxWaitForLoad,
		CollectorTimeout: DefaultCollectorTimeout,
		ThrottlingMethod: DefaultThrottlingMethod,
		DBDir:            XDGDataDir(),
		SaveToDB:         true,
	}
}

// XDGDataDir returns the XDG data directory for lighthouse.
// On Linux: ~/.local/share/lighthouse
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for lighthouse.
// On Linux: ~/.config/lighthouse
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.URL == "" {
		return ErrNoURL
	}
	u, err := url.Parse(c.URL)
	if err != nil || u.Scheme == "" {
		return fmt.Errorf("%w: %s", ErrInvalidURL, c.URL)
	}

	if c.ProtocolTimeout <= 0 {
		return ErrInvalidProtocolTimeout
	}
	if c.MaxWaitForLoad <= 0 {
		return ErrInvalidMaxWait
	}
	if c.CollectorTimeout < 0 {
		return ErrInvalidCollectorTimeout
	}

	if _, err := prepare.ParseThrottlingMethod(c.ThrottlingMethod); err != nil {
		return err
	}
	if c.CPUSlowdownMultiplier < 0 {
		return ErrInvalidCPUSlowdown
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	return nil
}

// Settings returns the run-wide gather settings. The throttling profile
// comes from the config file when it sets one.
func (c *Config) Settings() (gather.Settings, error) {
	s := gather.DefaultSettings()

	method, err := prepare.ParseThrottlingMethod(c.ThrottlingMethod)
	if err != nil {
		return s, err
	}
	s.ThrottlingMethod = method

	if c.File != nil && c.File.Settings.Throttling != nil {
		s.Throttling = *c.File.Settings.Throttling
	}
	if c.CPUSlowdownMultiplier > 0 {
		s.Throttling.CPUSlowdownMultiplier = c.CPUSlowdownMultiplier
	}

	s.DisableStorageReset = c.DisableStorageReset
	s.MaxWaitForLoad = c.MaxWaitForLoad
	return s, nil
}

// ApplyFile copies the settings of f into c and keeps f for building
// navigations. Unset file settings leave c unchanged; the CLI applies its
// explicitly set flags afterwards.
func (c *Config) ApplyFile(f *File) {
	c.File = f
	if f == nil {
		return
	}

	fs := f.Settings
	if fs.ThrottlingMethod != "" {
		c.ThrottlingMethod = fs.ThrottlingMethod
	}
	if fs.DisableStorageReset {
		c.DisableStorageReset = true
	}
	if fs.MaxWaitForLoad > 0 {
		c.MaxWaitForLoad = fs.MaxWaitForLoad
	}
	if fs.ProtocolTimeout > 0 {
		c.ProtocolTimeout = fs.ProtocolTimeout
	}
	if fs.CollectorTimeout > 0 {
		c.CollectorTimeout = fs.CollectorTimeout
	}
}
