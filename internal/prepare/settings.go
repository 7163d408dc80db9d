package prepare

import "fmt"

// ThrottlingMethod selects how network and CPU throttling is applied.
type ThrottlingMethod string

const (
	// ThrottlingSimulate gathers unthrottled and leaves throttling to later
	// simulation. Only the idle-callback shim is installed.
	ThrottlingSimulate ThrottlingMethod = "simulate"

	// ThrottlingDevtools applies throttling through the protocol.
	ThrottlingDevtools ThrottlingMethod = "devtools"

	// ThrottlingProvided assumes the environment is already throttled.
	ThrottlingProvided ThrottlingMethod = "provided"
)

// ParseThrottlingMethod validates a throttling method name.
func ParseThrottlingMethod(s string) (ThrottlingMethod, error) {
	switch m := ThrottlingMethod(s); m {
	case ThrottlingSimulate, ThrottlingDevtools, ThrottlingProvided:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownThrottlingMethod, s)
	}
}

// Throttling describes network and CPU throttling.
type Throttling struct {
	// RTTMs is the simulated round trip time.
	RTTMs float64 `yaml:"rttMs" json:"rttMs"`

	// ThroughputKbps is the simulated throughput.
	ThroughputKbps float64 `yaml:"throughputKbps" json:"throughputKbps"`

	// RequestLatencyMs is the latency applied per request by devtools throttling.
	RequestLatencyMs float64 `yaml:"requestLatencyMs" json:"requestLatencyMs"`

	// DownloadThroughputKbps is the devtools download cap.
	DownloadThroughputKbps float64 `yaml:"downloadThroughputKbps" json:"downloadThroughputKbps"`

	// UploadThroughputKbps is the devtools upload cap.
	UploadThroughputKbps float64 `yaml:"uploadThroughputKbps" json:"uploadThroughputKbps"`

	// CPUSlowdownMultiplier slows the page's main thread.
	CPUSlowdownMultiplier float64 `yaml:"cpuSlowdownMultiplier" json:"cpuSlowdownMultiplier"`
}

// MobileSlow4G is the default throttling profile.
var MobileSlow4G = Throttling{
	RTTMs:                  150,
	ThroughputKbps:         1.6 * 1024,
	RequestLatencyMs:       150 * 3.75,
	DownloadThroughputKbps: 1.6 * 1024 * 0.9,
	UploadThroughputKbps:   750 * 0.9,
	CPUSlowdownMultiplier:  4,
}

// Settings are the run-wide options that influence session preparation.
type Settings struct {
	ThrottlingMethod ThrottlingMethod
	Throttling       Throttling
}
