package prepare

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// clearedStorageTypes are the storage kinds reset before each navigation.
// Cookies are included so every navigation starts logged out.
var clearedStorageTypes = []string{
	"appcache",
	"cookies",
	"file_systems",
	"indexeddb",
	"local_storage",
	"shader_cache",
	"websql",
	"service_workers",
	"cache_storage",
}

// ClearDataForOrigin removes stored data of the origin of pageURL.
func ClearDataForOrigin(ctx context.Context, s session.Session, pageURL string) error {
	origin, err := Origin(pageURL)
	if err != nil {
		return err
	}
	_, err = s.SendCommand(ctx, "Storage.clearDataForOrigin", map[string]any{
		"origin":       origin,
		"storageTypes": strings.Join(clearedStorageTypes, ","),
	})
	return err
}

// ClearBrowserCache empties the HTTP cache and toggles it off and on again so
// in-memory entries are dropped too.
func ClearBrowserCache(ctx context.Context, s session.Session) error {
	if _, err := s.SendCommand(ctx, "Network.clearBrowserCache", nil); err != nil {
		return err
	}
	if _, err := s.SendCommand(ctx, "Network.setCacheDisabled", map[string]any{"cacheDisabled": true}); err != nil {
		return err
	}
	_, err := s.SendCommand(ctx, "Network.setCacheDisabled", map[string]any{"cacheDisabled": false})
	return err
}

// EnableThrottling applies t through the protocol.
func EnableThrottling(ctx context.Context, s session.Session, t Throttling) error {
	if err := EnableNetworkThrottling(ctx, s, t); err != nil {
		return err
	}
	return EnableCPUThrottling(ctx, s, t)
}

// EnableNetworkThrottling emulates the latency and throughput caps of t.
func EnableNetworkThrottling(ctx context.Context, s session.Session, t Throttling) error {
	_, err := s.SendCommand(ctx, "Network.emulateNetworkConditions", map[string]any{
		"offline":            false,
		"latency":            t.RequestLatencyMs,
		"downloadThroughput": kbpsToBytesPerSecond(t.DownloadThroughputKbps),
		"uploadThroughput":   kbpsToBytesPerSecond(t.UploadThroughputKbps),
	})
	if err != nil {
		return fmt.Errorf("failed to emulate network conditions: %w", err)
	}
	return nil
}

// EnableCPUThrottling slows the main thread by t.CPUSlowdownMultiplier.
func EnableCPUThrottling(ctx context.Context, s session.Session, t Throttling) error {
	rate := t.CPUSlowdownMultiplier
	if rate < 1 {
		rate = 1
	}
	_, err := s.SendCommand(ctx, "Emulation.setCPUThrottlingRate", map[string]any{"rate": rate})
	return err
}

// ClearThrottling removes network and CPU throttling.
func ClearThrottling(ctx context.Context, s session.Session) error {
	_, err := s.SendCommand(ctx, "Network.emulateNetworkConditions", map[string]any{
		"offline":            false,
		"latency":            0,
		"downloadThroughput": 0,
		"uploadThroughput":   0,
	})
	if err != nil {
		return fmt.Errorf("failed to clear network conditions: %w", err)
	}
	_, err = s.SendCommand(ctx, "Emulation.setCPUThrottlingRate", map[string]any{"rate": 1})
	return err
}

func kbpsToBytesPerSecond(kbps float64) float64 {
	return math.Floor(kbps * 1024 / 8)
}
