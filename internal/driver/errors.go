package driver

import "errors"

var (
	// ErrNotConnected is returned when the driver is used before Connect.
	ErrNotConnected = errors.New("driver is not connected")

	// ErrPageLoad is returned when the browser reports a failed page load.
	ErrPageLoad = errors.New("page load failed")

	// ErrLoadTimeout is returned when the load event does not fire within
	// the configured wait.
	ErrLoadTimeout = errors.New("timed out waiting for page load")
)
