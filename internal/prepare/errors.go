package prepare

import "errors"

var (
	// ErrServiceWorkerConflict is returned when another client is controlled
	// by a service worker of the target origin.
	ErrServiceWorkerConflict = errors.New("you probably have multiple tabs open to the same origin")

	// ErrUnknownThrottlingMethod is returned for an unrecognized method name.
	ErrUnknownThrottlingMethod = errors.New("unknown throttling method")

	// ErrInvalidURL is returned when an origin cannot be derived from a URL.
	ErrInvalidURL = errors.New("invalid URL")
)
