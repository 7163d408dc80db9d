package prepare

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/willoughbyrm/lighthouse/internal/session"
	"golang.org/x/net/idna"
)

type swRegistration struct {
	RegistrationID string `json:"registrationId"`
	ScopeURL       string `json:"scopeURL"`
}

type swVersion struct {
	RegistrationID    string   `json:"registrationId"`
	Status            string   `json:"status"`
	ControlledClients []string `json:"controlledClients"`
}

// AssertNoSameOriginServiceWorkerClients fails with ErrServiceWorkerConflict
// when a service worker registered for the origin of pageURL controls any
// client. The current target counts as a client, so navigate it away from the
// origin first.
func AssertNoSameOriginServiceWorkerClients(ctx context.Context, s session.Session, pageURL string) error {
	origin, err := Origin(pageURL)
	if err != nil {
		return err
	}

	registrations, err := serviceWorkerRegistrations(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to read service worker registrations: %w", err)
	}
	versions, err := serviceWorkerVersions(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to read service worker versions: %w", err)
	}

	for _, reg := range registrations {
		swOrigin, err := Origin(reg.ScopeURL)
		if err != nil || swOrigin != origin {
			continue
		}
		for _, ver := range versions {
			if ver.RegistrationID != reg.RegistrationID {
				continue
			}
			if len(ver.ControlledClients) > 0 {
				return ErrServiceWorkerConflict
			}
		}
	}
	return nil
}

// serviceWorkerRegistrations returns the first registration snapshot the
// browser reports after ServiceWorker.enable.
func serviceWorkerRegistrations(ctx context.Context, s session.Session) ([]swRegistration, error) {
	received := make(chan []swRegistration, 1)
	decodeErr := make(chan error, 1)

	off := s.Once("ServiceWorker.workerRegistrationUpdated", func(ev session.Event) {
		var data struct {
			Registrations []swRegistration `json:"registrations"`
		}
		if err := ev.Decode(&data); err != nil {
			decodeErr <- err
			return
		}
		received <- data.Registrations
	})
	defer off()

	if _, err := s.SendCommand(ctx, "ServiceWorker.enable", nil); err != nil {
		return nil, err
	}

	var registrations []swRegistration
	select {
	case registrations = <-received:
	case err := <-decodeErr:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if _, err := s.SendCommand(ctx, "ServiceWorker.disable", nil); err != nil {
		return nil, err
	}
	return registrations, nil
}

// serviceWorkerVersions waits until no worker is still installing: either
// every version is redundant or one of them is activated.
func serviceWorkerVersions(ctx context.Context, s session.Session) ([]swVersion, error) {
	settled := make(chan []swVersion, 1)

	off := s.On("ServiceWorker.workerVersionUpdated", func(ev session.Event) {
		var data struct {
			Versions []swVersion `json:"versions"`
		}
		if err := ev.Decode(&data); err != nil {
			return
		}

		candidates := 0
		activated := false
		for _, v := range data.Versions {
			if v.Status == "redundant" {
				continue
			}
			candidates++
			if v.Status == "activated" {
				activated = true
			}
		}
		if candidates == 0 || activated {
			select {
			case settled <- data.Versions:
			default:
			}
		}
	})
	defer off()

	if _, err := s.SendCommand(ctx, "ServiceWorker.enable", nil); err != nil {
		return nil, err
	}

	var versions []swVersion
	select {
	case versions = <-settled:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	off()

	if _, err := s.SendCommand(ctx, "ServiceWorker.disable", nil); err != nil {
		return nil, err
	}
	return versions, nil
}

// Origin returns the scheme://host[:port] origin of rawURL.
// Internationalized hosts are converted to their ASCII form, which is how
// the browser reports security origins.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q has no origin", ErrInvalidURL, rawURL)
	}

	host := u.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			host = "[" + host + "]"
		}
	} else if strings.IndexFunc(host, func(r rune) bool { return r >= utf8.RuneSelf }) >= 0 {
		if host, err = idna.Lookup.ToASCII(host); err != nil {
			return "", fmt.Errorf("%w: invalid host %q: %w", ErrInvalidURL, u.Hostname(), err)
		}
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(host), nil
}
