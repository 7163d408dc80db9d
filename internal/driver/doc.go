// Package driver connects the gather engine to a browser target.
//
// Driver is the narrow surface the engine needs: connect, expose the
// protocol session, load a URL and close. Chrome implements it with
// chromedp, which owns the browser process and the tab, while protocol
// commands and events pass through as raw JSON so that collectors can use
// any domain the browser speaks.
package driver
