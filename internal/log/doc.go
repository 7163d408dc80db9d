// Package log builds the loggers used by the command line and redacts
// browser protocol traffic before it is written.
//
// With --verbose the Chrome driver logs every protocol command and every
// subscribed event together with its JSON payload. Those payloads routinely
// carry credentials: Network.requestWillBeSent has the request's Cookie and
// Authorization headers, Network.getCookies returns cookie values and
// Fetch.continueRequest can inject header entries. SecureHandler walks each
// payload and masks
//   - credential headers inside header maps and {name, value} header entries
//   - cookie values, whatever the cookie is called
//   - post bodies and fields named like passwords, secrets or tokens
//   - query parameters with those names inside URLs
//   - bearer, basic, JWT and key-shaped strings anywhere
//
// Everything else, such as request ids, frame ids and page URLs, is kept so
// the log stays useful for debugging.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true)
//	chrome := driver.NewChrome(driver.WithDriverLogger(logger))
package log
