package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// DefaultProtocolTimeout bounds a single protocol command.
const DefaultProtocolTimeout = 30 * time.Second

// Chrome drives a Chrome or Chromium tab through chromedp.
//
// Design decision: The engine needs raw protocol access (arbitrary method
// names, per-call timeouts, event subscription by name), which chromedp's
// high-level actions do not expose. Chrome therefore uses chromedp only to
// own the browser process and the target, and sends everything else through
// cdp.Execute with raw JSON.
type Chrome struct {
	// execPath overrides chromedp's browser lookup.
	execPath string

	// remoteURL connects to a running browser instead of starting one.
	remoteURL string

	// headless runs the browser without a window.
	headless bool

	// userAgent overrides the browser user agent when set.
	userAgent string

	// flags are extra command line switches.
	flags map[string]any

	// protocolTimeout bounds each command unless overridden per call.
	protocolTimeout time.Duration

	// logger receives driver and chromedp logs.
	logger *slog.Logger

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	session       *chromeSession
}

// ChromeOption configures a Chrome driver.
type ChromeOption func(*Chrome)

// WithExecPath sets the browser executable.
func WithExecPath(path string) ChromeOption {
	return func(c *Chrome) {
		c.execPath = path
	}
}

// WithRemoteURL connects to an already running browser through its devtools
// websocket URL.
func WithRemoteURL(url string) ChromeOption {
	return func(c *Chrome) {
		c.remoteURL = url
	}
}

// WithHeadless sets headless mode. Default is true.
func WithHeadless(headless bool) ChromeOption {
	return func(c *Chrome) {
		c.headless = headless
	}
}

// WithUserAgent overrides the user agent.
func WithUserAgent(ua string) ChromeOption {
	return func(c *Chrome) {
		c.userAgent = ua
	}
}

// WithFlag adds a browser command line switch.
func WithFlag(name string, value any) ChromeOption {
	return func(c *Chrome) {
		c.flags[name] = value
	}
}

// WithProtocolTimeout sets the default command timeout.
func WithProtocolTimeout(d time.Duration) ChromeOption {
	return func(c *Chrome) {
		if d > 0 {
			c.protocolTimeout = d
		}
	}
}

// WithDriverLogger sets a custom logger.
func WithDriverLogger(logger *slog.Logger) ChromeOption {
	return func(c *Chrome) {
		c.logger = logger
	}
}

// NewChrome creates a Chrome driver. Nothing is started until Connect.
func NewChrome(opts ...ChromeOption) *Chrome {
	c := &Chrome{
		headless:        true,
		flags:           make(map[string]any),
		protocolTimeout: DefaultProtocolTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}

	return c
}

// allocatorOptions builds the exec allocator options.
func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", c.headless),
		chromedp.Flag("disable-gpu", c.headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.execPath != "" {
		opts = append(opts, chromedp.ExecPath(c.execPath))
	}
	if c.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.userAgent))
	}
	for name, value := range c.flags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// Connect implements Driver. The browser outlives ctx; it is released by
// Close.
func (c *Chrome) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		return nil
	}

	base := context.WithoutCancel(ctx)
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if c.remoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, c.remoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, c.allocatorOptions()...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(c.logf(slog.LevelDebug)),
		chromedp.WithErrorf(c.logf(slog.LevelWarn)),
	)

	// The first Run starts the browser and attaches to the initial tab.
	startCtx, stop := withCaller(browserCtx, ctx, c.protocolTimeout)
	err := chromedp.Run(startCtx)
	stop()
	if err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	s := newChromeSession(browserCtx, c.protocolTimeout, c.logger)
	chromedp.ListenTarget(browserCtx, s.dispatch)

	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel
	c.session = s

	c.logger.Debug("browser connected", "headless", c.headless, "remote", c.remoteURL != "")
	return nil
}

// Session implements Driver. It returns nil before Connect.
func (c *Chrome) Session() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	return c.session
}

// Goto implements Driver.
func (c *Chrome) Goto(ctx context.Context, url string, opts GotoOptions) (string, error) {
	c.mu.Lock()
	browserCtx, s := c.browserCtx, c.session
	c.mu.Unlock()
	if s == nil {
		return "", ErrNotConnected
	}

	if !opts.WaitForLoad {
		var res struct {
			ErrorText string `json:"errorText"`
		}
		if err := session.Send(ctx, s, "Page.navigate", map[string]any{"url": url}, &res); err != nil {
			return "", err
		}
		if res.ErrorText != "" {
			return "", fmt.Errorf("%w: %s", ErrPageLoad, res.ErrorText)
		}
		return url, nil
	}

	runCtx, stop := withCaller(browserCtx, ctx, opts.MaxWaitForLoad)
	defer stop()

	var finalURL string
	if err := chromedp.Run(runCtx, chromedp.Navigate(url), chromedp.Location(&finalURL)); err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return "", fmt.Errorf("%w after %s: %s", ErrLoadTimeout, opts.MaxWaitForLoad, url)
		}
		return "", fmt.Errorf("%w: %w", ErrPageLoad, err)
	}
	return finalURL, nil
}

// Close implements Driver.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}

	// Cancelling the browser context closes the tab, and the browser when
	// this driver started it.
	c.browserCancel()
	c.allocCancel()
	c.session = nil
	c.browserCtx = nil
	return nil
}

// logf adapts chromedp's printf-style logging to slog.
func (c *Chrome) logf(level slog.Level) func(string, ...any) {
	return func(format string, args ...any) {
		c.logger.Log(context.Background(), level, fmt.Sprintf(format, args...), "component", "chromedp")
	}
}

// withCaller derives a context from the chromedp context base that is also
// cancelled with caller and, when timeout is positive, after timeout.
func withCaller(base, caller context.Context, timeout time.Duration) (context.Context, func()) {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(base, timeout)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	stopAfter := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stopAfter()
		cancel()
	}
}
