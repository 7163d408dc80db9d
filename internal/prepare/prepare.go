package prepare

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/willoughbyrm/lighthouse/internal/session"
)

// DialogPromptText is answered to every prompt() the page opens.
const DialogPromptText = "Lighthouse prompt response"

// EnableRuntimeEvents enables the Runtime domain.
func EnableRuntimeEvents(ctx context.Context, s session.Session) error {
	_, err := s.SendCommand(ctx, "Runtime.enable", nil)
	return err
}

// EnableAsyncStacks turns on async call stacks without ever pausing the page.
func EnableAsyncStacks(ctx context.Context, s session.Session) error {
	if _, err := s.SendCommand(ctx, "Debugger.enable", nil); err != nil {
		return err
	}
	if _, err := s.SendCommand(ctx, "Debugger.setSkipAllPauses", map[string]any{"skip": true}); err != nil {
		return err
	}
	_, err := s.SendCommand(ctx, "Debugger.setAsyncCallStackDepth", map[string]any{"maxDepth": 8})
	return err
}

// DismissJavaScriptDialogs accepts every alert, confirm and prompt the page
// opens until the returned unsubscribe function is called.
func DismissJavaScriptDialogs(ctx context.Context, s session.Session, logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	// Replies outlive the caller's cancellation; the subscription bounds them.
	replyCtx := context.WithoutCancel(ctx)

	unsubscribe := s.On("Page.javascriptDialogOpening", func(ev session.Event) {
		var data struct {
			Type string `json:"type"`
		}
		_ = ev.Decode(&data) //nolint:errcheck // type is only used for logging

		logger.Warn("dialog opened by the page automatically suppressed", "type", data.Type)

		// Handlers must not block the event loop.
		go func() {
			_, err := s.SendCommand(replyCtx, "Page.handleJavaScriptDialog", map[string]any{
				"accept":     true,
				"promptText": DialogPromptText,
			})
			if err != nil {
				logger.Warn("failed to dismiss dialog", "error", err)
			}
		}()
	})

	if _, err := s.SendCommand(ctx, "Page.enable", nil); err != nil {
		unsubscribe()
		return nil, err
	}
	return unsubscribe, nil
}

// RegisterRequestIdleCallbackWrap installs the requestIdleCallback shim on
// every new document when throttling is simulated. It is a no-op otherwise.
func RegisterRequestIdleCallbackWrap(ctx context.Context, s session.Session, settings Settings) error {
	if settings.ThrottlingMethod != ThrottlingSimulate {
		return nil
	}
	source := fmt.Sprintf("(%s)(%v)", requestIdleCallbackWrap, settings.Throttling.CPUSlowdownMultiplier)
	_, err := s.SendCommand(ctx, "Page.addScriptToEvaluateOnNewDocument", map[string]any{"source": source})
	return err
}

// PrepareTargetForNavigation applies the per-navigation session preconditions
// and returns a cleanup function that removes the installed subscriptions.
func PrepareTargetForNavigation(ctx context.Context, s session.Session, settings Settings, logger *slog.Logger) (func(), error) {
	if err := EnableRuntimeEvents(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to enable runtime events: %w", err)
	}
	if err := EnableAsyncStacks(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to enable async stacks: %w", err)
	}
	cleanup, err := DismissJavaScriptDialogs(ctx, s, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to install dialog handler: %w", err)
	}
	if err := RegisterRequestIdleCallbackWrap(ctx, s, settings); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to shim requestIdleCallback: %w", err)
	}
	return cleanup, nil
}

// requestIdleCallbackWrap caps the deadline handed to idle callbacks so work
// scheduled through requestIdleCallback stays within a frame budget scaled by
// the CPU slowdown.
const requestIdleCallbackWrap = `function wrapRequestIdleCallback(cpuSlowdownMultiplier) {
  const safetyAllowanceMs = 10;
  const maxExecutionTimeMs = Math.floor(50 / cpuSlowdownMultiplier) - safetyAllowanceMs;
  const nativeRequestIdleCallback = window.requestIdleCallback;
  window.requestIdleCallback = (cb, options) => {
    const cbWrap = (deadline) => {
      const start = Date.now();
      deadline.__timeRemaining = deadline.timeRemaining;
      deadline.timeRemaining = () => {
        const timeRemaining = deadline.__timeRemaining();
        return Math.min(timeRemaining, Math.max(0, maxExecutionTimeMs - (Date.now() - start)));
      };
      deadline.timeRemaining.toString = () => 'function timeRemaining() { [native code] }';
      cb(deadline);
    };
    return nativeRequestIdleCallback(cbWrap, options);
  };
  window.requestIdleCallback.toString = () => 'function requestIdleCallback() { [native code] }';
}`
