// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Session represents one live browser tab with its own allocator. The session
// owns the browser process: closing the session tears the whole thing down.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc
	logger      *zap.Logger

	persona    Persona
	navTimeout time.Duration

	mu       sync.Mutex
	isClosed bool
}

// NewSession launches a browser via the given launcher, opens a tab, applies
// the persona, and verifies the CDP connection is alive. The returned session
// must be closed by the caller; Close is safe to call more than once.
func NewSession(ctx context.Context, launcher Launcher, persona Persona, navTimeout time.Duration, logger *zap.Logger) (*Session, error) {
	sessionID := uuid.New().String()

	allocCtx, allocCancel := launcher.Launch(ctx)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		id:          sessionID,
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		logger:      logger.With(zap.String("session_id", sessionID)),
		persona:     persona,
		navTimeout:  navTimeout,
	}

	// Connect and apply the persona in one shot. A browser that fails to start
	// surfaces here, not on first navigation.
	startCtx, startCancel := context.WithTimeout(tabCtx, 30*time.Second)
	defer startCancel()

	err := chromedp.Run(startCtx,
		emulation.SetUserAgentOverride(persona.UserAgent).
			WithAcceptLanguage(persona.AcceptLanguage).
			WithPlatform(persona.Platform),
		emulation.SetDeviceMetricsOverride(int64(persona.ViewportWidth), int64(persona.ViewportHeight), 1.0, false),
	)
	if err != nil {
		s.teardown()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s.logger.Debug("Browser session established",
		zap.Int("viewport_width", persona.ViewportWidth),
		zap.Int("viewport_height", persona.ViewportHeight))
	return s, nil
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Listen registers fn for every CDP event emitted by this tab. Handlers must
// not block; hand heavy work to another goroutine.
func (s *Session) Listen(fn func(ev interface{})) {
	chromedp.ListenTarget(s.ctx, fn)
}

// EnableNetwork tells Chrome to start emitting network events for this tab.
// Required before Listen handlers will see request traffic.
func (s *Session) EnableNetwork(ctx context.Context) error {
	return s.run(ctx, network.Enable())
}

// Navigate loads the specified URL, honoring both the session lifetime and the
// caller's context, with the configured navigation timeout on top.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating to URL", zap.String("url", url))

	opCtx, opCancel := CombineContext(s.ctx, ctx)
	defer opCancel()

	navTimeout := s.navTimeout
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	navCtx, navCancel := context.WithTimeout(opCtx, navTimeout)
	defer navCancel()

	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		if navCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation timed out after %s: %w", navTimeout, context.DeadlineExceeded)
		}
		if opCtx.Err() != nil {
			return fmt.Errorf("navigation canceled: %w", opCtx.Err())
		}
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// WaitVisible blocks until the selector matches a visible element or the
// timeout elapses. A timeout is reported as context.DeadlineExceeded.
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		if waitCtx.Err() == context.DeadlineExceeded {
			return context.DeadlineExceeded
		}
		return fmt.Errorf("wait for selector %q failed: %w", selector, err)
	}
	return nil
}

// Click interacts with the element matching the selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	s.logger.Debug("Clicking element", zap.String("selector", selector))

	err := s.run(ctx,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click failed for selector %q: %w", selector, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression in the page and unmarshals its result
// into out. Pass nil for fire-and-forget scripts.
func (s *Session) Evaluate(ctx context.Context, expression string, out interface{}) error {
	if err := s.run(ctx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}
	return nil
}

// Cookies returns every cookie visible to the current browser context.
func (s *Session) Cookies(ctx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := s.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("cookie retrieval failed: %w", err)
	}
	return cookies, nil
}

// Sleep pauses for d while the page keeps running, so late-firing beacons and
// deferred scripts get their chance.
func (s *Session) Sleep(ctx context.Context, d time.Duration) error {
	return s.run(ctx, chromedp.Sleep(d))
}

// Close terminates the tab and the browser process. Safe to call repeatedly.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.teardown()
	return nil
}

func (s *Session) teardown() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}

// run executes chromedp actions, ensuring they respect both the session
// lifetime and the incoming request context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}
