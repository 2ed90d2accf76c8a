// internal/browser/launcher.go
package browser

import (
	"context"
	"runtime"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/internal/config"
)

// Launcher produces an allocator context from which browser tabs are derived.
// Each scan gets its own allocator, so a crashed or wedged browser process
// never outlives the scan that owns it.
type Launcher interface {
	Launch(ctx context.Context) (context.Context, context.CancelFunc)
}

// NewLauncher selects the launcher implied by the configuration: a remote
// allocator when browser.remote_url is set, a local process otherwise.
func NewLauncher(cfg config.BrowserConfig, persona Persona, logger *zap.Logger) Launcher {
	if cfg.RemoteURL != "" {
		return &RemoteLauncher{URL: cfg.RemoteURL, logger: logger.Named("launcher")}
	}
	return &ExecLauncher{cfg: cfg, persona: persona, logger: logger.Named("launcher")}
}

// ExecLauncher starts a local headless Chrome process.
type ExecLauncher struct {
	cfg     config.BrowserConfig
	persona Persona
	logger  *zap.Logger
}

func (l *ExecLauncher) Launch(ctx context.Context) (context.Context, context.CancelFunc) {
	l.logger.Debug("Launching local browser process", zap.Bool("headless", l.cfg.Headless))
	return chromedp.NewExecAllocator(ctx, l.allocatorOptions()...)
}

// allocatorOptions assembles the flags for a stealthy, configurable browser
// instance. Later flags override the defaults, so the flag that reveals
// automation is switched off rather than filtered.
func (l *ExecLauncher) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	userAgent := l.cfg.UserAgent
	if userAgent == "" {
		userAgent = l.persona.UserAgent
	}

	opts = append(opts,
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("headless", l.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", l.cfg.IgnoreTLSErrors),
		// Keeps navigator.webdriver from flagging the session as automated.
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", l.cfg.Headless),
		chromedp.WindowSize(l.cfg.ViewportWidth, l.cfg.ViewportHeight),
		chromedp.UserAgent(userAgent),
	)

	if l.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.cfg.ExecPath))
	}

	// Flags required for running inside containers (e.g., Docker on Linux).
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// RemoteLauncher attaches to an already-running browser over the DevTools
// protocol, typically a shared Chrome container.
type RemoteLauncher struct {
	URL    string
	logger *zap.Logger
}

func (l *RemoteLauncher) Launch(ctx context.Context) (context.Context, context.CancelFunc) {
	l.logger.Debug("Attaching to remote browser", zap.String("url", l.URL))
	return chromedp.NewRemoteAllocator(ctx, l.URL)
}
