// internal/scanner/orchestrator.go
package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/browser"
	"github.com/tagprobe/tagprobe-cli/internal/config"
)

// Scanner runs single-page telemetry scans. Each Run gets a fresh browser
// session that is torn down before Run returns, success or not.
type Scanner struct {
	cfg    *config.Config
	logger *zap.Logger

	// newPage is swappable so tests can drive the pipeline with a fake page.
	newPage func(ctx context.Context) (Page, error)
}

// New builds a scanner from configuration.
func New(cfg *config.Config, logger *zap.Logger) *Scanner {
	persona := browser.DefaultPersona()
	if cfg.Browser.UserAgent != "" {
		persona.UserAgent = cfg.Browser.UserAgent
	}
	persona.ViewportWidth = cfg.Browser.ViewportWidth
	persona.ViewportHeight = cfg.Browser.ViewportHeight

	launcher := browser.NewLauncher(cfg.Browser, persona, logger)

	return &Scanner{
		cfg:    cfg,
		logger: logger.Named("scanner"),
		newPage: func(ctx context.Context) (Page, error) {
			return browser.NewSession(ctx, launcher, persona, cfg.Network.NavigationTimeout, logger)
		},
	}
}

// Run executes one scan of the given kind against targetURL. On any failure
// the scan yields no result at all; there are no partial payloads.
func (s *Scanner) Run(ctx context.Context, kind schemas.ScanKind, targetURL string) (*schemas.ScanResult, error) {
	logger := s.logger.With(zap.String("kind", string(kind)), zap.String("target", targetURL))
	logger.Info("Starting scan.")

	page, err := s.newPage(ctx)
	if err != nil {
		return nil, &LaunchError{Err: err}
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			logger.Warn("Browser session close reported an error.", zap.Error(closeErr))
		}
	}()

	// The collector has to be listening before navigation or it misses the
	// page-load beacons.
	var collector *HitCollector
	if kind == schemas.ScanAnalytics {
		collector = NewHitCollector(logger)
		if err := collector.Attach(ctx, page); err != nil {
			return nil, &ExtractionError{Stage: "collector attach", Err: err}
		}
	}

	if err := page.Navigate(ctx, targetURL); err != nil {
		return nil, &NavigationError{
			URL:     targetURL,
			Timeout: errors.Is(err, context.DeadlineExceeded),
			Err:     err,
		}
	}

	if wait := s.cfg.Network.PostLoadWait; wait > 0 {
		if err := page.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("post-load wait interrupted: %w", err)
		}
	}

	if err := AcceptConsent(ctx, page, s.cfg.Consent, logger); err != nil {
		return nil, &ExtractionError{Stage: "consent", Err: err}
	}

	payload, err := s.extract(ctx, page, kind, collector)
	if err != nil {
		return nil, err
	}

	result, err := schemas.NewScanResult(uuid.New().String(), kind, targetURL, payload)
	if err != nil {
		return nil, &ExtractionError{Stage: "result encoding", Err: err}
	}

	logger.Info("Scan completed.", zap.String("scan_id", result.ID))
	return result, nil
}

// extract performs the kind-specific telemetry readout.
func (s *Scanner) extract(ctx context.Context, page Page, kind schemas.ScanKind, collector *HitCollector) (interface{}, error) {
	switch kind {
	case schemas.ScanCookies:
		raw, err := page.Cookies(ctx)
		if err != nil {
			return nil, &ExtractionError{Stage: "cookie readout", Err: err}
		}
		records := make([]schemas.CookieRecord, 0, len(raw))
		for _, c := range raw {
			records = append(records, NewCookieRecord(c))
		}
		return records, nil

	case schemas.ScanEventLog:
		entries, err := CaptureEventLog(ctx, page)
		if err != nil {
			return nil, &ExtractionError{Stage: "event log readout", Err: err}
		}
		return entries, nil

	case schemas.ScanAnalytics:
		if err := collector.DriveTraffic(ctx, page, s.cfg.Collector); err != nil {
			return nil, &ExtractionError{Stage: "traffic generation", Err: err}
		}
		return collector.Hits(), nil

	default:
		return nil, fmt.Errorf("unsupported scan kind %q", kind)
	}
}
