// internal/scanner/collector.go
package scanner

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
	"github.com/tagprobe/tagprobe-cli/internal/config"
)

// MatchHit reports whether a request URL is a GA4 collection beacon. Both the
// canonical google-analytics.com endpoint and proxied collectors (server-side
// tagging under a first-party domain) are recognized.
func MatchHit(rawURL string) bool {
	return strings.Contains(rawURL, "google-analytics.com/g/collect") ||
		strings.Contains(rawURL, "collect?v=2")
}

// ParseHit decodes a matched beacon URL into a structured hit. Malformed URLs
// still produce a hit with whatever could be read; the observation is the
// point, not the parse.
func ParseHit(rawURL string, observedAt time.Time) schemas.AnalyticsHit {
	hit := schemas.AnalyticsHit{
		ObservedAt: observedAt,
		SourceURL:  rawURL,
		EventName:  "unknown",
		Parameters: map[string]string{},
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return hit
	}
	for key, values := range u.Query() {
		if len(values) > 0 {
			hit.Parameters[key] = values[0]
		}
	}
	if name := hit.Parameters["en"]; name != "" {
		hit.EventName = name
	} else if name := hit.Parameters["event_name"]; name != "" {
		hit.EventName = name
	}
	return hit
}

// HitCollector accumulates GA4 beacons observed on a page's network traffic.
// It must be attached before navigation: the first hits fire during page load
// and a late listener misses them.
type HitCollector struct {
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	hits []schemas.AnalyticsHit
}

// NewHitCollector creates a collector. The clock is injectable for tests.
func NewHitCollector(logger *zap.Logger) *HitCollector {
	return &HitCollector{
		logger: logger.Named("collector"),
		now:    time.Now,
		hits:   make([]schemas.AnalyticsHit, 0),
	}
}

// Attach registers the collector on the page's CDP event stream and enables
// network events. Observation only: no request is ever blocked or modified.
func (c *HitCollector) Attach(ctx context.Context, page Page) error {
	page.Listen(func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			c.handleResponse(e)
		}
	})
	if err := page.EnableNetwork(ctx); err != nil {
		return fmt.Errorf("could not enable network events: %w", err)
	}
	return nil
}

func (c *HitCollector) handleResponse(ev *network.EventResponseReceived) {
	rawURL := ev.Response.URL
	if !MatchHit(rawURL) {
		return
	}
	hit := ParseHit(rawURL, c.now().UTC())

	c.mu.Lock()
	c.hits = append(c.hits, hit)
	c.mu.Unlock()

	c.logger.Debug("Analytics hit observed", zap.String("event", hit.EventName))
}

// DriveTraffic scrolls the page in paced steps to flush scroll-depth and
// engagement beacons, then lets the network settle.
func (c *HitCollector) DriveTraffic(ctx context.Context, page Page, cfg config.CollectorConfig) error {
	for step := 1; step <= cfg.ScrollSteps; step++ {
		script := fmt.Sprintf(
			`window.scrollTo({top: document.body.scrollHeight * %d / %d, behavior: 'smooth'});`,
			step, cfg.ScrollSteps,
		)
		if err := page.Evaluate(ctx, script, nil); err != nil {
			return fmt.Errorf("scroll step %d failed: %w", step, err)
		}
		if err := page.Sleep(ctx, cfg.ScrollInterval); err != nil {
			return err
		}
	}

	// One last jump to the absolute bottom; lazy-loaded content can have grown
	// the page past where the paced steps ended.
	if err := page.Evaluate(ctx, `window.scrollTo(0, document.body.scrollHeight);`, nil); err != nil {
		return fmt.Errorf("final bottom scroll failed: %w", err)
	}
	// Final quiet period for beacons raised by the last scroll.
	return page.Sleep(ctx, cfg.FinalWait)
}

// Hits returns the accumulated beacons in response-arrival order. That order
// may interleave non-deterministically and need not match DOM event order.
func (c *HitCollector) Hits() []schemas.AnalyticsHit {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]schemas.AnalyticsHit, len(c.hits))
	copy(out, c.hits)
	return out
}
