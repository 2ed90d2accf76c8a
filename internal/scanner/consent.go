// internal/scanner/consent.go
package scanner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tagprobe/tagprobe-cli/internal/config"
)

// AcceptConsent tries to dismiss the cookie banner so consent-gated tags fire.
// An absent banner is not an error: sites without one, or with consent already
// granted, scan fine. Only a click that goes wrong on a banner we did find is
// reported as a failure.
func AcceptConsent(ctx context.Context, page Page, cfg config.ConsentConfig, logger *zap.Logger) error {
	err := page.WaitVisible(ctx, cfg.ButtonSelector, cfg.WaitTimeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Debug("No consent banner appeared; continuing without it.",
				zap.String("selector", cfg.ButtonSelector))
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Debug("Consent banner lookup failed; continuing without it.", zap.Error(err))
		return nil
	}

	if err := page.Click(ctx, cfg.ButtonSelector); err != nil {
		return fmt.Errorf("consent banner found but could not be accepted: %w", err)
	}
	logger.Debug("Consent banner accepted.")

	// Give consent-gated scripts a moment to initialize before extraction.
	return page.Sleep(ctx, cfg.SettleTime)
}
