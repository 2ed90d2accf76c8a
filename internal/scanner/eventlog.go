// internal/scanner/eventlog.go
package scanner

import (
	"context"
	"fmt"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
)

// eventLogExpression snapshots the page's event log. Sites that never define
// one yield an empty array rather than a reference error.
const eventLogExpression = `JSON.parse(JSON.stringify(window.dataLayer || []))`

// CaptureEventLog reads the page's accumulated event log in push order.
// Entries are kept as raw JSON: pages push arbitrary shapes and the scan must
// not lose fields it does not understand.
func CaptureEventLog(ctx context.Context, page Page) ([]schemas.EventLogEntry, error) {
	var entries []schemas.EventLogEntry
	if err := page.Evaluate(ctx, eventLogExpression, &entries); err != nil {
		return nil, fmt.Errorf("event log snapshot failed: %w", err)
	}
	if entries == nil {
		entries = []schemas.EventLogEntry{}
	}
	return entries, nil
}
