// internal/browser/context.go
package browser

import "context"

// CombineContext creates a new context derived from primary that is canceled
// when *either* primary or secondary is canceled. It inherits values from
// primary. This matters for chromedp operations, where primary carries the CDP
// connection info (the session context) and secondary carries the operational
// deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
