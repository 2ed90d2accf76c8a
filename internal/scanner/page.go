// internal/scanner/page.go
package scanner

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/network"
)

// Page is the slice of browser session behavior the scan pipeline needs.
// *browser.Session satisfies it; tests substitute a scripted fake.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, expression string, out interface{}) error
	Cookies(ctx context.Context) ([]*network.Cookie, error)
	Listen(fn func(ev interface{}))
	EnableNetwork(ctx context.Context) error
	Sleep(ctx context.Context, d time.Duration) error
	Close() error
}
