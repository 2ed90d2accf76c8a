// internal/scanner/classifier.go
package scanner

import (
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/tagprobe/tagprobe-cli/api/schemas"
)

// categoryRules maps name fragments to a category. Order matters: the first
// rule whose fragment appears in the lowercased cookie name wins, so "_ga_ads"
// lands in Analytics, not Marketing.
var categoryRules = []struct {
	fragments []string
	category  schemas.CookieCategory
}{
	{[]string{"_ga", "analytics", "_gid"}, schemas.CategoryAnalytics},
	{[]string{"ad", "marketing", "fb"}, schemas.CategoryMarketing},
	{[]string{"pref", "lang"}, schemas.CategoryPreferences},
}

// ClassifyCookie assigns a consent category from the cookie name alone.
// Anything unrecognized is treated as strictly necessary.
func ClassifyCookie(name string) schemas.CookieCategory {
	lower := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				return rule.category
			}
		}
	}
	return schemas.CategoryNecessary
}

// NewCookieRecord converts a raw CDP cookie into the classified wire form.
// CDP reports session cookies with a non-positive expiry; those get a nil
// ExpiresAt.
func NewCookieRecord(c *network.Cookie) schemas.CookieRecord {
	rec := schemas.CookieRecord{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
		Category: ClassifyCookie(c.Name),
	}
	if c.Expires > 0 {
		expires := time.Unix(int64(c.Expires), 0).UTC()
		rec.ExpiresAt = &expires
	}
	return rec
}
