package schemas

import "time"

// CookieCategory is a heuristic compliance bucket, not a legal classification.
type CookieCategory string

const (
	CategoryNecessary   CookieCategory = "Necessary"
	CategoryAnalytics   CookieCategory = "Analytics"
	CategoryMarketing   CookieCategory = "Marketing"
	CategoryPreferences CookieCategory = "Preferences"
)

// CookieRecord is one cookie observed after navigation and consent handling.
// ExpiresAt is nil for session cookies. Records are immutable once produced.
type CookieRecord struct {
	Name      string         `json:"name"`
	Value     string         `json:"value"`
	Domain    string         `json:"domain"`
	Path      string         `json:"path"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	HTTPOnly  bool           `json:"http_only"`
	Secure    bool           `json:"secure"`
	SameSite  string         `json:"same_site"`
	Category  CookieCategory `json:"category"`
}
