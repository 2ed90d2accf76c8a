package schemas

import "time"

// AnalyticsHit is one intercepted outbound analytics call (a GA4 collect
// beacon). Parameters hold the full decoded query string of the request URL.
// A slice of hits is ordered by network response arrival, which may not match
// DOM event order.
type AnalyticsHit struct {
	ObservedAt time.Time         `json:"observed_at"`
	SourceURL  string            `json:"source_url"`
	EventName  string            `json:"event_name"`
	Parameters map[string]string `json:"parameters"`
}
