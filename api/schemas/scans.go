package schemas

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScanKind identifies which of the three collection pipelines produced a result.
type ScanKind string

const (
	ScanCookies   ScanKind = "cookies"
	ScanEventLog  ScanKind = "eventlog"
	ScanAnalytics ScanKind = "analytics"
)

// ParseScanKind validates a user supplied kind string.
func ParseScanKind(s string) (ScanKind, error) {
	switch ScanKind(s) {
	case ScanCookies, ScanEventLog, ScanAnalytics:
		return ScanKind(s), nil
	}
	return "", fmt.Errorf("unknown scan kind %q (expected cookies, eventlog or analytics)", s)
}

// ScanResult is the immutable record of one completed scan. The payload is
// one of []CookieRecord, []EventLogEntry or []AnalyticsHit depending on Kind;
// it is kept as raw JSON so the store and the wire layer never need to care.
type ScanResult struct {
	ID        string          `json:"id"`
	Kind      ScanKind        `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	TargetURL string          `json:"target_url"`
	Payload   json.RawMessage `json:"payload"`
}

// NewScanResult wraps a typed payload into a ScanResult envelope.
func NewScanResult(id string, kind ScanKind, targetURL string, payload any) (*ScanResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	return &ScanResult{
		ID:        id,
		Kind:      kind,
		Timestamp: time.Now().UTC(),
		TargetURL: targetURL,
		Payload:   raw,
	}, nil
}
