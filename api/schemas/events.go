package schemas

import "encoding/json"

// EventLogEntry is one entry of the page's in-memory analytics event log
// (window.dataLayer and friends). Third parties push arbitrary shapes into
// that array, so the payload stays opaque JSON; order of a slice of entries
// is emission order and duplicates are expected.
type EventLogEntry struct {
	Raw json.RawMessage
}

// EventName returns the optional "event" field used for display, or "".
func (e EventLogEntry) EventName() string {
	var probe struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(e.Raw, &probe); err != nil {
		return ""
	}
	return probe.Event
}

func (e EventLogEntry) MarshalJSON() ([]byte, error) {
	if len(e.Raw) == 0 {
		return []byte("null"), nil
	}
	return e.Raw, nil
}

func (e *EventLogEntry) UnmarshalJSON(data []byte) error {
	e.Raw = append(e.Raw[:0], data...)
	return nil
}
