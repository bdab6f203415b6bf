package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp is a client-supplied time. Offline clients send JavaScript
// epoch milliseconds; RFC 3339 strings are accepted too.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("timestamp must be RFC 3339 or epoch milliseconds: %w", err)
		}
		t.Time = parsed
		return nil
	}

	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("timestamp must be RFC 3339 or epoch milliseconds: %w", err)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// Ptr returns the wrapped time, or nil when t is nil.
func (t *Timestamp) Ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}
