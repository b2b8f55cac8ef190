package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ErrorLogEntry is one timestamped failure note on an event or sync record.
type ErrorLogEntry struct {
	At      time.Time `json:"at"`
	Message string    `json:"message"`
}

// ErrorLog persists an ordered failure history as JSONB.
type ErrorLog []ErrorLogEntry

// Append returns the log extended with a new entry.
func (l ErrorLog) Append(at time.Time, message string) ErrorLog {
	return append(l, ErrorLogEntry{At: at, Message: message})
}

// Last returns the most recent entry, or nil when the log is empty.
func (l ErrorLog) Last() *ErrorLogEntry {
	if len(l) == 0 {
		return nil
	}
	entry := l[len(l)-1]
	return &entry
}

// Value marshals the log for storage.
func (l ErrorLog) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("error log: marshal: %w", err)
	}
	return string(raw), nil
}

// Scan decodes the stored JSON representation.
func (l *ErrorLog) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("error log: unsupported scan type %T", value)
	}

	if len(raw) == 0 {
		*l = nil
		return nil
	}

	var decoded ErrorLog
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("error log: unmarshal: %w", err)
	}
	*l = decoded
	return nil
}
