package enums

import "fmt"

// LogEventType classifies park event log entries.
type LogEventType string

const (
	LogEventEntry LogEventType = "entry"
	LogEventExit  LogEventType = "exit"
	LogEventAlert LogEventType = "alert"
)

var validLogEventTypes = []LogEventType{
	LogEventEntry,
	LogEventExit,
	LogEventAlert,
}

// String implements fmt.Stringer.
func (t LogEventType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known LogEventType.
func (t LogEventType) IsValid() bool {
	for _, candidate := range validLogEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLogEventType converts raw input into a LogEventType.
func ParseLogEventType(value string) (LogEventType, error) {
	for _, candidate := range validLogEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid log event type %q", value)
}
