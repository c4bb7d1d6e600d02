// Package audit records security-relevant interceptor outcomes as
// structured events. Emission never blocks or fails a request; audit
// backends that error are logged and skipped.
package audit

import "time"

// Severity represents syslog severity levels per RFC 5424.
type Severity int

const (
	SeverityWarning Severity = 4
	SeverityInfo    Severity = 6
)

// String returns the human-readable name for a severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies a security-relevant audit event.
type EventType string

const (
	EventAuthSuccess   EventType = "auth.success"
	EventAuthFailure   EventType = "auth.failure"
	EventAuthzDenied   EventType = "authz.denied"
	EventTokenRejected EventType = "token.rejected"
)

// AllEventTypes returns every defined event type for iteration and validation.
func AllEventTypes() []EventType {
	return []EventType{
		EventAuthSuccess,
		EventAuthFailure,
		EventAuthzDenied,
		EventTokenRejected,
	}
}

// severityMap maps each event type to its syslog severity.
var severityMap = map[EventType]Severity{
	EventAuthSuccess:   SeverityInfo,    // 6
	EventAuthFailure:   SeverityWarning, // 4
	EventAuthzDenied:   SeverityWarning, // 4
	EventTokenRejected: SeverityWarning, // 4
}

// SeverityFor returns the syslog severity for a given event type.
// Unknown event types return SeverityWarning (fail-secure: treat unknowns
// as concerning).
func SeverityFor(et EventType) Severity {
	if s, ok := severityMap[et]; ok {
		return s
	}
	return SeverityWarning
}

// Event is one recorded security outcome. Secrets and token material
// never appear in events; principals and error codes do.
type Event struct {
	Type      EventType
	Severity  Severity
	Principal string
	Detail    string
	Timestamp time.Time
	Meta      map[string]string
}

// NewEvent creates an event with its mapped severity and a UTC timestamp.
func NewEvent(et EventType, principal, detail string, meta map[string]string) Event {
	return Event{
		Type:      et,
		Severity:  SeverityFor(et),
		Principal: principal,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
		Meta:      meta,
	}
}
