package audit

import (
	"log/slog"
	"strings"
)

// Emitter accepts structured audit events for recording.
type Emitter interface {
	Emit(Event) error
}

// NopEmitter discards all events. Use when no audit backend is configured.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(Event) error { return nil }

// SlogEmitter writes events to a structured logger.
type SlogEmitter struct {
	logger *slog.Logger
}

// NewSlogEmitter creates an emitter writing to the given logger.
// If logger is nil, slog.Default() is used.
func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogEmitter{logger: logger}
}

// Emit writes the event as one structured log line.
func (e *SlogEmitter) Emit(ev Event) error {
	attrs := []any{
		"event", string(ev.Type),
		"severity", ev.Severity.String(),
		"principal", ev.Principal,
		"detail", ev.Detail,
		"ts", ev.Timestamp,
	}
	for k, v := range ev.Meta {
		attrs = append(attrs, "meta_"+k, v)
	}
	if ev.Severity == SeverityInfo {
		e.logger.Info("audit", attrs...)
	} else {
		e.logger.Warn("audit", attrs...)
	}
	return nil
}

// GuardEmitter bridges the interceptor's AuditEmitter interface (defined
// in pkg/guard at its point of use) with Event constructors and one or
// more Emitter backends. It satisfies guard.AuditEmitter through Go's
// structural typing without importing pkg/guard.
type GuardEmitter struct {
	backends []Emitter
	logger   *slog.Logger
}

// NewGuardEmitter creates an emitter forwarding interceptor outcomes to
// the given backends. If logger is nil, slog.Default() is used for error
// reporting.
func NewGuardEmitter(logger *slog.Logger, backends ...Emitter) *GuardEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuardEmitter{backends: backends, logger: logger}
}

func (e *GuardEmitter) emit(ev Event) {
	for _, b := range e.backends {
		if err := b.Emit(ev); err != nil {
			e.logger.Error("audit emit failed", "event", string(ev.Type), "error", err)
		}
	}
}

// EmitAuthSuccess records a successful authentication.
func (e *GuardEmitter) EmitAuthSuccess(principal string, reused bool) {
	detail := "authenticated"
	if reused {
		detail = "session reused"
	}
	e.emit(NewEvent(EventAuthSuccess, principal, detail, nil))
}

// EmitAuthFailure records a failed authentication attempt.
func (e *GuardEmitter) EmitAuthFailure(username, code string) {
	e.emit(NewEvent(EventAuthFailure, username, code, nil))
}

// EmitAuthzDenied records a subject holding none of the required permissions.
func (e *GuardEmitter) EmitAuthzDenied(principal string, required []string) {
	e.emit(NewEvent(EventAuthzDenied, principal, "missing required permission", map[string]string{
		"required": strings.Join(required, " "),
	}))
}

// EmitTokenRejected records a token that never yielded a credential.
func (e *GuardEmitter) EmitTokenRejected(code string) {
	e.emit(NewEvent(EventTokenRejected, "", code, nil))
}
