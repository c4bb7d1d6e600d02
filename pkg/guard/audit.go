package guard

// AuditEmitter records security-relevant interceptor outcomes.
// Implementations live in pkg/audit; defined here at the point of use so
// the core does not depend on any audit backend. Emission must never
// block or fail an invocation.
type AuditEmitter interface {
	// EmitAuthSuccess records a successful authentication. reused is true
	// when an existing session was accepted without a login call.
	EmitAuthSuccess(principal string, reused bool)
	// EmitAuthFailure records a failed authentication attempt.
	EmitAuthFailure(username, code string)
	// EmitAuthzDenied records a subject that held none of the required
	// permissions.
	EmitAuthzDenied(principal string, required []string)
	// EmitTokenRejected records a token that never yielded a credential
	// (missing, malformed, or undecryptable).
	EmitTokenRejected(code string)
}

// nopAuditEmitter discards all events. Used when no emitter is configured.
type nopAuditEmitter struct{}

func (nopAuditEmitter) EmitAuthSuccess(string, bool)     {}
func (nopAuditEmitter) EmitAuthFailure(string, string)   {}
func (nopAuditEmitter) EmitAuthzDenied(string, []string) {}
func (nopAuditEmitter) EmitTokenRejected(string)         {}
