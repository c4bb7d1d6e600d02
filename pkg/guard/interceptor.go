package guard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gatewarden/gatewarden/pkg/pipeline"
	"github.com/gatewarden/gatewarden/pkg/realm"
	"github.com/gatewarden/gatewarden/pkg/token"
)

// SecurityTokenHeader is the mandatory exchange header carrying the
// encrypted credential: a base64 string when the policy declares base64
// transport, raw []byte otherwise.
const SecurityTokenHeader = "SecurityToken"

// SubjectProperty is the exchange property holding the current
// *realm.Session. An upstream processor may seed it; the interceptor
// updates it on fresh login and clears it on forced logout.
const SubjectProperty = "SecuritySubject"

// Interceptor applies a Policy to each exchange before the rest of the
// pipeline runs. It holds no per-invocation state and is safe for
// concurrent use.
type Interceptor struct {
	next   pipeline.Processor
	policy *Policy
	realm  realm.Realm
	logger *slog.Logger
	audit  AuditEmitter
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		i.logger = l
	}
}

// WithAuditEmitter sets the audit emitter for authentication and
// authorization outcomes.
func WithAuditEmitter(a AuditEmitter) Option {
	return func(i *Interceptor) {
		i.audit = a
	}
}

// NewInterceptor creates an interceptor that delegates to next when the
// policy admits the exchange. next may be nil when the interceptor is
// used only through Apply or the HTTP/gRPC adapters.
func NewInterceptor(next pipeline.Processor, policy *Policy, rlm realm.Realm, opts ...Option) (*Interceptor, error) {
	if policy == nil {
		return nil, fmt.Errorf("interceptor requires a policy")
	}
	if rlm == nil {
		return nil, fmt.Errorf("interceptor requires a realm")
	}
	i := &Interceptor{
		next:   next,
		policy: policy,
		realm:  rlm,
		logger: slog.Default(),
		audit:  nopAuditEmitter{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Process implements pipeline.Processor. On success the next processor is
// invoked exactly once with the exchange otherwise unmodified; on failure
// the SecurityError is set on the exchange and next is never invoked.
func (i *Interceptor) Process(ctx context.Context, ex *pipeline.Exchange) error {
	if err := i.Apply(ctx, ex); err != nil {
		ex.SetError(err)
		return err
	}
	if i.next == nil {
		return nil
	}
	return i.next.Process(ctx, ex)
}

// Apply runs the security policy against the exchange without invoking
// the next processor: extract, decode, decrypt, deserialize,
// authenticate, authorize, and - when the policy forces reauthentication
// - log out once authentication has been attempted. A nil return means
// the exchange is admitted and SubjectProperty holds the session.
func (i *Interceptor) Apply(ctx context.Context, ex *pipeline.Exchange) error {
	cred, serr := i.recoverCredential(ex)
	if serr != nil {
		i.audit.EmitTokenRejected(serr.Code)
		return serr
	}

	// The trailing logout runs once authentication was attempted,
	// whether or not authentication or authorization succeeded.
	var subject *realm.Session
	authAttempted := false
	defer func() {
		if !authAttempted || !i.policy.alwaysReauthenticate || subject == nil {
			return
		}
		if err := i.realm.Logout(ctx, subject); err != nil {
			i.logger.Warn("logout failed", "principal", subject.Principal, "error", err)
		}
		ex.RemoveProperty(SubjectProperty)
	}()

	authAttempted = true
	subject, reused, serr := i.authenticate(ctx, ex, cred)
	if serr != nil {
		i.audit.EmitAuthFailure(cred.Username, serr.Code)
		return serr
	}

	// Authorization never runs when authentication failed.
	if serr := i.authorize(ctx, subject); serr != nil {
		i.audit.EmitAuthzDenied(subject.Principal, i.policy.requiredPermissions)
		return serr
	}

	i.audit.EmitAuthSuccess(subject.Principal, reused)
	return nil
}

// recoverCredential performs the extract, transport-decode, decrypt, and
// deserialize steps, each a distinct failure point.
func (i *Interceptor) recoverCredential(ex *pipeline.Exchange) (token.Credential, *SecurityError) {
	raw, ok := ex.Header(SecurityTokenHeader)
	if !ok {
		return token.Credential{}, ErrMissingCredential()
	}

	var encrypted []byte
	if i.policy.base64Transport {
		text, ok := raw.(string)
		if !ok {
			return token.Credential{}, ErrMissingCredential()
		}
		decoded, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return token.Credential{}, ErrMalformedCredential(err)
		}
		encrypted = decoded
	} else {
		encrypted, ok = raw.([]byte)
		if !ok {
			return token.Credential{}, ErrMissingCredential()
		}
	}

	plain, err := i.policy.decrypt(encrypted)
	if err != nil {
		return token.Credential{}, ErrDecryptionFailed(err)
	}

	cred, err := token.Unmarshal(plain)
	if err != nil {
		return token.Credential{}, ErrMalformedCredential(err)
	}
	return cred, nil
}

// authenticate establishes the subject for this invocation. An existing
// authenticated session riding the exchange is reused when its principal
// matches the decoded username and the policy does not force
// reauthentication; otherwise a fresh login is made with rememberMe
// inverted from the reauthentication mode.
func (i *Interceptor) authenticate(ctx context.Context, ex *pipeline.Exchange, cred token.Credential) (*realm.Session, bool, *SecurityError) {
	if !i.policy.alwaysReauthenticate {
		if prior, ok := ex.Property(SubjectProperty); ok {
			if s, ok := prior.(*realm.Session); ok && s.Authenticated && s.Principal == cred.Username {
				i.logger.Debug("reusing authenticated session", "principal", s.Principal)
				return s, true, nil
			}
		}
	}

	s, err := i.realm.Login(ctx, cred.Username, cred.Secret, !i.policy.alwaysReauthenticate)
	if err != nil {
		return nil, false, wrapLoginError(cred.Username, err)
	}
	i.logger.Debug("subject authenticated", "principal", s.Principal)
	ex.SetProperty(SubjectProperty, s)
	return s, false, nil
}

// wrapLoginError maps a realm login failure to the policy-level taxonomy.
// The category is preserved, the message is replaced with the policy
// wording, and the realm's error is retained as the wrapped cause.
func wrapLoginError(username string, err error) *SecurityError {
	switch {
	case errors.Is(err, realm.ErrUnknownAccount):
		return ErrUnknownAccount(username, err)
	case errors.Is(err, realm.ErrIncorrectCredentials):
		return ErrIncorrectCredentials(username, err)
	case errors.Is(err, realm.ErrLockedAccount):
		return ErrLockedAccount(username, err)
	default:
		return ErrAuthenticationFailed(err)
	}
}

// authorize checks the subject against the policy's permission set in
// declared order, succeeding on the first permitted entry. An empty set
// authorizes trivially without consulting the realm.
func (i *Interceptor) authorize(ctx context.Context, subject *realm.Session) *SecurityError {
	if len(i.policy.requiredPermissions) == 0 {
		i.logger.Debug("no permission check configured; skipping authorization",
			"principal", subject.Principal)
		return nil
	}

	for _, permission := range i.policy.requiredPermissions {
		permitted, err := i.realm.IsPermitted(ctx, subject, permission)
		if err != nil {
			// Fail secure: a store error never grants access.
			return ErrForbidden(err)
		}
		if permitted {
			i.logger.Debug("subject authorized",
				"principal", subject.Principal,
				"permission", permission)
			return nil
		}
	}
	return ErrForbidden(nil)
}
