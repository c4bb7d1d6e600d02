// Package realm defines the identity-store capability the security
// interceptor authenticates and authorizes against, plus in-memory and
// SQLite-backed implementations.
//
// The contract is deliberately small: log a subject in, ask whether a
// session holds a permission, log the subject out. Everything else -
// account storage, secret hashing, permission modeling - is an
// implementation concern behind the interface.
package realm

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors a Realm returns from Login. The interceptor maps these
// to its user-facing taxonomy; any other Login error is treated as a
// generic authentication failure.
var (
	// ErrUnknownAccount indicates no account exists for the username.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrIncorrectCredentials indicates the secret did not match.
	ErrIncorrectCredentials = errors.New("incorrect credentials")

	// ErrLockedAccount indicates the account exists but is locked.
	ErrLockedAccount = errors.New("locked account")

	// ErrNoSession indicates a session reference the realm does not know.
	ErrNoSession = errors.New("no such session")
)

// Session is an authenticated subject for the duration of one or more
// pipeline invocations. Sessions are owned by the realm that created
// them; callers hold references only.
type Session struct {
	ID            string
	Principal     string
	Authenticated bool
	RememberMe    bool
	EstablishedAt time.Time
}

// Realm is the injected identity-store capability.
// Implementations must be safe for concurrent use.
type Realm interface {
	// Login authenticates username/secret and establishes a session.
	// rememberMe indicates whether the realm may keep the session alive
	// beyond the current call; what that means is entirely up to the
	// realm. Failures are ErrUnknownAccount, ErrIncorrectCredentials,
	// ErrLockedAccount, or a realm-specific error.
	Login(ctx context.Context, username string, secret []byte, rememberMe bool) (*Session, error)

	// IsPermitted reports whether the session's subject holds the given
	// permission.
	IsPermitted(ctx context.Context, s *Session, permission string) (bool, error)

	// Logout destroys the session. Logging out an unknown or already
	// destroyed session is a no-op.
	Logout(ctx context.Context, s *Session) error
}

// Decider is an optional pluggable permission decision point. Realms that
// accept a Decider delegate IsPermitted to it instead of their own
// granted-permission lists.
type Decider interface {
	// Permits reports whether the principal holds the permission.
	Permits(ctx context.Context, principal, permission string) (bool, error)
}
