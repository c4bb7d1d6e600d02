package realm

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRealm is an in-process Realm. Accounts hold their secret in
// memory and their permissions as wildcard strings. Intended for tests
// and embedded deployments; production setups use SQLiteRealm.
type MemoryRealm struct {
	mu       sync.RWMutex
	accounts map[string]*memoryAccount
	sessions map[string]*Session
	decider  Decider
}

type memoryAccount struct {
	username    string
	secret      []byte
	locked      bool
	permissions []string
}

// MemoryOption configures a MemoryRealm.
type MemoryOption func(*MemoryRealm)

// WithDecider delegates permission decisions to d instead of the
// accounts' granted-permission lists.
func WithDecider(d Decider) MemoryOption {
	return func(r *MemoryRealm) {
		r.decider = d
	}
}

// NewMemoryRealm creates an empty in-memory realm.
func NewMemoryRealm(opts ...MemoryOption) *MemoryRealm {
	r := &MemoryRealm{
		accounts: make(map[string]*memoryAccount),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddAccount registers an account with its secret and granted permissions,
// replacing any existing account with the same username.
func (r *MemoryRealm) AddAccount(username string, secret []byte, permissions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[username] = &memoryAccount{
		username:    username,
		secret:      append([]byte(nil), secret...),
		permissions: append([]string(nil), permissions...),
	}
}

// SetLocked locks or unlocks an account.
func (r *MemoryRealm) SetLocked(username string, locked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	acct, ok := r.accounts[username]
	if !ok {
		return ErrUnknownAccount
	}
	acct.locked = locked
	return nil
}

// Login implements Realm.
func (r *MemoryRealm) Login(ctx context.Context, username string, secret []byte, rememberMe bool) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.accounts[username]
	if !ok {
		return nil, ErrUnknownAccount
	}
	if acct.locked {
		return nil, ErrLockedAccount
	}
	if subtle.ConstantTimeCompare(acct.secret, secret) != 1 {
		return nil, ErrIncorrectCredentials
	}

	s := &Session{
		ID:            uuid.New().String(),
		Principal:     username,
		Authenticated: true,
		RememberMe:    rememberMe,
		EstablishedAt: time.Now().UTC(),
	}
	r.sessions[s.ID] = s
	return s, nil
}

// IsPermitted implements Realm.
func (r *MemoryRealm) IsPermitted(ctx context.Context, s *Session, permission string) (bool, error) {
	if s == nil || !s.Authenticated {
		return false, ErrNoSession
	}

	r.mu.RLock()
	_, live := r.sessions[s.ID]
	acct, ok := r.accounts[s.Principal]
	r.mu.RUnlock()
	if !live {
		return false, ErrNoSession
	}
	if !ok {
		return false, ErrUnknownAccount
	}

	if r.decider != nil {
		return r.decider.Permits(ctx, s.Principal, permission)
	}
	for _, granted := range acct.permissions {
		if Implies(granted, permission) {
			return true, nil
		}
	}
	return false, nil
}

// Logout implements Realm. Idempotent.
func (r *MemoryRealm) Logout(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.ID)
	return nil
}

// SessionCount returns the number of live sessions. Useful in tests.
func (r *MemoryRealm) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
