package guard

import (
	"fmt"

	"github.com/gatewarden/gatewarden/pkg/token"
)

// Policy is the immutable security declaration an interceptor enforces:
// how the token travels, how it is decrypted, whether every call must
// reauthenticate, and which permissions authorize a subject. A Policy is
// constructed once and is safe for concurrent use by many invocations.
type Policy struct {
	base64Transport      bool
	cipher               token.Cipher
	passphrase           []byte
	alwaysReauthenticate bool
	requiredPermissions  []string
}

// PolicyOption configures a Policy at construction time.
type PolicyOption func(*Policy)

// WithBase64Transport declares the token header as base64 text that must
// be decoded before decryption. Without it the header carries raw bytes.
func WithBase64Transport() PolicyOption {
	return func(p *Policy) {
		p.base64Transport = true
	}
}

// WithAlwaysReauthenticate forces a fresh login on every invocation and
// a logout once authorization has run, ignoring any existing session.
func WithAlwaysReauthenticate() PolicyOption {
	return func(p *Policy) {
		p.alwaysReauthenticate = true
	}
}

// WithRequiredPermissions declares the permission set, in evaluation
// order. A subject holding any one of them is authorized. An empty set
// means no authorization check is performed.
func WithRequiredPermissions(permissions ...string) PolicyOption {
	return func(p *Policy) {
		p.requiredPermissions = append([]string(nil), permissions...)
	}
}

// NewPolicy creates a validated policy. Decryption always requires both a
// cipher and a non-empty passphrase; the passphrase is key material and
// is never logged.
func NewPolicy(cipher token.Cipher, passphrase []byte, opts ...PolicyOption) (*Policy, error) {
	if cipher == nil {
		return nil, fmt.Errorf("policy requires a cipher")
	}
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("policy requires a passphrase")
	}
	p := &Policy{
		cipher:     cipher,
		passphrase: append([]byte(nil), passphrase...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Base64Transport reports whether the token header is base64 text.
func (p *Policy) Base64Transport() bool {
	return p.base64Transport
}

// AlwaysReauthenticate reports whether every invocation forces a fresh
// login and a trailing logout.
func (p *Policy) AlwaysReauthenticate() bool {
	return p.alwaysReauthenticate
}

// RequiredPermissions returns a copy of the declared permission set in
// evaluation order.
func (p *Policy) RequiredPermissions() []string {
	return append([]string(nil), p.requiredPermissions...)
}

// decrypt runs the policy cipher over encrypted token bytes.
func (p *Policy) decrypt(ciphertext []byte) ([]byte, error) {
	return p.cipher.Decrypt(ciphertext, p.passphrase)
}
