// Package guard implements the security interceptor and its policy.
//
// A Policy declares how a credential travels (base64 or raw bytes), the
// cipher and passphrase that protect it, whether every invocation must
// reauthenticate, and which permissions - any one of which - a subject
// must hold. An Interceptor applies that policy to each exchange:
// extract the token header, decode, decrypt, authenticate against the
// injected realm, authorize, then either continue the pipeline or attach
// a typed SecurityError and stop.
//
// All failures are terminal for the invocation; there are no retries and
// no default-permit fallback. The realm's underlying error is preserved
// as a wrapped cause for diagnostics while the externally visible
// message is the policy-level wording.
package guard
