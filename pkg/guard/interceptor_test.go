package guard

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gatewarden/gatewarden/pkg/pipeline"
	"github.com/gatewarden/gatewarden/pkg/realm"
	"github.com/gatewarden/gatewarden/pkg/token"
)

var testPassphrase = []byte("sesame-open-sesame")

// stubRealm records every capability call so tests can assert on the
// interceptor's interaction protocol.
type stubRealm struct {
	mu          sync.Mutex
	loginCalls  []loginCall
	permCalls   []string
	logoutCalls int

	loginErr  error
	permitted map[string]bool
	permErr   error
}

type loginCall struct {
	username   string
	rememberMe bool
}

func (r *stubRealm) Login(ctx context.Context, username string, secret []byte, rememberMe bool) (*realm.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loginCalls = append(r.loginCalls, loginCall{username: username, rememberMe: rememberMe})
	if r.loginErr != nil {
		return nil, r.loginErr
	}
	return &realm.Session{
		ID:            fmt.Sprintf("sess-%d", len(r.loginCalls)),
		Principal:     username,
		Authenticated: true,
		RememberMe:    rememberMe,
		EstablishedAt: time.Now().UTC(),
	}, nil
}

func (r *stubRealm) IsPermitted(ctx context.Context, s *realm.Session, permission string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.permCalls = append(r.permCalls, permission)
	if r.permErr != nil {
		return false, r.permErr
	}
	return r.permitted[permission], nil
}

func (r *stubRealm) Logout(ctx context.Context, s *realm.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logoutCalls++
	return nil
}

// nextRecorder counts continuation invocations.
type nextRecorder struct {
	calls int
}

func (n *nextRecorder) Process(ctx context.Context, ex *pipeline.Exchange) error {
	n.calls++
	return nil
}

func sealedHeader(t *testing.T, username, secret string) string {
	t.Helper()
	value, err := token.SealBase64(
		token.Credential{Username: username, Secret: []byte(secret)},
		token.NewAESGCM(), testPassphrase,
	)
	if err != nil {
		t.Fatalf("failed to seal credential: %v", err)
	}
	return value
}

func newTestInterceptor(t *testing.T, rlm realm.Realm, next pipeline.Processor, opts ...PolicyOption) *Interceptor {
	t.Helper()
	opts = append([]PolicyOption{WithBase64Transport()}, opts...)
	policy, err := NewPolicy(token.NewAESGCM(), testPassphrase, opts...)
	if err != nil {
		t.Fatalf("failed to build policy: %v", err)
	}
	ic, err := NewInterceptor(next, policy, rlm)
	if err != nil {
		t.Fatalf("failed to build interceptor: %v", err)
	}
	return ic
}

func TestInterceptor_MissingHeader(t *testing.T) {
	t.Parallel()
	t.Log("Testing: exchange without the token header is rejected before any realm call")

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeMissingCredential {
		t.Fatalf("expected %s, got %v", ErrCodeMissingCredential, err)
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d calls", next.calls)
	}
	if !ex.Failed() || ErrorCode(ex.Err()) != ErrCodeMissingCredential {
		t.Errorf("expected failure outcome on exchange, got %v", ex.Err())
	}
	if len(rlm.loginCalls) != 0 {
		t.Errorf("expected no login call, got %d", len(rlm.loginCalls))
	}
}

func TestInterceptor_MalformedBase64(t *testing.T) {
	t.Parallel()

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, "%%% not base64 %%%")
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeMalformedCredential {
		t.Fatalf("expected %s, got %v", ErrCodeMalformedCredential, err)
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d calls", next.calls)
	}
}

func TestInterceptor_WrongKey(t *testing.T) {
	t.Parallel()
	t.Log("Testing: a token sealed under a different passphrase yields the single decryption error")

	sealed, err := token.SealBase64(
		token.Credential{Username: "alice", Secret: []byte("pw")},
		token.NewAESGCM(), []byte("some other passphrase"),
	)
	if err != nil {
		t.Fatalf("failed to seal credential: %v", err)
	}

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealed)
	perr := ic.Process(context.Background(), ex)

	if ErrorCode(perr) != ErrCodeDecryptionFailed {
		t.Fatalf("expected %s, got %v", ErrCodeDecryptionFailed, perr)
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d calls", next.calls)
	}
}

func TestInterceptor_MalformedPayload(t *testing.T) {
	t.Parallel()
	t.Log("Testing: decrypted bytes that are not a credential are rejected")

	cipher := token.NewAESGCM()
	sealed, err := cipher.Encrypt([]byte("this is not cbor"), testPassphrase)
	if err != nil {
		t.Fatalf("failed to encrypt: %v", err)
	}

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, base64.StdEncoding.EncodeToString(sealed))
	perr := ic.Process(context.Background(), ex)

	if ErrorCode(perr) != ErrCodeMalformedCredential {
		t.Fatalf("expected %s, got %v", ErrCodeMalformedCredential, perr)
	}
}

func TestInterceptor_RawTransport(t *testing.T) {
	t.Parallel()
	t.Log("Testing: without base64 transport, the header carries raw encrypted bytes")

	sealed, err := token.Seal(
		token.Credential{Username: "alice", Secret: []byte("pw")},
		token.NewAESGCM(), testPassphrase,
	)
	if err != nil {
		t.Fatalf("failed to seal credential: %v", err)
	}

	rlm := &stubRealm{}
	next := &nextRecorder{}
	policy, err := NewPolicy(token.NewAESGCM(), testPassphrase)
	if err != nil {
		t.Fatalf("failed to build policy: %v", err)
	}
	ic, err := NewInterceptor(next, policy, rlm)
	if err != nil {
		t.Fatalf("failed to build interceptor: %v", err)
	}

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealed)
	if perr := ic.Process(context.Background(), ex); perr != nil {
		t.Fatalf("expected success, got %v", perr)
	}
	if next.calls != 1 {
		t.Errorf("expected next invoked once, got %d", next.calls)
	}
	if len(rlm.loginCalls) != 1 || rlm.loginCalls[0].username != "alice" {
		t.Errorf("expected one login for alice, got %+v", rlm.loginCalls)
	}
}

func TestInterceptor_SessionReuse(t *testing.T) {
	t.Parallel()
	t.Log("Testing: matching authenticated session is reused without a login call")

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	ex.SetProperty(SubjectProperty, &realm.Session{
		ID:            "prior",
		Principal:     "alice",
		Authenticated: true,
	})

	if err := ic.Process(context.Background(), ex); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(rlm.loginCalls) != 0 {
		t.Errorf("expected no login call on session reuse, got %d", len(rlm.loginCalls))
	}
	if next.calls != 1 {
		t.Errorf("expected next invoked once, got %d", next.calls)
	}
}

func TestInterceptor_SessionPrincipalMismatch(t *testing.T) {
	t.Parallel()
	t.Log("Testing: a session for a different principal forces a fresh login")

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	ex.SetProperty(SubjectProperty, &realm.Session{
		ID:            "prior",
		Principal:     "bob",
		Authenticated: true,
	})

	if err := ic.Process(context.Background(), ex); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(rlm.loginCalls) != 1 || rlm.loginCalls[0].username != "alice" {
		t.Fatalf("expected one login for alice, got %+v", rlm.loginCalls)
	}
	if !rlm.loginCalls[0].rememberMe {
		t.Errorf("expected rememberMe=true when reauthentication is not forced")
	}
}

func TestInterceptor_ForcedReauthentication(t *testing.T) {
	t.Parallel()
	t.Log("Testing: alwaysReauthenticate forces login (rememberMe=false) and exactly one logout")

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next, WithAlwaysReauthenticate())

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	// Even a matching, already-authenticated principal must not be reused.
	ex.SetProperty(SubjectProperty, &realm.Session{
		ID:            "prior",
		Principal:     "alice",
		Authenticated: true,
	})

	if err := ic.Process(context.Background(), ex); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(rlm.loginCalls) != 1 {
		t.Fatalf("expected exactly one login, got %d", len(rlm.loginCalls))
	}
	if rlm.loginCalls[0].rememberMe {
		t.Errorf("expected rememberMe=false under forced reauthentication")
	}
	if rlm.logoutCalls != 1 {
		t.Errorf("expected exactly one logout, got %d", rlm.logoutCalls)
	}
	if _, ok := ex.Property(SubjectProperty); ok {
		t.Errorf("expected subject property cleared after forced logout")
	}
	if next.calls != 1 {
		t.Errorf("expected next invoked once, got %d", next.calls)
	}
}

func TestInterceptor_ForcedReauthenticationLogoutOnDenial(t *testing.T) {
	t.Parallel()
	t.Log("Testing: logout still runs exactly once when authorization is denied")

	rlm := &stubRealm{permitted: map[string]bool{}}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next,
		WithAlwaysReauthenticate(),
		WithRequiredPermissions("vault:open"),
	)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeForbidden {
		t.Fatalf("expected %s, got %v", ErrCodeForbidden, err)
	}
	if rlm.logoutCalls != 1 {
		t.Errorf("expected exactly one logout after denied authorization, got %d", rlm.logoutCalls)
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d", next.calls)
	}
}

func TestInterceptor_NoLogoutWhenLoginFails(t *testing.T) {
	t.Parallel()
	t.Log("Testing: a failed login leaves no session to log out and skips authorization")

	rlm := &stubRealm{
		loginErr:  realm.ErrIncorrectCredentials,
		permitted: map[string]bool{"vault:open": true},
	}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next,
		WithAlwaysReauthenticate(),
		WithRequiredPermissions("vault:open"),
	)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "bad"))
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeIncorrectCredentials {
		t.Fatalf("expected %s, got %v", ErrCodeIncorrectCredentials, err)
	}
	if rlm.logoutCalls != 0 {
		t.Errorf("expected no logout without a session, got %d", rlm.logoutCalls)
	}
	if len(rlm.permCalls) != 0 {
		t.Errorf("expected authorization never to run after failed login, got %v", rlm.permCalls)
	}
}

func TestInterceptor_PermissionORSemantics(t *testing.T) {
	t.Parallel()
	t.Log("Testing: permissions are probed in declared order with short-circuit OR")

	rlm := &stubRealm{permitted: map[string]bool{"zone:write": true}}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next,
		WithRequiredPermissions("zone:read", "zone:write", "zone:admin"),
	)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	if err := ic.Process(context.Background(), ex); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	want := []string{"zone:read", "zone:write"}
	if len(rlm.permCalls) != len(want) {
		t.Fatalf("expected permission probes %v, got %v", want, rlm.permCalls)
	}
	for i, p := range want {
		if rlm.permCalls[i] != p {
			t.Errorf("probe %d: expected %s, got %s", i, p, rlm.permCalls[i])
		}
	}
	if next.calls != 1 {
		t.Errorf("expected next invoked once, got %d", next.calls)
	}
}

func TestInterceptor_NoPermissionGranted(t *testing.T) {
	t.Parallel()

	rlm := &stubRealm{permitted: map[string]bool{}}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next,
		WithRequiredPermissions("zone:read", "zone:write"),
	)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeForbidden {
		t.Fatalf("expected %s, got %v", ErrCodeForbidden, err)
	}
	if len(rlm.permCalls) != 2 {
		t.Errorf("expected both permissions probed, got %v", rlm.permCalls)
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d", next.calls)
	}
}

func TestInterceptor_EmptyPermissionList(t *testing.T) {
	t.Parallel()
	t.Log("Testing: empty permission set authorizes without consulting the realm")

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	if err := ic.Process(context.Background(), ex); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(rlm.permCalls) != 0 {
		t.Errorf("expected no permission probes, got %v", rlm.permCalls)
	}
	if next.calls != 1 {
		t.Errorf("expected next invoked once, got %d", next.calls)
	}
}

func TestInterceptor_PermissionProbeErrorFailsSecure(t *testing.T) {
	t.Parallel()

	rlm := &stubRealm{permErr: errors.New("store unavailable")}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next, WithRequiredPermissions("zone:read"))

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeForbidden {
		t.Fatalf("expected %s, got %v", ErrCodeForbidden, err)
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d", next.calls)
	}
}

func TestInterceptor_SuccessScenario(t *testing.T) {
	t.Parallel()
	t.Log("Scenario: base64 transport, no forced reauthentication, no permissions; alice is admitted")

	rlm := &stubRealm{}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	if err := ic.Process(context.Background(), ex); err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if next.calls != 1 {
		t.Errorf("expected next invoked exactly once, got %d", next.calls)
	}
	if ex.Failed() {
		t.Errorf("expected no error on exchange, got %v", ex.Err())
	}
	v, ok := ex.Property(SubjectProperty)
	if !ok {
		t.Fatal("expected subject property set after login")
	}
	s, ok := v.(*realm.Session)
	if !ok || s.Principal != "alice" || !s.Authenticated {
		t.Errorf("expected authenticated session for alice, got %+v", v)
	}
}

func TestInterceptor_UnknownAccountScenario(t *testing.T) {
	t.Parallel()
	t.Log("Scenario: identity store reports an unknown account; message names the user")

	rlm := &stubRealm{loginErr: realm.ErrUnknownAccount}
	next := &nextRecorder{}
	ic := newTestInterceptor(t, rlm, next)

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeUnknownAccount {
		t.Fatalf("expected %s, got %v", ErrCodeUnknownAccount, err)
	}
	var serr *SecurityError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SecurityError, got %T", err)
	}
	if want := "no user with username of alice"; serr.Message != want {
		t.Errorf("expected message %q, got %q", want, serr.Message)
	}
	if !errors.Is(err, realm.ErrUnknownAccount) {
		t.Errorf("expected the realm's error preserved as cause")
	}
	if next.calls != 0 {
		t.Errorf("expected next never invoked, got %d", next.calls)
	}
}

func TestInterceptor_LockedAccountWording(t *testing.T) {
	t.Parallel()

	rlm := &stubRealm{loginErr: realm.ErrLockedAccount}
	ic := newTestInterceptor(t, rlm, &nextRecorder{})

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "carol", "pw"))
	err := ic.Process(context.Background(), ex)

	var serr *SecurityError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SecurityError, got %v", err)
	}
	if serr.Code != ErrCodeLockedAccount {
		t.Errorf("expected %s, got %s", ErrCodeLockedAccount, serr.Code)
	}
	if want := "account for username carol is locked; contact administrator"; serr.Message != want {
		t.Errorf("expected message %q, got %q", want, serr.Message)
	}
}

func TestInterceptor_GenericAuthFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("ldap timeout")
	rlm := &stubRealm{loginErr: cause}
	ic := newTestInterceptor(t, rlm, &nextRecorder{})

	ex := pipeline.NewExchange()
	ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
	err := ic.Process(context.Background(), ex)

	if ErrorCode(err) != ErrCodeAuthenticationFailed {
		t.Fatalf("expected %s, got %v", ErrCodeAuthenticationFailed, err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected underlying cause preserved")
	}
}

func TestInterceptor_TransportRoundTrip(t *testing.T) {
	t.Parallel()
	t.Log("Testing: seal then recover is the identity on the credential")

	for _, tc := range []struct {
		name     string
		username string
		secret   string
	}{
		{"simple", "alice", "pw"},
		{"unicode", "józef", "pa••word"},
		{"empty secret", "bob", ""},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			rlm := &stubRealm{}
			ic := newTestInterceptor(t, rlm, &nextRecorder{})

			ex := pipeline.NewExchange()
			ex.SetHeader(SecurityTokenHeader, sealedHeader(t, tc.username, tc.secret))
			if err := ic.Process(context.Background(), ex); err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if len(rlm.loginCalls) != 1 || rlm.loginCalls[0].username != tc.username {
				t.Errorf("expected login for %q, got %+v", tc.username, rlm.loginCalls)
			}
		})
	}
}

// recordingAudit captures emitted audit callbacks.
type recordingAudit struct {
	mu       sync.Mutex
	success  []string
	failure  []string
	denied   []string
	rejected []string
}

func (a *recordingAudit) EmitAuthSuccess(principal string, reused bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.success = append(a.success, principal)
}

func (a *recordingAudit) EmitAuthFailure(username, code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failure = append(a.failure, code)
}

func (a *recordingAudit) EmitAuthzDenied(principal string, required []string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.denied = append(a.denied, principal)
}

func (a *recordingAudit) EmitTokenRejected(code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejected = append(a.rejected, code)
}

func TestInterceptor_AuditOutcomes(t *testing.T) {
	t.Parallel()
	t.Log("Testing: each outcome class reaches the audit emitter once")

	policy, err := NewPolicy(token.NewAESGCM(), testPassphrase, WithBase64Transport())
	if err != nil {
		t.Fatalf("failed to build policy: %v", err)
	}

	t.Run("token rejected", func(t *testing.T) {
		t.Parallel()
		aud := &recordingAudit{}
		ic, _ := NewInterceptor(&nextRecorder{}, policy, &stubRealm{}, WithAuditEmitter(aud))
		ic.Process(context.Background(), pipeline.NewExchange())
		if len(aud.rejected) != 1 || aud.rejected[0] != ErrCodeMissingCredential {
			t.Errorf("expected one token.rejected with %s, got %v", ErrCodeMissingCredential, aud.rejected)
		}
	})

	t.Run("auth failure", func(t *testing.T) {
		t.Parallel()
		aud := &recordingAudit{}
		ic, _ := NewInterceptor(&nextRecorder{}, policy, &stubRealm{loginErr: realm.ErrUnknownAccount}, WithAuditEmitter(aud))
		ex := pipeline.NewExchange()
		ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
		ic.Process(context.Background(), ex)
		if len(aud.failure) != 1 || aud.failure[0] != ErrCodeUnknownAccount {
			t.Errorf("expected one auth.failure with %s, got %v", ErrCodeUnknownAccount, aud.failure)
		}
	})

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		aud := &recordingAudit{}
		ic, _ := NewInterceptor(&nextRecorder{}, policy, &stubRealm{}, WithAuditEmitter(aud))
		ex := pipeline.NewExchange()
		ex.SetHeader(SecurityTokenHeader, sealedHeader(t, "alice", "pw"))
		ic.Process(context.Background(), ex)
		if len(aud.success) != 1 || aud.success[0] != "alice" {
			t.Errorf("expected one auth.success for alice, got %v", aud.success)
		}
	})
}
