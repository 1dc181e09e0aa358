package session

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/remote"
	"expensetracker/internal/status"
)

type mockAuth struct {
	loginFn    func(ctx context.Context, c core.Credentials) (remote.Response, error)
	registerFn func(ctx context.Context, c core.Credentials) (remote.Response, error)
	calls      int
}

func (m *mockAuth) Login(ctx context.Context, c core.Credentials) (remote.Response, error) {
	m.calls++
	if m.loginFn != nil {
		return m.loginFn(ctx, c)
	}
	return remote.Response{StatusCode: http.StatusOK}, nil
}

func (m *mockAuth) Register(ctx context.Context, c core.Credentials) (remote.Response, error) {
	m.calls++
	if m.registerFn != nil {
		return m.registerFn(ctx, c)
	}
	return remote.Response{StatusCode: http.StatusCreated}, nil
}

func newManager(auth *mockAuth) (*Manager, *status.Channel) {
	ch := status.NewChannel(nil)
	return NewManager(auth, ch, nil), ch
}

func TestInitialState(t *testing.T) {
	m, _ := newManager(&mockAuth{})
	snap := m.Snapshot()
	if snap.State != Unauthenticated || snap.Username != "" || snap.Form != FormLogin {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
}

func TestLoginSuccess(t *testing.T) {
	auth := &mockAuth{}
	m, ch := newManager(auth)

	var sawAuthenticating bool
	auth.loginFn = func(ctx context.Context, c core.Credentials) (remote.Response, error) {
		snap := m.Snapshot()
		sawAuthenticating = snap.State == Authenticating && snap.Username == ""
		return remote.Response{StatusCode: http.StatusOK}, nil
	}

	ok, err := m.Login(context.Background(), "alice", "pw1")
	if err != nil || !ok {
		t.Fatalf("Login = %v, %v", ok, err)
	}
	if !sawAuthenticating {
		t.Fatal("expected Authenticating with no username while the call was in flight")
	}
	if snap := m.Snapshot(); snap.State != Authenticated || snap.Username != "alice" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if got := ch.Latest(); got.Kind != status.KindSuccess || got.Message != MsgLoginOK {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestLoginValidation(t *testing.T) {
	auth := &mockAuth{}
	m, ch := newManager(auth)

	tests := []struct {
		user, pass string
		want       error
	}{
		{"", "pw", core.ErrEmptyUsername},
		{"alice", "", core.ErrEmptyPassword},
	}
	for _, tt := range tests {
		_, err := m.Login(context.Background(), tt.user, tt.pass)
		if !errors.Is(err, tt.want) {
			t.Fatalf("Login(%q,%q) err = %v, want %v", tt.user, tt.pass, err, tt.want)
		}
	}
	if auth.calls != 0 {
		t.Fatalf("validation failures must not reach the service, got %d calls", auth.calls)
	}
	if m.Snapshot().State != Unauthenticated {
		t.Fatal("validation failure must not change state")
	}
	if ch.Latest().Kind != status.KindFailure {
		t.Fatal("validation failure should be reported")
	}
}

func TestLoginRejected(t *testing.T) {
	tests := []struct {
		name string
		err  error
		resp remote.Response
		want string
	}{
		{"server message", &remote.RemoteError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}, remote.Response{}, "Invalid credentials"},
		{"no payload", &remote.RemoteError{StatusCode: http.StatusInternalServerError}, remote.Response{}, MsgLoginFailed},
		{"network", errors.New("dial tcp: connection refused"), remote.Response{}, MsgLoginFailed},
		{"unexpected 2xx", nil, remote.Response{StatusCode: http.StatusNoContent}, MsgLoginFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuth{loginFn: func(context.Context, core.Credentials) (remote.Response, error) {
				return tt.resp, tt.err
			}}
			m, ch := newManager(auth)

			ok, err := m.Login(context.Background(), "alice", "pw1")
			if ok || err != nil {
				t.Fatalf("Login = %v, %v", ok, err)
			}
			snap := m.Snapshot()
			if snap.State != AuthFailed || snap.Reason != tt.want || snap.Username != "" {
				t.Fatalf("unexpected snapshot %+v", snap)
			}
			if got := ch.Latest(); got.Kind != status.KindFailure || got.Message != tt.want {
				t.Fatalf("unexpected status %+v", got)
			}
		})
	}
}

func TestLoginAfterFailureRetries(t *testing.T) {
	fail := true
	auth := &mockAuth{loginFn: func(context.Context, core.Credentials) (remote.Response, error) {
		if fail {
			return remote.Response{}, &remote.RemoteError{StatusCode: http.StatusUnauthorized}
		}
		return remote.Response{StatusCode: http.StatusOK}, nil
	}}
	m, _ := newManager(auth)
	_, _ = m.Login(context.Background(), "alice", "bad")
	fail = false
	if ok, _ := m.Login(context.Background(), "alice", "pw1"); !ok {
		t.Fatal("second attempt should succeed")
	}
	if snap := m.Snapshot(); snap.Reason != "" {
		t.Fatalf("reason should be cleared, got %q", snap.Reason)
	}
}

func TestLoginWhileAuthenticated(t *testing.T) {
	m, _ := newManager(&mockAuth{})
	_, _ = m.Login(context.Background(), "alice", "pw1")
	if _, err := m.Login(context.Background(), "bob", "pw2"); !errors.Is(err, ErrAlreadyAuthenticated) {
		t.Fatalf("expected ErrAlreadyAuthenticated, got %v", err)
	}
	if m.Username() != "alice" {
		t.Fatal("second login must not change the user")
	}
}

func TestLogoutDuringLoginDiscardsCompletion(t *testing.T) {
	auth := &mockAuth{}
	m, ch := newManager(auth)
	auth.loginFn = func(ctx context.Context, c core.Credentials) (remote.Response, error) {
		m.Logout(ctx)
		return remote.Response{StatusCode: http.StatusOK}, nil
	}

	ok, err := m.Login(context.Background(), "alice", "pw1")
	if ok || err != nil {
		t.Fatalf("Login = %v, %v", ok, err)
	}
	if snap := m.Snapshot(); snap.State != Unauthenticated || snap.Username != "" {
		t.Fatalf("stale login resurrected the session: %+v", snap)
	}
	if ch.Latest().Message != MsgLoggedOut {
		t.Fatalf("unexpected status %+v", ch.Latest())
	}
}

func TestLogout(t *testing.T) {
	m, ch := newManager(&mockAuth{})
	_, _ = m.Login(context.Background(), "alice", "pw1")
	m.Logout(context.Background())

	snap := m.Snapshot()
	if snap.State != Unauthenticated || snap.Username != "" || m.IsAuthenticated() {
		t.Fatalf("unexpected snapshot after logout %+v", snap)
	}
	if ch.Latest().Message != MsgLoggedOut {
		t.Fatalf("unexpected status %+v", ch.Latest())
	}

	// logout is unconditional
	m.Logout(context.Background())
	if m.Snapshot().State != Unauthenticated {
		t.Fatal("second logout should keep Unauthenticated")
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		resp     remote.Response
		err      error
		wantMsg  string
		wantKind status.Kind
		wantForm FormMode
	}{
		{"created", remote.Response{StatusCode: http.StatusCreated}, nil, MsgRegisterOK, status.KindSuccess, FormLogin},
		{"ok but not created", remote.Response{StatusCode: http.StatusOK}, nil, MsgRegisterFail, status.KindFailure, FormRegister},
		{"conflict", remote.Response{}, &remote.RemoteError{StatusCode: http.StatusConflict, Message: "User already exists"}, "User already exists", status.KindFailure, FormRegister},
		{"network", remote.Response{}, errors.New("timeout"), MsgRegisterFail, status.KindFailure, FormRegister},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth := &mockAuth{registerFn: func(context.Context, core.Credentials) (remote.Response, error) {
				return tt.resp, tt.err
			}}
			m, ch := newManager(auth)
			m.SetForm(FormRegister)

			if err := m.Register(context.Background(), "bob", "pw"); err != nil {
				t.Fatalf("Register: %v", err)
			}
			got := ch.Latest()
			if got.Message != tt.wantMsg || got.Kind != tt.wantKind {
				t.Fatalf("unexpected status %+v", got)
			}
			snap := m.Snapshot()
			if snap.Form != tt.wantForm {
				t.Fatalf("form = %s, want %s", snap.Form, tt.wantForm)
			}
			if snap.State != Unauthenticated {
				t.Fatal("register must never authenticate")
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	auth := &mockAuth{}
	m, _ := newManager(auth)
	if err := m.Register(context.Background(), "bob", ""); !errors.Is(err, core.ErrEmptyPassword) {
		t.Fatalf("expected ErrEmptyPassword, got %v", err)
	}
	if auth.calls != 0 {
		t.Fatal("validation failure must not reach the service")
	}
}

func TestAuthStateString(t *testing.T) {
	cases := map[AuthState]string{
		Unauthenticated: "unauthenticated",
		Authenticating:  "authenticating",
		Authenticated:   "authenticated",
		AuthFailed:      "auth_failed",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
