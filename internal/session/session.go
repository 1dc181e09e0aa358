// Package session owns authentication state: who is logged in, whether a
// login is in flight, and why the last one failed.
package session

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
	"expensetracker/internal/status"
)

type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticating
	Authenticated
	AuthFailed
)

func (s AuthState) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case AuthFailed:
		return "auth_failed"
	default:
		return "unauthenticated"
	}
}

// FormMode is which credential form the presentation layer shows.
type FormMode string

const (
	FormLogin    FormMode = "login"
	FormRegister FormMode = "register"
)

const (
	MsgLoginOK      = "Login successful"
	MsgLoginFailed  = "Login failed"
	MsgRegisterOK   = "User registered successfully. You can now login."
	MsgRegisterFail = "Registration failed"
	MsgLoggedOut    = "Logged out"
)

var (
	ErrAlreadyAuthenticated = errors.New("already logged in")
	ErrLoginInProgress      = errors.New("login already in progress")
)

// Snapshot is a consistent copy of the session. Username is empty unless
// State is Authenticated; Reason is set only for AuthFailed.
type Snapshot struct {
	State    AuthState
	Username string
	Reason   string
	Form     FormMode
}

type Manager struct {
	mu       sync.Mutex
	state    AuthState
	username string
	reason   string
	form     FormMode
	attempt  uint64 // bumped by every login and logout; stale completions are dropped

	auth   remote.AuthService
	status *status.Channel
	logger *log.Logger
}

func NewManager(auth remote.AuthService, ch *status.Channel, logger *log.Logger) *Manager {
	return &Manager{
		form:   FormLogin,
		auth:   auth,
		status: ch,
		logger: log.OrDiscard(logger).WithComponent(log.ComponentSession),
	}
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, Username: m.username, Reason: m.reason, Form: m.form}
}

// Username is the authenticated user, or "" when not authenticated.
func (m *Manager) Username() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.username
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Authenticated
}

func (m *Manager) SetForm(f FormMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.form = f
}

// Login authenticates against the service. It returns true when the session
// ended Authenticated. Only validation errors, ErrAlreadyAuthenticated and
// ErrLoginInProgress are returned; a rejected or failed call is reported on
// the status channel and leaves the session in AuthFailed.
func (m *Manager) Login(ctx context.Context, username, password string) (bool, error) {
	cred := core.Credentials{Username: username, Password: password}
	if err := cred.Validate(); err != nil {
		m.status.Failure(ctx, log.OpLogin, err.Error())
		return false, err
	}

	m.mu.Lock()
	switch m.state {
	case Authenticated:
		m.mu.Unlock()
		return false, ErrAlreadyAuthenticated
	case Authenticating:
		m.mu.Unlock()
		return false, ErrLoginInProgress
	}
	m.attempt++
	attempt := m.attempt
	m.state = Authenticating
	m.username = ""
	m.reason = ""
	m.mu.Unlock()

	m.logger.DebugContext(ctx, "Login started", log.FieldUsername, username)
	resp, err := m.auth.Login(ctx, cred)

	m.mu.Lock()
	if attempt != m.attempt {
		m.mu.Unlock()
		m.logger.DebugContext(ctx, "Discarding stale login completion", log.FieldUsername, username)
		return false, nil
	}
	if err == nil && resp.StatusCode != http.StatusOK {
		err = &remote.RemoteError{StatusCode: resp.StatusCode}
	}
	if err != nil {
		reason := remote.MessageOr(err, MsgLoginFailed)
		m.state = AuthFailed
		m.reason = reason
		m.mu.Unlock()

		m.logger.WarnContext(ctx, "Login failed", log.FieldUsername, username, log.FieldError, err)
		m.status.Failure(ctx, log.OpLogin, reason)
		return false, nil
	}
	m.state = Authenticated
	m.username = username
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Login succeeded", log.FieldUsername, username)
	m.status.Success(ctx, log.OpLogin, MsgLoginOK)
	return true, nil
}

// Register creates an account. It never changes the auth state; on success
// the form switches back to login.
func (m *Manager) Register(ctx context.Context, username, password string) error {
	cred := core.Credentials{Username: username, Password: password}
	if err := cred.Validate(); err != nil {
		m.status.Failure(ctx, log.OpRegister, err.Error())
		return err
	}

	resp, err := m.auth.Register(ctx, cred)
	if err != nil {
		m.logger.WarnContext(ctx, "Registration failed", log.FieldUsername, username, log.FieldError, err)
		m.status.Failure(ctx, log.OpRegister, remote.MessageOr(err, MsgRegisterFail))
		return nil
	}
	if !resp.Created() {
		m.logger.WarnContext(ctx, "Registration returned unexpected status",
			log.FieldUsername, username, log.FieldStatusCode, resp.StatusCode)
		m.status.Failure(ctx, log.OpRegister, MsgRegisterFail)
		return nil
	}

	m.SetForm(FormLogin)
	m.logger.InfoContext(ctx, "User registered", log.FieldUsername, username)
	m.status.Success(ctx, log.OpRegister, MsgRegisterOK)
	return nil
}

// Logout always succeeds and makes no network call. Any login still in
// flight is invalidated.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	previous := m.username
	m.attempt++
	m.state = Unauthenticated
	m.username = ""
	m.reason = ""
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "Logged out", log.FieldUsername, previous)
	m.status.Info(ctx, log.OpLogout, MsgLoggedOut)
}
