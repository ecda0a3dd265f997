package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/ghstore/internal/github"
)

// Phase is the session state machine. Error details travel alongside in
// State, not inside the phase itself.
type Phase int

const (
	PhaseLoggedOut Phase = iota
	PhaseDevicePrompt
	PhasePolling
	PhaseLoggedIn
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoggedOut:
		return "logged-out"
	case PhaseDevicePrompt:
		return "device-prompt"
	case PhasePolling:
		return "polling"
	case PhaseLoggedIn:
		return "logged-in"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the observable session state. Session is set during DevicePrompt
// and Polling, Err during Error.
type State struct {
	Phase   Phase
	Session *github.DeviceAuth
	Err     error
}

// Session outcome errors.
var (
	// ErrNotConfigured means no OAuth client id is configured, so the flow
	// cannot even start.
	ErrNotConfigured = errors.New("no OAuth client id configured")

	// ErrAccessDenied means the user declined the authorization request.
	ErrAccessDenied = errors.New("authorization was denied")

	// ErrCodeExpired means the device code's lifetime ran out before the user
	// approved it.
	ErrCodeExpired = errors.New("device code expired before authorization")
)

// UnexpectedAuthError wraps a transport or protocol failure that is not one
// of the defined flow outcomes.
type UnexpectedAuthError struct {
	Err error
}

func (e *UnexpectedAuthError) Error() string {
	return fmt.Sprintf("authorization failed: %v", e.Err)
}

func (e *UnexpectedAuthError) Unwrap() error { return e.Err }

// deviceFlowAPI is the slice of the API client the session manager needs.
type deviceFlowAPI interface {
	StartDeviceFlow(ctx context.Context, clientID, scope string) (*github.DeviceAuth, error)
	PollDeviceToken(ctx context.Context, clientID, deviceCode string) (*github.Token, error)
}

// SessionManager drives one device-authorization flow at a time and keeps the
// resulting token in the credential store.
type SessionManager struct {
	api      deviceFlowAPI
	creds    *CredentialStore
	clientID string
	scope    string
	logger   *log.Logger

	// sleep is replaced in tests so polling does not wait in real time.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	state    State
	onChange func(State)
}

// NewSessionManager builds a session manager around the given API client and
// credential store.
func NewSessionManager(api deviceFlowAPI, creds *CredentialStore, clientID, scope string, logger *log.Logger) *SessionManager {
	phase := PhaseLoggedOut
	if creds.Current() != "" {
		phase = PhaseLoggedIn
	}
	return &SessionManager{
		api:      api,
		creds:    creds,
		clientID: clientID,
		scope:    scope,
		logger:   logger,
		sleep:    sleepCtx,
		state:    State{Phase: phase},
	}
}

// OnChange registers a single observer for state transitions. The observer is
// called synchronously with each new state.
func (m *SessionManager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// State returns the current session state.
func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) setState(s State) {
	m.mu.Lock()
	m.state = s
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// StartDeviceFlow requests a device code and moves the session to
// DevicePrompt. The returned session carries the user code and verification
// URI to show the user.
func (m *SessionManager) StartDeviceFlow(ctx context.Context) (*github.DeviceAuth, error) {
	if m.clientID == "" {
		err := ErrNotConfigured
		m.setState(State{Phase: PhaseError, Err: err})
		return nil, err
	}

	auth, err := m.api.StartDeviceFlow(ctx, m.clientID, m.scope)
	if err != nil {
		wrapped := &UnexpectedAuthError{Err: err}
		m.setState(State{Phase: PhaseError, Err: wrapped})
		return nil, wrapped
	}

	m.setState(State{Phase: PhaseDevicePrompt, Session: auth})
	return auth, nil
}

// AwaitDeviceToken polls for the token until the user approves, the device
// code's lifetime runs out, or the flow fails. The poll interval starts at
// the server-provided value and grows by two seconds on every slow_down.
// Each wait consumes the expires_in budget, so polling never outlives the
// code.
func (m *SessionManager) AwaitDeviceToken(ctx context.Context, auth *github.DeviceAuth) error {
	m.setState(State{Phase: PhasePolling, Session: auth})

	interval := time.Duration(auth.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	remaining := time.Duration(auth.ExpiresIn) * time.Second

	for {
		if remaining <= 0 {
			return m.fail(ErrCodeExpired)
		}

		token, err := m.api.PollDeviceToken(ctx, m.clientID, auth.DeviceCode)
		switch {
		case err == nil:
			if err := m.creds.Save(token.AccessToken); err != nil {
				return m.fail(&UnexpectedAuthError{Err: err})
			}
			m.setState(State{Phase: PhaseLoggedIn})
			return nil
		case errors.Is(err, github.ErrAuthorizationPending):
			// Keep waiting.
		case errors.Is(err, github.ErrSlowDown):
			interval += 2 * time.Second
		case errors.Is(err, github.ErrAccessDenied):
			return m.fail(ErrAccessDenied)
		case errors.Is(err, github.ErrDeviceCodeExpired):
			return m.fail(ErrCodeExpired)
		default:
			return m.fail(&UnexpectedAuthError{Err: err})
		}

		if err := m.sleep(ctx, interval); err != nil {
			return m.fail(&UnexpectedAuthError{Err: err})
		}
		remaining -= interval
	}
}

// Logout clears the stored credential and returns the session to LoggedOut.
func (m *SessionManager) Logout() error {
	if err := m.creds.Clear(); err != nil {
		return err
	}
	m.setState(State{Phase: PhaseLoggedOut})
	return nil
}

func (m *SessionManager) fail(err error) error {
	if m.logger != nil {
		m.logger.Warn("device authorization failed", "error", err)
	}
	m.setState(State{Phase: PhaseError, Err: err})
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
