package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blackwell-systems/ghstore/internal/github"
)

type fakeDeviceAPI struct {
	auth      *github.DeviceAuth
	startErr  error
	pollErrs  []error
	token     *github.Token
	pollCount int
}

func (f *fakeDeviceAPI) StartDeviceFlow(ctx context.Context, clientID, scope string) (*github.DeviceAuth, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.auth, nil
}

func (f *fakeDeviceAPI) PollDeviceToken(ctx context.Context, clientID, deviceCode string) (*github.Token, error) {
	i := f.pollCount
	f.pollCount++
	if i < len(f.pollErrs) {
		if f.pollErrs[i] != nil {
			return nil, f.pollErrs[i]
		}
		return f.token, nil
	}
	return nil, f.pollErrs[len(f.pollErrs)-1]
}

func newTestManager(t *testing.T, api deviceFlowAPI) (*SessionManager, *CredentialStore) {
	t.Helper()
	creds, err := NewCredentialStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCredentialStore: %v", err)
	}
	m := NewSessionManager(api, creds, "client-id", "repo", nil)
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return m, creds
}

// TestStartDeviceFlowRequiresClientID verifies that an empty client id fails
// before any network request is made.
func TestStartDeviceFlowRequiresClientID(t *testing.T) {
	creds, err := NewCredentialStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewCredentialStore: %v", err)
	}
	m := NewSessionManager(&fakeDeviceAPI{}, creds, "", "repo", nil)

	_, err = m.StartDeviceFlow(context.Background())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if m.State().Phase != PhaseError {
		t.Errorf("expected error phase, got %v", m.State().Phase)
	}
}

// TestStartDeviceFlowPrompt verifies the transition into the device prompt
// state with the session details attached.
func TestStartDeviceFlowPrompt(t *testing.T) {
	api := &fakeDeviceAPI{auth: &github.DeviceAuth{
		DeviceCode:      "dev",
		UserCode:        "ABCD-1234",
		VerificationURI: "https://github.com/login/device",
		ExpiresIn:       900,
		Interval:        5,
	}}
	m, _ := newTestManager(t, api)

	auth, err := m.StartDeviceFlow(context.Background())
	if err != nil {
		t.Fatalf("StartDeviceFlow: %v", err)
	}
	if auth.UserCode != "ABCD-1234" {
		t.Errorf("unexpected user code %q", auth.UserCode)
	}
	st := m.State()
	if st.Phase != PhaseDevicePrompt || st.Session == nil {
		t.Errorf("expected device prompt with session, got %+v", st)
	}
}

// TestAwaitDeviceTokenSuccess verifies the happy path: pending polls followed
// by a token, which lands in the credential store.
func TestAwaitDeviceTokenSuccess(t *testing.T) {
	api := &fakeDeviceAPI{
		auth: &github.DeviceAuth{DeviceCode: "dev", ExpiresIn: 900, Interval: 5},
		pollErrs: []error{
			github.ErrAuthorizationPending,
			github.ErrAuthorizationPending,
			nil,
		},
		token: &github.Token{AccessToken: "gho_token"},
	}
	m, creds := newTestManager(t, api)

	if err := m.AwaitDeviceToken(context.Background(), api.auth); err != nil {
		t.Fatalf("AwaitDeviceToken: %v", err)
	}
	if got := creds.Current(); got != "gho_token" {
		t.Errorf("expected stored token, got %q", got)
	}
	if m.State().Phase != PhaseLoggedIn {
		t.Errorf("expected logged-in phase, got %v", m.State().Phase)
	}
}

// TestAwaitDeviceTokenBudget verifies that each wait consumes the device
// code's lifetime. With a 5 second interval and a 12 second budget a session
// that never gets approved expires after exactly three polls.
func TestAwaitDeviceTokenBudget(t *testing.T) {
	api := &fakeDeviceAPI{
		auth:     &github.DeviceAuth{DeviceCode: "dev", ExpiresIn: 12, Interval: 5},
		pollErrs: []error{github.ErrAuthorizationPending},
	}
	m, _ := newTestManager(t, api)

	err := m.AwaitDeviceToken(context.Background(), api.auth)
	if !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got %v", err)
	}
	if api.pollCount != 3 {
		t.Errorf("expected 3 polls, got %d", api.pollCount)
	}
}

// TestAwaitDeviceTokenSlowDown verifies that slow_down raises the interval
// for all subsequent waits in the session.
func TestAwaitDeviceTokenSlowDown(t *testing.T) {
	api := &fakeDeviceAPI{
		auth: &github.DeviceAuth{DeviceCode: "dev", ExpiresIn: 900, Interval: 5},
		pollErrs: []error{
			github.ErrSlowDown,
			github.ErrAuthorizationPending,
			nil,
		},
		token: &github.Token{AccessToken: "gho_token"},
	}
	m, _ := newTestManager(t, api)

	var waits []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	if err := m.AwaitDeviceToken(context.Background(), api.auth); err != nil {
		t.Fatalf("AwaitDeviceToken: %v", err)
	}
	if len(waits) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(waits))
	}
	if waits[0] != 7*time.Second || waits[1] != 7*time.Second {
		t.Errorf("expected 7s intervals after slow_down, got %v", waits)
	}
}

// TestAwaitDeviceTokenOutcomes verifies the mapping from poll errors to
// session outcomes.
func TestAwaitDeviceTokenOutcomes(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		pollErr error
		want    error
	}{
		{"denied", github.ErrAccessDenied, ErrAccessDenied},
		{"expired", github.ErrDeviceCodeExpired, ErrCodeExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeDeviceAPI{
				auth:     &github.DeviceAuth{DeviceCode: "dev", ExpiresIn: 900, Interval: 5},
				pollErrs: []error{tt.pollErr},
			}
			m, _ := newTestManager(t, api)
			err := m.AwaitDeviceToken(context.Background(), api.auth)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if m.State().Phase != PhaseError {
				t.Errorf("expected error phase, got %v", m.State().Phase)
			}
		})
	}

	t.Run("unexpected", func(t *testing.T) {
		api := &fakeDeviceAPI{
			auth:     &github.DeviceAuth{DeviceCode: "dev", ExpiresIn: 900, Interval: 5},
			pollErrs: []error{boom},
		}
		m, _ := newTestManager(t, api)
		err := m.AwaitDeviceToken(context.Background(), api.auth)
		var ue *UnexpectedAuthError
		if !errors.As(err, &ue) {
			t.Fatalf("expected UnexpectedAuthError, got %v", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("expected wrapped cause, got %v", err)
		}
	})
}

// TestLogout verifies that logging out clears the stored credential.
func TestLogout(t *testing.T) {
	m, creds := newTestManager(t, &fakeDeviceAPI{})
	if err := creds.Save("gho_token"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := m.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if creds.Current() != "" {
		t.Error("expected empty credential after logout")
	}
	if m.State().Phase != PhaseLoggedOut {
		t.Errorf("expected logged-out phase, got %v", m.State().Phase)
	}
}
