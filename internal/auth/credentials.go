// Package auth runs the GitHub device-authorization flow and owns the
// persisted credential every other component observes.
package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const credentialFile = "credentials"

// CredentialStore holds the current bearer token, persisted to a single file
// under the config directory. Subscribers get the current value immediately
// and a new value after every Save or Clear.
type CredentialStore struct {
	path string

	mu      sync.Mutex
	token   string
	subs    map[int]chan string
	nextSub int
}

// NewCredentialStore opens (and if needed creates) the credential store in
// dir. An existing persisted token is loaded.
func NewCredentialStore(dir string) (*CredentialStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	cs := &CredentialStore{
		path: filepath.Join(dir, credentialFile),
		subs: make(map[int]chan string),
	}

	data, err := os.ReadFile(cs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read credential file: %w", err)
		}
	} else {
		cs.token = strings.TrimSpace(string(data))
	}

	return cs, nil
}

// Current returns the current token, or "" when logged out.
func (cs *CredentialStore) Current() string {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.token
}

// Save persists the token and notifies subscribers.
func (cs *CredentialStore) Save(token string) error {
	if err := os.WriteFile(cs.path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	cs.mu.Lock()
	cs.token = token
	cs.broadcastLocked()
	cs.mu.Unlock()
	return nil
}

// Clear removes the persisted token and notifies subscribers with "".
func (cs *CredentialStore) Clear() error {
	if err := os.Remove(cs.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}

	cs.mu.Lock()
	cs.token = ""
	cs.broadcastLocked()
	cs.mu.Unlock()
	return nil
}

// Subscribe streams the credential: the current value is delivered
// immediately, then every change until ctx ends. Delivery is latest-wins for
// slow consumers.
func (cs *CredentialStore) Subscribe(ctx context.Context) <-chan string {
	cs.mu.Lock()
	id := cs.nextSub
	cs.nextSub++
	ch := make(chan string, 1)
	ch <- cs.token
	cs.subs[id] = ch
	cs.mu.Unlock()

	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer func() {
			cs.mu.Lock()
			delete(cs.subs, id)
			cs.mu.Unlock()
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-ch:
				select {
				case <-out:
				default:
				}
				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (cs *CredentialStore) broadcastLocked() {
	for _, ch := range cs.subs {
		select {
		case <-ch:
		default:
		}
		ch <- cs.token
	}
}

// TokenSource returns a function suitable for the API client's per-request
// token lookup.
func (cs *CredentialStore) TokenSource() func() string {
	return cs.Current
}
