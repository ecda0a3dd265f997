package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Typed outcomes of a device-token poll. The auth session manager branches on
// these with errors.Is; the raw OAuth error strings never leave this package.
var (
	// ErrAuthorizationPending means the user has not yet entered the code.
	ErrAuthorizationPending = errors.New("github: authorization pending")

	// ErrSlowDown means the client is polling too fast and must widen its
	// interval before the next poll.
	ErrSlowDown = errors.New("github: slow down")

	// ErrAccessDenied means the user rejected the authorization request.
	ErrAccessDenied = errors.New("github: access denied")

	// ErrDeviceCodeExpired means the device code lapsed before the user
	// completed authorization.
	ErrDeviceCodeExpired = errors.New("github: device code expired")
)

// DeviceAuth describes one device-authorization attempt. It is ephemeral:
// discarded on success, expiry, or cancellation.
type DeviceAuth struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int // seconds until the device code lapses
	Interval                int // minimum seconds between token polls
}

// Token is a successfully issued OAuth credential.
type Token struct {
	AccessToken string
	TokenType   string
	Scope       string
}

type deviceAuthWire struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type tokenWire struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// StartDeviceFlow requests a device code for the OAuth device-authorization
// grant. The returned session drives the user-facing prompt and the poll loop.
func (c *Client) StartDeviceFlow(ctx context.Context, clientID, scope string) (*DeviceAuth, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("scope", scope)

	var wire deviceAuthWire
	if err := c.postForm(ctx, c.authBase+"/login/device/code", form, &wire); err != nil {
		return nil, fmt.Errorf("starting device flow: %w", err)
	}
	if wire.DeviceCode == "" || wire.UserCode == "" {
		return nil, fmt.Errorf("starting device flow: response missing device or user code")
	}

	return &DeviceAuth{
		DeviceCode:              wire.DeviceCode,
		UserCode:                wire.UserCode,
		VerificationURI:         wire.VerificationURI,
		VerificationURIComplete: wire.VerificationURIComplete,
		ExpiresIn:               wire.ExpiresIn,
		Interval:                wire.Interval,
	}, nil
}

// PollDeviceToken performs one poll of the token endpoint. It returns the
// token on success, or one of the typed sentinel errors above while the grant
// is still pending or has terminated. Unknown OAuth errors come back as plain
// errors carrying the server's error code.
func (c *Client) PollDeviceToken(ctx context.Context, clientID, deviceCode string) (*Token, error) {
	form := url.Values{}
	form.Set("client_id", clientID)
	form.Set("device_code", deviceCode)
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:device_code")

	var wire tokenWire
	if err := c.postForm(ctx, c.authBase+"/login/oauth/access_token", form, &wire); err != nil {
		return nil, fmt.Errorf("polling device token: %w", err)
	}

	if wire.AccessToken != "" {
		return &Token{
			AccessToken: wire.AccessToken,
			TokenType:   wire.TokenType,
			Scope:       wire.Scope,
		}, nil
	}

	switch wire.Error {
	case "authorization_pending":
		return nil, ErrAuthorizationPending
	case "slow_down":
		return nil, ErrSlowDown
	case "access_denied":
		return nil, ErrAccessDenied
	case "expired_token", "expired_device_code":
		return nil, ErrDeviceCodeExpired
	case "":
		return nil, fmt.Errorf("polling device token: empty response")
	default:
		if wire.ErrorDescription != "" {
			return nil, fmt.Errorf("polling device token: %s: %s", wire.Error, wire.ErrorDescription)
		}
		return nil, fmt.Errorf("polling device token: %s", wire.Error)
	}
}

// postForm sends a urlencoded POST with Accept: application/json and decodes
// the JSON response into out. GitHub's OAuth endpoints return 200 even for
// in-band errors, so status handling stays minimal here.
func (c *Client) postForm(ctx context.Context, reqURL string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
