// Package github is a thin binding to the GitHub REST API: release listing,
// asset downloads, and the OAuth device-authorization endpoints. It knows
// nothing about the local install state; callers compose it with the store.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// defaultPerPage is the number of releases fetched per API page.
	defaultPerPage = 30

	// maxPages bounds release pagination to avoid runaway requests.
	maxPages = 3

	// maxJSONResponseBytes caps JSON API response size (10 MB) so a
	// malformed or hostile response cannot exhaust memory.
	maxJSONResponseBytes = 10 << 20
)

// ErrNotFound is returned when a repository, release, or readme does not
// exist (or is not visible with the current credential).
var ErrNotFound = errors.New("github: not found")

// RateLimitError is returned when the GitHub API rate limit is exhausted.
type RateLimitError struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("github API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// Release is one published release of a repository.
type Release struct {
	ID          int64
	TagName     string
	Name        string
	Draft       bool
	Prerelease  bool
	PublishedAt string // ISO 8601; empty when the release was never published
	CreatedAt   string // ISO 8601
	Notes       string // release body markdown
	HTMLURL     string
	Assets      []Asset
}

// Asset is a single downloadable artifact attached to a release.
type Asset struct {
	ID          int64
	Name        string
	ContentType string
	Size        int64
	DownloadURL string
}

// Repository is the subset of repository metadata the store tracks.
type Repository struct {
	ID          int64
	Name        string
	FullName    string
	Owner       string
	OwnerAvatar string
	Description string
	Language    string
	HTMLURL     string
}

// Wire types. Kept private; exported types above are the API surface.

type releaseWire struct {
	ID          int64       `json:"id"`
	TagName     string      `json:"tag_name"`
	Name        string      `json:"name"`
	Draft       bool        `json:"draft"`
	Prerelease  bool        `json:"prerelease"`
	PublishedAt string      `json:"published_at"`
	CreatedAt   string      `json:"created_at"`
	Body        string      `json:"body"`
	HTMLURL     string      `json:"html_url"`
	Assets      []assetWire `json:"assets"`
}

type assetWire struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	DownloadURL string `json:"browser_download_url"`
}

type repoWire struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	Language    string `json:"language"`
	HTMLURL     string `json:"html_url"`
	Owner       struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	} `json:"owner"`
}

// Client queries the GitHub REST API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	httpClient *http.Client
	apiBase    string // e.g. "https://api.github.com"
	authBase   string // e.g. "https://github.com", hosts the device-flow endpoints
	userAgent  string
	token      func() string // returns the current bearer token, or ""
}

// Option configures a Client during construction.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxies.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) { g.httpClient = c }
}

// WithAPIBase overrides the REST API base URL, primarily for test servers.
func WithAPIBase(base string) Option {
	return func(g *Client) { g.apiBase = strings.TrimRight(base, "/") }
}

// WithAuthBase overrides the device-flow base URL, primarily for test servers.
func WithAuthBase(base string) Option {
	return func(g *Client) { g.authBase = strings.TrimRight(base, "/") }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(g *Client) { g.userAgent = ua }
}

// WithTokenSource sets a function consulted per request for the current
// bearer token. An empty return means the request goes out unauthenticated.
// A function (rather than a fixed string) lets the credential store rotate
// the token under a running client.
func WithTokenSource(fn func() string) Option {
	return func(g *Client) { g.token = fn }
}

// NewClient creates a Client with production defaults.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiBase:    "https://api.github.com",
		authBase:   "https://github.com",
		userAgent:  "ghstore",
		token:      func() string { return "" },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListReleases fetches the releases of owner/repo, newest pages first, with
// pagination followed up to maxPages. Draft and prerelease filtering is the
// caller's concern: the sync engine applies its own qualification rules.
func (c *Client) ListReleases(ctx context.Context, owner, repo string) ([]Release, error) {
	pageURL := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d",
		c.apiBase, url.PathEscape(owner), url.PathEscape(repo), defaultPerPage)

	var all []Release

	for page := 0; page < maxPages && pageURL != ""; page++ {
		resp, err := c.doAPI(ctx, http.MethodGet, pageURL)
		if err != nil {
			return nil, fmt.Errorf("listing releases for %s/%s: %w", owner, repo, err)
		}

		if rlErr := checkRateLimit(resp); rlErr != nil {
			resp.Body.Close()
			return nil, rlErr
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, fmt.Errorf("listing releases for %s/%s: %w", owner, repo, ErrNotFound)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("listing releases for %s/%s: unexpected status %d", owner, repo, resp.StatusCode)
		}

		var raw []releaseWire
		err = json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&raw)
		next := parseLinkHeader(resp.Header.Get("Link"))
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("listing releases for %s/%s: decoding response: %w", owner, repo, err)
		}

		for _, rw := range raw {
			all = append(all, toRelease(rw))
		}
		pageURL = next
	}

	return all, nil
}

// GetRepositoryByID resolves repository metadata from its numeric id. The
// store records the id so an app survives repository renames.
func (c *Client) GetRepositoryByID(ctx context.Context, id int64) (*Repository, error) {
	resp, err := c.doAPI(ctx, http.MethodGet, fmt.Sprintf("%s/repositories/%d", c.apiBase, id))
	if err != nil {
		return nil, fmt.Errorf("getting repository %d: %w", id, err)
	}
	defer resp.Body.Close()

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("getting repository %d: %w", id, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getting repository %d: unexpected status %d", id, resp.StatusCode)
	}

	var rw repoWire
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&rw); err != nil {
		return nil, fmt.Errorf("getting repository %d: decoding response: %w", id, err)
	}

	return &Repository{
		ID:          rw.ID,
		Name:        rw.Name,
		FullName:    rw.FullName,
		Owner:       rw.Owner.Login,
		OwnerAvatar: rw.Owner.AvatarURL,
		Description: rw.Description,
		Language:    rw.Language,
		HTMLURL:     rw.HTMLURL,
	}, nil
}

// GetRepository resolves repository metadata by owner and name.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, url.PathEscape(owner), url.PathEscape(repo))
	resp, err := c.doAPI(ctx, http.MethodGet, reqURL)
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	if err := checkRateLimit(resp); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getting repository %s/%s: unexpected status %d", owner, repo, resp.StatusCode)
	}

	var rw repoWire
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONResponseBytes)).Decode(&rw); err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: decoding response: %w", owner, repo, err)
	}

	return &Repository{
		ID:          rw.ID,
		Name:        rw.Name,
		FullName:    rw.FullName,
		Owner:       rw.Owner.Login,
		OwnerAvatar: rw.Owner.AvatarURL,
		Description: rw.Description,
		Language:    rw.Language,
		HTMLURL:     rw.HTMLURL,
	}, nil
}

// GetReadme fetches the raw readme of owner/repo from its default branch.
// Returns "" with no error when the repository has no readme.
func (c *Client) GetReadme(ctx context.Context, owner, repo string) (string, error) {
	reqURL := fmt.Sprintf("%s/repos/%s/%s/readme", c.apiBase, url.PathEscape(owner), url.PathEscape(repo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("getting readme for %s/%s: %w", owner, repo, err)
	}
	req.Header.Set("Accept", "application/vnd.github.raw")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	c.attachToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("getting readme for %s/%s: %w", owner, repo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("getting readme for %s/%s: unexpected status %d", owner, repo, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONResponseBytes))
	if err != nil {
		return "", fmt.Errorf("getting readme for %s/%s: %w", owner, repo, err)
	}
	return string(body), nil
}

// DownloadAsset opens a streaming reader over the asset at the given URL and
// reports the content length (-1 when unknown). The caller must close the
// returned reader.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", c.userAgent)
	c.attachToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("downloading asset %s: %w", redactURL(assetURL), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("downloading asset %s: unexpected status %d", redactURL(assetURL), resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

// doAPI executes an API request with common GitHub REST headers.
func (c *Client) doAPI(ctx context.Context, method, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.userAgent)
	c.attachToken(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// attachToken adds the Authorization header when a token is available and the
// request targets a known GitHub host. Downloads may redirect to third-party
// CDNs; the host check keeps the token from leaking there.
func (c *Client) attachToken(req *http.Request) {
	tok := c.token()
	if tok == "" || !c.isTrustedHost(req.URL) {
		return
	}
	req.Header.Set("Authorization", "Bearer "+tok)
}

func (c *Client) isTrustedHost(reqURL *url.URL) bool {
	for _, base := range []string{c.apiBase, c.authBase} {
		u, err := url.Parse(base)
		if err != nil {
			continue
		}
		if strings.EqualFold(reqURL.Host, u.Host) {
			return true
		}
	}
	// Production asset downloads are served from github.com and
	// objects.githubusercontent.com; trust only the former with the token.
	return strings.EqualFold(reqURL.Host, "github.com") &&
		strings.Contains(c.apiBase, "api.github.com")
}

// checkRateLimit inspects the X-RateLimit-* headers and returns a
// RateLimitError when the remaining quota is zero.
func checkRateLimit(resp *http.Response) error {
	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	resetUnix, _ := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// parseLinkHeader extracts the URL for the "next" page from a GitHub Link
// header. Returns "" if no next page exists.
//
// Example header: <https://api.github.com/...?page=2>; rel="next", <...>; rel="last"
func parseLinkHeader(header string) string {
	if header == "" {
		return ""
	}

	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if !strings.Contains(part, `rel="next"`) {
			continue
		}
		start := strings.Index(part, "<")
		end := strings.Index(part, ">")
		if start >= 0 && end > start {
			return part[start+1 : end]
		}
	}
	return ""
}

func toRelease(rw releaseWire) Release {
	assets := make([]Asset, 0, len(rw.Assets))
	for _, aw := range rw.Assets {
		assets = append(assets, Asset(aw))
	}
	return Release{
		ID:          rw.ID,
		TagName:     rw.TagName,
		Name:        rw.Name,
		Draft:       rw.Draft,
		Prerelease:  rw.Prerelease,
		PublishedAt: rw.PublishedAt,
		CreatedAt:   rw.CreatedAt,
		Notes:       rw.Body,
		HTMLURL:     rw.HTMLURL,
		Assets:      assets,
	}
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
