package updates

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/ghstore/internal/github"
	"github.com/blackwell-systems/ghstore/internal/platform"
	"github.com/blackwell-systems/ghstore/internal/store"
)

type fakeSource struct {
	releases map[string][]github.Release
	errs     map[string]error
	calls    []string
}

func (f *fakeSource) ListReleases(ctx context.Context, owner, repo string) ([]github.Release, error) {
	key := owner + "/" + repo
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	return f.releases[key], nil
}

// firstAssetPolicy accepts archives and picks the first candidate.
type firstAssetPolicy struct{}

func (firstAssetPolicy) IsAssetInstallable(name string) bool {
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".zip")
}

func (firstAssetPolicy) ChoosePrimaryAsset(candidates []platform.Asset) *platform.Asset {
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[0]
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return s
}

func seedApp(t *testing.T, s *store.Store, id, owner, repo, version string) {
	t.Helper()
	err := s.UpsertApp(&store.InstalledApp{
		PackageID:          id,
		RepoOwner:          owner,
		RepoName:           repo,
		AppName:            id,
		InstalledVersion:   version,
		InstallSource:      store.SourceGHStore,
		UpdateCheckEnabled: true,
	})
	if err != nil {
		t.Fatalf("failed to seed app: %v", err)
	}
}

func stableRelease(tag, published string, assets ...github.Asset) github.Release {
	return github.Release{
		TagName:     tag,
		PublishedAt: published,
		Notes:       "notes for " + tag,
		Assets:      assets,
	}
}

// TestCheckDetectsUpdate verifies that a newer tag is persisted as an
// available update with the primary asset attached.
func TestCheckDetectsUpdate(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "v1.0.0")

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/myapp": {
			stableRelease("v1.1.0", "2026-02-01T00:00:00Z",
				github.Asset{Name: "myapp_1.1.0_linux_amd64.tar.gz", Size: 4096, DownloadURL: "https://example.com/a.tar.gz"},
				github.Asset{Name: "checksums.txt", Size: 64},
			),
			stableRelease("v1.0.0", "2026-01-01T00:00:00Z"),
		},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if !e.Check(context.Background(), "myapp") {
		t.Fatal("expected an update to be reported")
	}

	app, err := s.GetApp("myapp")
	if err != nil {
		t.Fatalf("GetApp: %v", err)
	}
	if !app.UpdateAvailable {
		t.Error("expected updateAvailable to be set")
	}
	if app.LatestVersion != "v1.1.0" {
		t.Errorf("expected latest version v1.1.0, got %q", app.LatestVersion)
	}
	if app.LatestAssetName != "myapp_1.1.0_linux_amd64.tar.gz" {
		t.Errorf("unexpected primary asset %q", app.LatestAssetName)
	}
	if app.LatestAssetSize != 4096 {
		t.Errorf("unexpected asset size %d", app.LatestAssetSize)
	}
	if app.ReleaseNotes != "notes for v1.1.0" {
		t.Errorf("unexpected release notes %q", app.ReleaseNotes)
	}
	if app.LastCheckedAt.IsZero() {
		t.Error("expected lastCheckedAt to be bumped")
	}
	if app.InstalledVersion != "v1.0.0" {
		t.Errorf("installed version must not change on sync, got %q", app.InstalledVersion)
	}
}

// TestCheckUpToDate verifies that a matching tag clears the update flag but
// still refreshes the latest fields and check time.
func TestCheckUpToDate(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "v1.1.0")

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/myapp": {stableRelease("v1.1.0", "2026-02-01T00:00:00Z")},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if e.Check(context.Background(), "myapp") {
		t.Fatal("expected no update for matching tag")
	}
	app, _ := s.GetApp("myapp")
	if app.UpdateAvailable {
		t.Error("expected updateAvailable to be false")
	}
	if app.LatestVersion != "v1.1.0" {
		t.Errorf("expected latest version recorded, got %q", app.LatestVersion)
	}
}

// TestCheckIgnoresDraftsAndPrereleases verifies release filtering and the
// publish-time ordering with creation-time fallback.
func TestCheckIgnoresDraftsAndPrereleases(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "v1.0.0")

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/myapp": {
			{TagName: "v3.0.0-rc1", Prerelease: true, PublishedAt: "2026-04-01T00:00:00Z"},
			{TagName: "v3.0.0-draft", Draft: true, PublishedAt: "2026-05-01T00:00:00Z"},
			{TagName: "v2.0.0", CreatedAt: "2026-03-01T00:00:00Z"}, // never published
			{TagName: "v1.5.0", PublishedAt: "2026-02-01T00:00:00Z"},
		},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if !e.Check(context.Background(), "myapp") {
		t.Fatal("expected an update")
	}
	app, _ := s.GetApp("myapp")
	if app.LatestVersion != "v2.0.0" {
		t.Errorf("expected v2.0.0 selected via creation time, got %q", app.LatestVersion)
	}
}

// TestCheckExactStringComparison verifies that tags are compared as opaque
// strings, so "v2" and "2.0" count as different versions.
func TestCheckExactStringComparison(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "2.0")

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/myapp": {stableRelease("v2", "2026-02-01T00:00:00Z")},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if !e.Check(context.Background(), "myapp") {
		t.Error("expected differing tag strings to count as an update")
	}
}

// TestCheckAbsentRecord verifies that checking an untracked package does
// nothing.
func TestCheckAbsentRecord(t *testing.T) {
	s := newTestStore(t)
	src := &fakeSource{}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if e.Check(context.Background(), "ghost") {
		t.Error("expected no update for untracked package")
	}
	if len(src.calls) != 0 {
		t.Errorf("expected no release fetch, got %v", src.calls)
	}
}

// TestCheckNoStableRelease verifies that a repository with only drafts and
// prereleases leaves the record untouched.
func TestCheckNoStableRelease(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "v1.0.0")

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/myapp": {{TagName: "v2.0.0-rc1", Prerelease: true, PublishedAt: "2026-02-01T00:00:00Z"}},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if e.Check(context.Background(), "myapp") {
		t.Fatal("expected no update")
	}
	app, _ := s.GetApp("myapp")
	if app.LatestVersion != "" || app.UpdateAvailable {
		t.Errorf("expected record untouched, got latest=%q available=%v", app.LatestVersion, app.UpdateAvailable)
	}
}

// TestCheckAbsorbsFetchFailure verifies that a network failure only bumps the
// check timestamp.
func TestCheckAbsorbsFetchFailure(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "v1.0.0")

	src := &fakeSource{errs: map[string]error{"octo/myapp": errors.New("connection refused")}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if e.Check(context.Background(), "myapp") {
		t.Fatal("expected no update on failure")
	}
	app, _ := s.GetApp("myapp")
	if app.LastCheckedAt.IsZero() {
		t.Error("expected lastCheckedAt bumped on failure")
	}
	if app.UpdateAvailable || app.LatestVersion != "" {
		t.Error("expected version fields untouched on failure")
	}
}

// TestCheckIdempotent verifies that two checks with no new release persist
// the same fields both times.
func TestCheckIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "myapp", "octo", "myapp", "v1.0.0")

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/myapp": {stableRelease("v1.1.0", "2026-02-01T00:00:00Z",
			github.Asset{Name: "myapp.tar.gz", Size: 1, DownloadURL: "u"})},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)
	e.now = func() time.Time { return time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC) }

	e.Check(context.Background(), "myapp")
	first, _ := s.GetApp("myapp")
	e.Check(context.Background(), "myapp")
	second, _ := s.GetApp("myapp")

	if *first != *second {
		t.Errorf("expected identical records, got\n%+v\n%+v", first, second)
	}
}

// TestCheckAllIsolation verifies the sweep order and that one failing package
// does not stop the others.
func TestCheckAllIsolation(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "aaa", "octo", "aaa", "v1")
	seedApp(t, s, "bbb", "octo", "bbb", "v1")
	seedApp(t, s, "ccc", "octo", "ccc", "v1")

	src := &fakeSource{
		releases: map[string][]github.Release{
			"octo/aaa": {stableRelease("v2", "2026-02-01T00:00:00Z")},
			"octo/ccc": {stableRelease("v2", "2026-02-01T00:00:00Z")},
		},
		errs: map[string]error{"octo/bbb": errors.New("boom")},
	}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	updates, err := e.CheckAll(context.Background())
	if err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if updates != 2 {
		t.Errorf("expected 2 updates, got %d", updates)
	}
	want := []string{"octo/aaa", "octo/bbb", "octo/ccc"}
	if len(src.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, src.calls)
	}
	for i := range want {
		if src.calls[i] != want[i] {
			t.Fatalf("expected calls %v, got %v", want, src.calls)
		}
	}

	failed, _ := s.GetApp("bbb")
	if failed.LastCheckedAt.IsZero() {
		t.Error("expected lastCheckedAt bumped on the failing package")
	}
}

// TestCheckAllSkipsDisabled verifies that records with update checks turned
// off are not swept.
func TestCheckAllSkipsDisabled(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "aaa", "octo", "aaa", "v1")
	if err := s.UpsertApp(&store.InstalledApp{
		PackageID: "off", RepoOwner: "octo", RepoName: "off",
		InstalledVersion: "v1", InstallSource: store.SourceGHStore,
	}); err != nil {
		t.Fatalf("UpsertApp: %v", err)
	}

	src := &fakeSource{releases: map[string][]github.Release{
		"octo/aaa": {stableRelease("v2", "2026-02-01T00:00:00Z")},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	if _, err := e.CheckAll(context.Background()); err != nil {
		t.Fatalf("CheckAll: %v", err)
	}
	if len(src.calls) != 1 || src.calls[0] != "octo/aaa" {
		t.Errorf("expected only enabled package swept, got %v", src.calls)
	}
}

// TestCheckAllCancellation verifies that cancelling midway keeps the already
// processed packages.
func TestCheckAllCancellation(t *testing.T) {
	s := newTestStore(t)
	seedApp(t, s, "aaa", "octo", "aaa", "v1")
	seedApp(t, s, "bbb", "octo", "bbb", "v1")

	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{releases: map[string][]github.Release{
		"octo/aaa": {stableRelease("v2", "2026-02-01T00:00:00Z")},
	}}
	e := NewEngine(s, src, firstAssetPolicy{}, nil)

	// Cancel after the first package by making its check the trigger.
	e.now = func() time.Time {
		cancel()
		return time.Now()
	}

	_, err := e.CheckAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	app, _ := s.GetApp("aaa")
	if !app.UpdateAvailable {
		t.Error("expected first package processed before cancellation")
	}
	if len(src.calls) != 1 {
		t.Errorf("expected sweep to stop after cancellation, got %v", src.calls)
	}
}
