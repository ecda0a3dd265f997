package output

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/ghstore/internal/store"
)

func sampleApp(id string) *store.InstalledApp {
	return &store.InstalledApp{
		PackageID:          id,
		RepoOwner:          "octo",
		RepoName:           id,
		AppName:            id,
		InstalledVersion:   "v1.0.0",
		InstallSource:      store.SourceGHStore,
		UpdateCheckEnabled: true,
		LastCheckedAt:      time.Now().Add(-2 * time.Hour),
	}
}

func TestRenderAppTable_Empty(t *testing.T) {
	out := RenderAppTable(nil)
	if out != "No apps installed.\n" {
		t.Errorf("unexpected empty output: %q", out)
	}
}

func TestRenderAppTable_SortedByPackage(t *testing.T) {
	apps := []*store.InstalledApp{sampleApp("zzz"), sampleApp("aaa")}
	out := RenderAppTable(apps)

	aIdx := strings.Index(out, "aaa")
	zIdx := strings.Index(out, "zzz")
	if aIdx == -1 || zIdx == -1 || aIdx > zIdx {
		t.Errorf("expected apps sorted by package id, got:\n%s", out)
	}
}

func TestRenderAppTable_Status(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	withUpdate := sampleApp("needsupdate")
	withUpdate.UpdateAvailable = true
	withUpdate.LatestVersion = "v2.0.0"
	withUpdate.LatestAssetSize = 5 * 1024 * 1024

	pending := sampleApp("midinstall")
	pending.PendingInstall = true

	external := sampleApp("stray")
	external.InstallSource = store.SourceExternal
	external.RepoOwner = ""
	external.RepoName = ""
	external.UpdateCheckEnabled = false

	out := RenderAppTable([]*store.InstalledApp{withUpdate, pending, external})

	if !strings.Contains(out, "update v2.0.0") {
		t.Errorf("expected update marker, got:\n%s", out)
	}
	if !strings.Contains(out, "installing") {
		t.Errorf("expected installing marker, got:\n%s", out)
	}
	if !strings.Contains(out, "external") {
		t.Errorf("expected external marker, got:\n%s", out)
	}
	if !strings.Contains(out, "5.0 MiB") {
		t.Errorf("expected humanized size, got:\n%s", out)
	}
}

func TestRenderAppTable_UpToDate(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := RenderAppTable([]*store.InstalledApp{sampleApp("fine")})
	if !strings.Contains(out, "up to date") {
		t.Errorf("expected up-to-date status, got:\n%s", out)
	}
}

func TestRenderHistoryTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	rows := []*store.UpdateHistory{
		{
			PackageID:   "myapp",
			FromVersion: "v1.0.0",
			ToVersion:   "v2.0.0",
			UpdatedAt:   time.Now().Add(-time.Hour),
			Success:     true,
		},
		{
			PackageID: "firstinstall",
			ToVersion: "v1.0.0",
			UpdatedAt: time.Now().Add(-2 * time.Hour),
			Success:   false,
			ErrorText: "download failed: connection reset",
		},
	}

	out := RenderHistoryTable(rows)
	if !strings.Contains(out, "myapp") || !strings.Contains(out, "v2.0.0") {
		t.Errorf("expected update row, got:\n%s", out)
	}
	if !strings.Contains(out, "ok") {
		t.Errorf("expected success marker, got:\n%s", out)
	}
	if !strings.Contains(out, "failed: download failed") {
		t.Errorf("expected failure reason, got:\n%s", out)
	}
	// First installs have no from-version.
	if !strings.Contains(out, "—") {
		t.Errorf("expected placeholder for empty from-version, got:\n%s", out)
	}
}

func TestRenderHistoryTable_Empty(t *testing.T) {
	if out := RenderHistoryTable(nil); out != "No update history.\n" {
		t.Errorf("unexpected empty output: %q", out)
	}
}

func TestRenderStatusSummary(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	out := RenderStatusSummary(12, 3, true)
	for _, want := range []string{"12 apps tracked", "3 updates available", "daemon running"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	out = RenderStatusSummary(0, 0, false)
	for _, want := range []string{"0 apps tracked", "no updates available", "daemon stopped"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 11, "exactly-ten"},
		{"much-too-long-name", 10, "much-to..."},
		{"abc", 2, "ab"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
