package platform

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// installableExtensions are the artifact types the desktop binding can apply.
// Checksum and signature files are never installable.
var installableExtensions = []string{
	".appimage", ".deb", ".rpm", ".tar.gz", ".tgz", ".zip", ".pkg", ".dmg", ".msi", ".exe",
}

var neverInstallable = []string{
	".sha256", ".sha512", ".sig", ".asc", ".pem", ".txt", ".json", ".yml", ".yaml", ".md",
}

// platformToken maps one asset-name token to the GOOS or GOARCH it targets.
type platformToken struct {
	token  string
	target string
}

// osTokens and archTokens rank asset-name tokens by the platform they target,
// longest token first so "x86_64" claims a name before "x86" can. Matching is
// boundary-aware, which keeps "win" from firing inside "darwin".
var osTokens = []platformToken{
	{"windows", "windows"},
	{"darwin", "darwin"},
	{"macos", "darwin"},
	{"win64", "windows"},
	{"win32", "windows"},
	{"linux", "linux"},
	{"osx", "darwin"},
	{"mac", "darwin"},
	{"win", "windows"},
}

var archTokens = []platformToken{
	{"aarch64", "arm64"},
	{"x86_64", "amd64"},
	{"amd64", "amd64"},
	{"arm64", "arm64"},
	{"i386", "386"},
	{"x64", "amd64"},
	{"x86", "386"},
	{"386", "386"},
}

// DirInstaller is the desktop install mechanism: a verified artifact is
// placed into the apps directory and marked executable when appropriate.
// The same directory is what the package monitor watches, so installs and
// removals round-trip through one location.
type DirInstaller struct {
	locations FileLocations
	goos      string
	goarch    string
}

// NewDirInstaller creates a DirInstaller targeting the running platform.
func NewDirInstaller(locations FileLocations) *DirInstaller {
	return &DirInstaller{
		locations: locations,
		goos:      runtime.GOOS,
		goarch:    runtime.GOARCH,
	}
}

// NewDirInstallerFor creates a DirInstaller for an explicit platform.
// Used by tests to pin asset selection regardless of the host.
func NewDirInstallerFor(locations FileLocations, goos, goarch string) *DirInstaller {
	return &DirInstaller{locations: locations, goos: goos, goarch: goarch}
}

// Install copies the artifact into the apps directory, replacing any previous
// file of the same name, and sets the executable bit for formats that are
// run directly.
func (in *DirInstaller) Install(ctx context.Context, artifactPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	appsDir, err := in.locations.AppsDir()
	if err != nil {
		return fmt.Errorf("resolving apps directory: %w", err)
	}
	if err := os.MkdirAll(appsDir, 0o755); err != nil {
		return fmt.Errorf("creating apps directory: %w", err)
	}

	dest := filepath.Join(appsDir, filepath.Base(artifactPath))
	if err := copyFile(artifactPath, dest); err != nil {
		return fmt.Errorf("installing %s: %w", filepath.Base(artifactPath), err)
	}

	if isDirectlyExecutable(dest) {
		if err := os.Chmod(dest, 0o755); err != nil {
			return fmt.Errorf("marking %s executable: %w", filepath.Base(dest), err)
		}
	}
	return nil
}

// IsAssetInstallable reports whether the asset name carries an extension this
// platform can apply.
func (in *DirInstaller) IsAssetInstallable(assetName string) bool {
	lower := strings.ToLower(assetName)
	for _, ext := range neverInstallable {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	for _, ext := range installableExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ChoosePrimaryAsset picks the best-scoring installable candidate. An asset
// naming the running OS and architecture beats one naming only the OS, which
// beats a generic archive. Assets targeting a different OS are excluded.
// Ties resolve to the earlier candidate, so selection is deterministic for a
// fixed candidate order.
func (in *DirInstaller) ChoosePrimaryAsset(candidates []Asset) *Asset {
	best := -1
	bestScore := 0

	for i, a := range candidates {
		if !in.IsAssetInstallable(a.Name) {
			continue
		}
		score := in.scoreAsset(strings.ToLower(a.Name))
		if score < 0 {
			continue
		}
		if best == -1 || score > bestScore {
			best = i
			bestScore = score
		}
	}

	if best == -1 {
		return nil
	}
	return &candidates[best]
}

// scoreAsset ranks an asset name for this platform. Negative means the asset
// explicitly targets a different OS.
func (in *DirInstaller) scoreAsset(lower string) int {
	score := 1 // installable at all

	for _, t := range osTokens {
		if !hasToken(lower, t.token) {
			continue
		}
		if t.target != in.goos {
			return -1
		}
		score += 8
		break
	}

	for _, t := range archTokens {
		if !hasToken(lower, t.token) {
			continue
		}
		if t.target == in.goarch {
			score += 4
		} else {
			score -= 4
		}
		break
	}

	// Prefer native package formats over generic archives.
	switch {
	case strings.HasSuffix(lower, ".appimage") && in.goos == "linux",
		strings.HasSuffix(lower, ".deb") && in.goos == "linux",
		strings.HasSuffix(lower, ".rpm") && in.goos == "linux",
		strings.HasSuffix(lower, ".dmg") && in.goos == "darwin",
		strings.HasSuffix(lower, ".pkg") && in.goos == "darwin",
		strings.HasSuffix(lower, ".msi") && in.goos == "windows",
		strings.HasSuffix(lower, ".exe") && in.goos == "windows":
		score += 2
	}

	return score
}

// hasToken reports whether tok occurs in lower bounded by non-alphanumeric
// characters or the string edges. "win" does not match inside "darwin";
// "x86" does match inside "x86_64", which is why the token tables rank
// longer tokens first.
func hasToken(lower, tok string) bool {
	start := 0
	for {
		i := strings.Index(lower[start:], tok)
		if i < 0 {
			return false
		}
		i += start
		leftOK := i == 0 || !isAlnum(lower[i-1])
		rightOK := i+len(tok) == len(lower) || !isAlnum(lower[i+len(tok)])
		if leftOK && rightOK {
			return true
		}
		start = i + 1
	}
}

func isAlnum(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func isDirectlyExecutable(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".appimage") || filepath.Ext(lower) == ""
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
