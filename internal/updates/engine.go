// Package updates detects new releases for tracked apps and records what it
// finds. It never installs anything itself; offering an update is a store
// write the pipeline and CLI act on later.
package updates

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/ghstore/internal/github"
	"github.com/blackwell-systems/ghstore/internal/platform"
	"github.com/blackwell-systems/ghstore/internal/store"
)

// releaseSource is the slice of the API client the engine needs.
type releaseSource interface {
	ListReleases(ctx context.Context, owner, repo string) ([]github.Release, error)
}

// AssetPolicy is the installer's say in which release assets matter on this
// platform. The engine delegates ranking entirely.
type AssetPolicy interface {
	IsAssetInstallable(assetName string) bool
	ChoosePrimaryAsset(candidates []platform.Asset) *platform.Asset
}

// Engine performs update checks against the release source and persists the
// outcome on each app record.
type Engine struct {
	store  *store.Store
	source releaseSource
	policy AssetPolicy
	logger *log.Logger
	now    func() time.Time
}

// NewEngine builds a sync engine over the given store, release source, and
// installer policy.
func NewEngine(s *store.Store, source releaseSource, policy AssetPolicy, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		store:  s,
		source: source,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Check runs one update check for packageID and reports whether an update is
// now on offer. Failures never propagate: the record's last-checked timestamp
// is bumped and the check reports no update.
func (e *Engine) Check(ctx context.Context, packageID string) bool {
	app, err := e.store.GetApp(packageID)
	if err != nil {
		e.logger.Warn("update check failed to load record", "package", packageID, "error", err)
		return false
	}
	if app == nil {
		// Not tracked, nothing to check.
		return false
	}

	releases, err := e.source.ListReleases(ctx, app.RepoOwner, app.RepoName)
	if err != nil {
		e.absorb(packageID, "failed to list releases", err)
		return false
	}

	latest := NewestStable(releases)
	if latest == nil {
		// Repository has no published stable release.
		return false
	}

	// Tags are opaque identifiers. Any difference from the installed
	// version counts as an update.
	available := latest.TagName != app.InstalledVersion

	primary := PrimaryAsset(e.policy, latest.Assets)

	info := store.VersionInfo{
		UpdateAvailable: available,
		LatestVersion:   latest.TagName,
		ReleaseNotes:    latest.Notes,
		CheckedAt:       e.now(),
	}
	if primary != nil {
		info.LatestAssetName = primary.Name
		info.LatestAssetURL = primary.DownloadURL
		info.LatestAssetSize = primary.Size
	}

	if err := e.store.UpdateVersionInfo(packageID, info); err != nil {
		e.absorb(packageID, "failed to persist version info", err)
		return false
	}

	return available
}

// CheckAll sweeps every app with update checks enabled, in package id order.
// One app's failure does not stop the sweep. Returns the number of apps with
// an update on offer. The error is non-nil only when the sweep itself could
// not run or was cancelled midway; already-processed apps stay processed.
func (e *Engine) CheckAll(ctx context.Context) (int, error) {
	apps, err := e.store.ListApps()
	if err != nil {
		return 0, err
	}

	updates := 0
	for _, app := range apps {
		if !app.UpdateCheckEnabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return updates, err
		}
		if e.Check(ctx, app.PackageID) {
			updates++
		}
	}
	return updates, nil
}

// absorb logs a check failure and bumps the record's last-checked timestamp
// so the failure is visible without surfacing as an error.
func (e *Engine) absorb(packageID, msg string, cause error) {
	e.logger.Warn(msg, "package", packageID, "error", cause)
	if err := e.store.UpdateLastChecked(packageID, e.now()); err != nil {
		e.logger.Warn("failed to record check time", "package", packageID, "error", err)
	}
}

// PrimaryAsset filters release assets through the policy's installable
// predicate and delegates the final pick. Returns nil when nothing
// installable is attached.
func PrimaryAsset(policy AssetPolicy, assets []github.Asset) *platform.Asset {
	var candidates []platform.Asset
	for _, a := range assets {
		if !policy.IsAssetInstallable(a.Name) {
			continue
		}
		candidates = append(candidates, platform.Asset{
			Name:        a.Name,
			Size:        a.Size,
			ContentType: a.ContentType,
			DownloadURL: a.DownloadURL,
		})
	}
	if len(candidates) == 0 {
		return nil
	}
	return policy.ChoosePrimaryAsset(candidates)
}

// NewestStable picks the non-draft, non-prerelease release with the most
// recent publish timestamp, falling back to creation time for releases that
// were never published. Returns nil when no release qualifies.
func NewestStable(releases []github.Release) *github.Release {
	var best *github.Release
	var bestAt time.Time
	for i := range releases {
		r := &releases[i]
		if r.Draft || r.Prerelease {
			continue
		}
		at := releaseTime(r)
		if best == nil || at.After(bestAt) {
			best = r
			bestAt = at
		}
	}
	return best
}

func releaseTime(r *github.Release) time.Time {
	if r.PublishedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.PublishedAt); err == nil {
			return t
		}
	}
	if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
		return t
	}
	return time.Time{}
}
