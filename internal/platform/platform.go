// Package platform declares the narrow contracts between the release engine
// and the host system: moving bytes to disk, installing artifacts, reading
// package metadata back out of them, and observing what is actually
// installed. The engine depends only on these interfaces; the desktop
// bindings in this package are one implementation.
package platform

import "context"

// PackageInfo is the identity extracted from an artifact or an installed
// package.
type PackageInfo struct {
	PackageID string // unique, stable package identifier
	Version   string
	AppName   string
}

// Asset is a release artifact candidate offered to the installer policy.
type Asset struct {
	Name        string
	Size        int64
	ContentType string
	DownloadURL string
}

// ProgressFunc receives download progress as a percentage in [0,100].
// Implementations must only ever report non-decreasing values.
type ProgressFunc func(percent int)

// Downloader streams an asset to a local destination path.
type Downloader interface {
	Download(ctx context.Context, url, dest string, onProgress ProgressFunc) error
}

// Installer applies a verified artifact to the system and owns the policy of
// which release assets are installable on this platform.
type Installer interface {
	// Install hands the verified artifact to the platform install
	// mechanism. The artifact at path remains owned by the caller.
	Install(ctx context.Context, artifactPath string) error

	// IsAssetInstallable reports whether an asset name looks installable
	// on this platform (by extension and naming convention).
	IsAssetInstallable(assetName string) bool

	// ChoosePrimaryAsset selects the single asset to offer from the
	// installable candidates. Returns nil when none qualifies.
	ChoosePrimaryAsset(candidates []Asset) *Asset
}

// InfoExtractor reads package identity back out of an artifact file.
// Returns nil (no error) when the artifact carries no parsable identity.
type InfoExtractor interface {
	ExtractPackageInfo(artifactPath string) (*PackageInfo, error)
}

// PackageMonitor is the authoritative view of packages truly present on the
// system, used for startup reconciliation against the store.
type PackageMonitor interface {
	GetAllInstalledPackageNames(ctx context.Context) (map[string]struct{}, error)
	IsPackageInstalled(ctx context.Context, packageID string) (bool, error)
	GetInstalledPackageInfo(ctx context.Context, packageID string) (*PackageInfo, error)
}

// FileLocations resolves where staged downloads and installed apps live.
type FileLocations interface {
	StagingDir() (string, error)
	AppsDir() (string, error)
}
