package store

import "time"

// InstallSource records which mechanism produced an install or update.
type InstallSource string

const (
	// SourceGHStore marks installs performed by this client's pipeline.
	SourceGHStore InstallSource = "ghstore"
	// SourceExternal marks packages that appeared outside the pipeline.
	SourceExternal InstallSource = "external"
)

// InstalledApp is one tracked application, keyed by its package id. The
// latest* fields and UpdateAvailable are a cache owned by the sync engine:
// they always reflect the last successful update check, never independent
// edits.
type InstalledApp struct {
	PackageID string

	// Source repository identity.
	RepoID      int64
	RepoOwner   string
	RepoName    string
	RepoURL     string
	Description string
	Language    string

	// What is installed right now.
	InstalledVersion   string
	InstalledAssetName string
	InstalledAssetURL  string

	// Latest known release, written only by the sync engine.
	LatestVersion   string
	LatestAssetName string
	LatestAssetURL  string
	LatestAssetSize int64
	ReleaseNotes    string

	AppName       string
	InstallSource InstallSource

	InstalledAt   time.Time
	LastCheckedAt time.Time
	LastUpdatedAt time.Time

	UpdateAvailable    bool
	UpdateCheckEnabled bool

	Architecture  string
	FileExtension string

	// PendingInstall is true only while an install pipeline run for this
	// package is in flight.
	PendingInstall bool
}

// UpdateHistory is one append-only log entry describing a completed install
// attempt. Rows are written exclusively by the install pipeline; sync-only
// checks never appear here.
type UpdateHistory struct {
	ID          int64
	PackageID   string
	AppName     string
	RepoOwner   string
	RepoName    string
	FromVersion string
	ToVersion   string
	UpdatedAt   time.Time
	Source      InstallSource
	Success     bool
	ErrorText   string
}

// VersionInfo is the narrow field set the sync engine owns on an
// InstalledApp record. Persisting it must not clobber install-owned fields.
type VersionInfo struct {
	UpdateAvailable bool
	LatestVersion   string
	LatestAssetName string
	LatestAssetURL  string
	LatestAssetSize int64
	ReleaseNotes    string
	CheckedAt       time.Time
}

// InstalledVersion is the narrow field set the install pipeline owns.
type InstalledVersion struct {
	Version   string
	AssetName string
	AssetURL  string
	At        time.Time
}
