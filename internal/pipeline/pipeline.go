// Package pipeline drives one install from resolved asset to installed app:
// stage the download, verify the artifact's identity, hand it to the
// installer, and record the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/ghstore/internal/platform"
	"github.com/blackwell-systems/ghstore/internal/store"
)

// Stage is the pipeline state machine. Transitions are strictly forward
// within one run; StageIdle is both start and end.
type Stage int

const (
	StageIdle Stage = iota
	StagePreparing
	StageDownloading
	StageVerifying
	StageInstalling
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StagePreparing:
		return "preparing"
	case StageDownloading:
		return "downloading"
	case StageVerifying:
		return "verifying"
	case StageInstalling:
		return "installing"
	default:
		return "unknown"
	}
}

// Status is one observable snapshot of a run. Percent is meaningful only
// during StageDownloading. Err is set on the final StageIdle status of a
// failed run.
type Status struct {
	PackageID string
	Stage     Stage
	Percent   int
	Err       error
}

// ErrAlreadyInProgress is returned when an install is requested for a package
// that already has one in flight. Requests are rejected, not queued.
var ErrAlreadyInProgress = errors.New("an installation for this package is already in progress")

// DownloadError wraps a transport failure while streaming the asset.
type DownloadError struct{ Err error }

func (e *DownloadError) Error() string { return fmt.Sprintf("download failed: %v", e.Err) }
func (e *DownloadError) Unwrap() error { return e.Err }

// VerificationError marks an artifact whose extracted identity does not match
// the package being installed. The artifact is discarded.
type VerificationError struct{ Reason string }

func (e *VerificationError) Error() string { return "verification failed: " + e.Reason }

// InstallError wraps a failure in the platform install step.
type InstallError struct{ Err error }

func (e *InstallError) Error() string { return fmt.Sprintf("install failed: %v", e.Err) }
func (e *InstallError) Unwrap() error { return e.Err }

// Request names the asset to install and, for first-time installs, the
// repository identity the new record is created from.
type Request struct {
	PackageID string
	AppName   string
	Version   string
	AssetName string
	AssetURL  string

	RepoID      int64
	RepoOwner   string
	RepoName    string
	RepoURL     string
	Description string
	Language    string
}

// Orchestrator runs installs one at a time per package. Different packages
// may run concurrently.
type Orchestrator struct {
	store      *store.Store
	downloader platform.Downloader
	installer  platform.Installer
	extractor  platform.InfoExtractor
	locations  platform.FileLocations
	logger     *log.Logger
	now        func() time.Time

	mu       sync.Mutex
	inflight map[string]struct{}
	onStatus func(Status)
}

// New builds an orchestrator over the store and platform collaborators.
func New(s *store.Store, d platform.Downloader, i platform.Installer, x platform.InfoExtractor, loc platform.FileLocations, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store:      s,
		downloader: d,
		installer:  i,
		extractor:  x,
		locations:  loc,
		logger:     logger,
		now:        time.Now,
		inflight:   make(map[string]struct{}),
	}
}

// OnStatus registers a single observer called synchronously with every stage
// transition and download progress step.
func (o *Orchestrator) OnStatus(fn func(Status)) {
	o.mu.Lock()
	o.onStatus = fn
	o.mu.Unlock()
}

func (o *Orchestrator) emit(s Status) {
	o.mu.Lock()
	fn := o.onStatus
	o.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// Run executes the full install pipeline for req. It returns
// ErrAlreadyInProgress when a run for the same package is active, the
// stage-typed error on failure, or ctx's error on cancellation.
func (o *Orchestrator) Run(ctx context.Context, req Request) error {
	if req.PackageID == "" || req.AssetURL == "" || req.AssetName == "" {
		return fmt.Errorf("install request is missing package id or asset")
	}

	o.mu.Lock()
	if _, busy := o.inflight[req.PackageID]; busy {
		o.mu.Unlock()
		return ErrAlreadyInProgress
	}
	o.inflight[req.PackageID] = struct{}{}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		delete(o.inflight, req.PackageID)
		o.mu.Unlock()
	}()

	err := o.run(ctx, req)
	o.emit(Status{PackageID: req.PackageID, Stage: StageIdle, Err: err})
	return err
}

func (o *Orchestrator) run(ctx context.Context, req Request) error {
	// PREPARING
	o.emit(Status{PackageID: req.PackageID, Stage: StagePreparing})

	app, err := o.store.GetApp(req.PackageID)
	if err != nil {
		return fmt.Errorf("failed to load app record: %w", err)
	}
	if app != nil {
		if err := o.store.SetPendingInstall(req.PackageID, true); err != nil {
			return fmt.Errorf("failed to mark install pending: %w", err)
		}
	}
	fromVersion := ""
	if app != nil {
		fromVersion = app.InstalledVersion
	}

	staging, err := o.locations.StagingDir()
	if err != nil {
		return o.abort(ctx, req, app, false, fmt.Errorf("failed to resolve staging dir: %w", err))
	}
	artifact := filepath.Join(staging, req.AssetName)
	defer os.Remove(artifact)

	// DOWNLOADING
	o.emit(Status{PackageID: req.PackageID, Stage: StageDownloading})
	onProgress := func(percent int) {
		o.emit(Status{PackageID: req.PackageID, Stage: StageDownloading, Percent: percent})
	}
	if err := o.downloader.Download(ctx, req.AssetURL, artifact, onProgress); err != nil {
		if ctx.Err() != nil {
			return o.abort(ctx, req, app, false, ctx.Err())
		}
		return o.abort(ctx, req, app, false, &DownloadError{Err: err})
	}

	// VERIFYING
	o.emit(Status{PackageID: req.PackageID, Stage: StageVerifying})
	if err := ctx.Err(); err != nil {
		return o.abort(ctx, req, app, false, err)
	}
	info, err := o.extractor.ExtractPackageInfo(artifact)
	if err != nil {
		return o.abort(ctx, req, app, false, &VerificationError{Reason: err.Error()})
	}
	if info == nil {
		// First installs may carry an artifact with no parsable identity;
		// an update replacing a tracked record must not.
		if app != nil {
			reason := fmt.Sprintf("artifact %q carries no package identity", req.AssetName)
			return o.abort(ctx, req, app, false, &VerificationError{Reason: reason})
		}
	} else if info.PackageID != req.PackageID {
		reason := fmt.Sprintf("artifact identifies as %q, expected %q", info.PackageID, req.PackageID)
		return o.abort(ctx, req, app, false, &VerificationError{Reason: reason})
	}

	// INSTALLING
	o.emit(Status{PackageID: req.PackageID, Stage: StageInstalling})
	if err := ctx.Err(); err != nil {
		return o.abort(ctx, req, app, false, err)
	}
	if err := o.installer.Install(ctx, artifact); err != nil {
		if ctx.Err() != nil {
			return o.abort(ctx, req, app, false, ctx.Err())
		}
		return o.abort(ctx, req, app, true, &InstallError{Err: err})
	}

	return o.complete(req, app, fromVersion)
}

// abort runs the failure path: clear the pending flag, leave installed fields
// untouched, and append a failure history row only when the install step was
// reached. Cancellation never writes history.
func (o *Orchestrator) abort(ctx context.Context, req Request, app *store.InstalledApp, installReached bool, cause error) error {
	if app != nil {
		if err := o.store.SetPendingInstall(req.PackageID, false); err != nil {
			o.logger.Warn("failed to clear pending install", "package", req.PackageID, "error", err)
		}
	}

	if ctx.Err() != nil {
		return cause
	}

	if installReached {
		h := &store.UpdateHistory{
			PackageID:   req.PackageID,
			AppName:     req.AppName,
			RepoOwner:   req.RepoOwner,
			RepoName:    req.RepoName,
			ToVersion:   req.Version,
			UpdatedAt:   o.now(),
			Source:      store.SourceGHStore,
			Success:     false,
			ErrorText:   cause.Error(),
			FromVersion: fromVersionOf(app),
		}
		if err := o.store.InsertHistory(h); err != nil {
			o.logger.Warn("failed to record install failure", "package", req.PackageID, "error", err)
		}
	}

	return cause
}

func (o *Orchestrator) complete(req Request, app *store.InstalledApp, fromVersion string) error {
	now := o.now()

	if app == nil {
		// First successful install creates the record.
		created := &store.InstalledApp{
			PackageID:          req.PackageID,
			RepoID:             req.RepoID,
			RepoOwner:          req.RepoOwner,
			RepoName:           req.RepoName,
			RepoURL:            req.RepoURL,
			Description:        req.Description,
			Language:           req.Language,
			AppName:            req.AppName,
			InstallSource:      store.SourceGHStore,
			UpdateCheckEnabled: true,
			FileExtension:      extensionOf(req.AssetName),
		}
		if err := o.store.UpsertApp(created); err != nil {
			return fmt.Errorf("failed to create app record: %w", err)
		}
	}

	v := store.InstalledVersion{
		Version:   req.Version,
		AssetName: req.AssetName,
		AssetURL:  req.AssetURL,
		At:        now,
	}
	if err := o.store.ApplyInstalledVersion(req.PackageID, v); err != nil {
		return fmt.Errorf("failed to record installed version: %w", err)
	}

	h := &store.UpdateHistory{
		PackageID:   req.PackageID,
		AppName:     req.AppName,
		RepoOwner:   req.RepoOwner,
		RepoName:    req.RepoName,
		FromVersion: fromVersion,
		ToVersion:   req.Version,
		UpdatedAt:   now,
		Source:      store.SourceGHStore,
		Success:     true,
	}
	if err := o.store.InsertHistory(h); err != nil {
		o.logger.Warn("failed to record install success", "package", req.PackageID, "error", err)
	}

	return nil
}

func fromVersionOf(app *store.InstalledApp) string {
	if app == nil {
		return ""
	}
	return app.InstalledVersion
}

func extensionOf(assetName string) string {
	ext := filepath.Ext(assetName)
	if ext == "" {
		return ""
	}
	return ext[1:]
}
