// Package daemon runs the background sweep: reconcile the store against what
// is actually installed, then check for updates on an interval and prune old
// history.
package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/ghstore/internal/platform"
	"github.com/blackwell-systems/ghstore/internal/store"
)

// checker is the slice of the sync engine the daemon drives.
type checker interface {
	CheckAll(ctx context.Context) (int, error)
}

// changeMonitor is a PackageMonitor that can also signal apps-dir changes.
type changeMonitor interface {
	platform.PackageMonitor
	Start() error
	Stop() error
	Events() <-chan struct{}
}

// Config controls sweep timing and history retention.
type Config struct {
	// CheckInterval is the time between update sweeps.
	CheckInterval time.Duration

	// RetentionDays is the age past which history rows are purged. Zero or
	// negative disables purging.
	RetentionDays int
}

// Daemon owns the background loop.
type Daemon struct {
	store   *store.Store
	engine  checker
	monitor changeMonitor
	cfg     Config
	logger  *log.Logger
	now     func() time.Time
}

// New builds a daemon over the store, sync engine, and package monitor.
func New(s *store.Store, engine checker, monitor changeMonitor, cfg Config, logger *log.Logger) *Daemon {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Daemon{
		store:   s,
		engine:  engine,
		monitor: monitor,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Run reconciles once at startup, then sweeps on the configured interval and
// re-reconciles whenever the apps directory changes. It returns when ctx is
// cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.monitor.Start(); err != nil {
		return fmt.Errorf("failed to start package monitor: %w", err)
	}
	defer func() {
		if err := d.monitor.Stop(); err != nil {
			d.logger.Warn("failed to stop package monitor", "error", err)
		}
	}()

	if err := d.Reconcile(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		d.logger.Warn("startup reconciliation failed", "error", err)
	}
	d.sweep(ctx)

	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.sweep(ctx)
		case <-d.monitor.Events():
			if err := d.Reconcile(ctx); err != nil && ctx.Err() == nil {
				d.logger.Warn("reconciliation failed", "error", err)
			}
		}
	}
}

// Reconcile diffs the monitor's view of installed packages against the
// store: tracked apps no longer present are deleted, packages present but
// untracked are adopted as external installs.
func (d *Daemon) Reconcile(ctx context.Context) error {
	present, err := d.monitor.GetAllInstalledPackageNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list installed packages: %w", err)
	}
	tracked, err := d.store.ListApps()
	if err != nil {
		return fmt.Errorf("failed to list tracked apps: %w", err)
	}

	for _, app := range tracked {
		if _, ok := present[app.PackageID]; ok {
			continue
		}
		d.logger.Info("package removed outside ghstore, dropping record", "package", app.PackageID)
		if err := d.store.DeleteApp(app.PackageID); err != nil {
			d.logger.Warn("failed to delete app record", "package", app.PackageID, "error", err)
		}
	}

	trackedIDs := make(map[string]struct{}, len(tracked))
	for _, app := range tracked {
		trackedIDs[app.PackageID] = struct{}{}
	}
	for id := range present {
		if _, ok := trackedIDs[id]; ok {
			continue
		}
		if err := d.adoptExternal(ctx, id); err != nil {
			d.logger.Warn("failed to adopt external package", "package", id, "error", err)
		}
	}

	return nil
}

// adoptExternal creates a minimal record for a package that appeared in the
// apps directory without going through the install pipeline. Update checks
// stay off until a repository is associated.
func (d *Daemon) adoptExternal(ctx context.Context, packageID string) error {
	info, err := d.monitor.GetInstalledPackageInfo(ctx, packageID)
	if err != nil {
		return err
	}
	app := &store.InstalledApp{
		PackageID:     packageID,
		AppName:       packageID,
		InstallSource: store.SourceExternal,
	}
	if info != nil {
		app.InstalledVersion = info.Version
		app.AppName = info.AppName
	}
	d.logger.Info("adopted externally installed package", "package", packageID, "version", app.InstalledVersion)
	return d.store.UpsertApp(app)
}

// sweep runs one update pass and the history retention purge.
func (d *Daemon) sweep(ctx context.Context) {
	updates, err := d.engine.CheckAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("update sweep failed", "error", err)
		}
	} else if updates > 0 {
		d.logger.Info("updates available", "count", updates)
	}

	if d.cfg.RetentionDays <= 0 {
		return
	}
	cutoff := d.now().AddDate(0, 0, -d.cfg.RetentionDays)
	purged, err := d.store.PurgeHistoryBefore(cutoff)
	if err != nil {
		d.logger.Warn("history purge failed", "error", err)
		return
	}
	if purged > 0 {
		d.logger.Info("purged old history", "rows", purged)
	}
}
