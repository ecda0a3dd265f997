// Package monitor reports which packages are actually present in the apps
// directory. It is the ground truth the store is reconciled against: the
// store says what we believe is installed, the monitor says what is.
package monitor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/blackwell-systems/ghstore/internal/platform"
)

// Monitor scans the apps directory for installed packages and, once started,
// watches it for changes.
type Monitor struct {
	locations platform.FileLocations
	logger    *log.Logger

	fsw    *fsnotify.Watcher
	events chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a monitor over the given file locations.
func New(locations platform.FileLocations, logger *log.Logger) (*Monitor, error) {
	if locations == nil {
		return nil, fmt.Errorf("locations cannot be nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Monitor{
		locations: locations,
		logger:    logger,
		events:    make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}, nil
}

// GetAllInstalledPackageNames returns the set of package ids present in the
// apps directory.
func (m *Monitor) GetAllInstalledPackageNames(ctx context.Context) (map[string]struct{}, error) {
	dir, err := m.locations.AppsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve apps dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read apps dir: %w", err)
	}

	names := make(map[string]struct{})
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := packageIDOf(e)
		if id == "" {
			continue
		}
		names[id] = struct{}{}
	}
	return names, nil
}

// IsPackageInstalled reports whether the package is present in the apps
// directory.
func (m *Monitor) IsPackageInstalled(ctx context.Context, packageID string) (bool, error) {
	names, err := m.GetAllInstalledPackageNames(ctx)
	if err != nil {
		return false, err
	}
	_, ok := names[packageID]
	return ok, nil
}

// GetInstalledPackageInfo returns the identity of an installed package, or
// nil when it is not present.
func (m *Monitor) GetInstalledPackageInfo(ctx context.Context, packageID string) (*platform.PackageInfo, error) {
	dir, err := m.locations.AppsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve apps dir: %w", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read apps dir: %w", err)
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		id, version := platform.IdentityFromAssetName(e.Name())
		if id != packageID {
			continue
		}
		return &platform.PackageInfo{
			PackageID: id,
			Version:   version,
			AppName:   id,
		}, nil
	}
	return nil, nil
}

// Start begins watching the apps directory. Changes are coalesced into the
// Events channel.
func (m *Monitor) Start() error {
	dir, err := m.locations.AppsDir()
	if err != nil {
		return fmt.Errorf("failed to resolve apps dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch apps dir: %w", err)
	}
	m.fsw = fsw

	m.wg.Add(1)
	go m.runEventLoop()
	return nil
}

// Events signals after every relevant change in the apps directory. Signals
// are coalesced; a reader that is behind sees one.
func (m *Monitor) Events() <-chan struct{} {
	return m.events
}

func (m *Monitor) runEventLoop() {
	defer m.wg.Done()

	for {
		select {
		case evt, ok := <-m.fsw.Events:
			if !ok {
				return
			}
			if !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Remove) && !evt.Has(fsnotify.Rename) {
				continue
			}
			select {
			case m.events <- struct{}{}:
			default:
			}
		case err, ok := <-m.fsw.Errors:
			if !ok {
				return
			}
			m.logger.Warn("filesystem watch error", "error", err)
		case <-m.stopCh:
			return
		}
	}
}

// Stop halts the watcher. Safe to call only after Start.
func (m *Monitor) Stop() error {
	close(m.stopCh)
	err := m.fsw.Close()
	m.wg.Wait()
	return err
}

// packageIDOf maps a directory entry to a package id, or "" when the entry is
// not an installed artifact.
func packageIDOf(e os.DirEntry) string {
	name := e.Name()
	if e.IsDir() || strings.HasPrefix(name, ".") {
		return ""
	}
	id, _ := platform.IdentityFromAssetName(name)
	return id
}
