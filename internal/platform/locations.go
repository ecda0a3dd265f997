package platform

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dirs is a FileLocations over fixed directories. Empty values fall back to
// defaults under the user's home directory.
type Dirs struct {
	Staging string
	Apps    string
}

// StagingDir returns the directory downloads are staged into, creating it if
// needed. Defaults to ~/.ghstore/staging.
func (d Dirs) StagingDir() (string, error) {
	if d.Staging != "" {
		return ensureDir(d.Staging)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return ensureDir(filepath.Join(home, ".ghstore", "staging"))
}

// AppsDir returns the directory installed apps live in, creating it if
// needed. Defaults to ~/.ghstore/apps.
func (d Dirs) AppsDir() (string, error) {
	if d.Apps != "" {
		return ensureDir(d.Apps)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return ensureDir(filepath.Join(home, ".ghstore", "apps"))
}

func ensureDir(path string) (string, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return path, nil
}
