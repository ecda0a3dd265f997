package store

import (
	"database/sql"
	"fmt"
	"time"
)

const appColumns = `package_id, repo_id, repo_owner, repo_name, repo_url, description, language,
	installed_version, installed_asset_name, installed_asset_url,
	latest_version, latest_asset_name, latest_asset_url, latest_asset_size, release_notes,
	app_name, install_source, installed_at, last_checked_at, last_updated_at,
	update_available, update_check_enabled, architecture, file_extension, pending_install`

// App operations

// UpsertApp inserts or replaces an app record keyed by package id.
func (s *Store) UpsertApp(app *InstalledApp) error {
	unlock := s.keys.lock(app.PackageID)
	defer unlock()

	query := `
		INSERT OR REPLACE INTO installed_apps (` + appColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		app.PackageID,
		app.RepoID,
		app.RepoOwner,
		app.RepoName,
		app.RepoURL,
		app.Description,
		app.Language,
		app.InstalledVersion,
		app.InstalledAssetName,
		app.InstalledAssetURL,
		app.LatestVersion,
		app.LatestAssetName,
		app.LatestAssetURL,
		app.LatestAssetSize,
		app.ReleaseNotes,
		app.AppName,
		string(app.InstallSource),
		fmtTime(app.InstalledAt),
		fmtTime(app.LastCheckedAt),
		fmtTime(app.LastUpdatedAt),
		app.UpdateAvailable,
		app.UpdateCheckEnabled,
		app.Architecture,
		app.FileExtension,
		app.PendingInstall,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert app %s: %w", app.PackageID, err)
	}

	s.notifyWatchers()
	return nil
}

// GetApp retrieves an app by package id. Returns (nil, nil) when the package
// is not tracked; callers treat absence as a no-op, not a failure.
func (s *Store) GetApp(packageID string) (*InstalledApp, error) {
	query := `SELECT ` + appColumns + ` FROM installed_apps WHERE package_id = ?`
	app, err := scanApp(s.db.QueryRow(query, packageID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app %s: %w", packageID, err)
	}
	return app, nil
}

// GetAppByRepoID retrieves an app by its source repository id. Returns
// (nil, nil) when no tracked app came from that repository.
func (s *Store) GetAppByRepoID(repoID int64) (*InstalledApp, error) {
	query := `SELECT ` + appColumns + ` FROM installed_apps WHERE repo_id = ? ORDER BY package_id LIMIT 1`
	app, err := scanApp(s.db.QueryRow(query, repoID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app for repo %d: %w", repoID, err)
	}
	return app, nil
}

// ListApps returns all tracked apps ordered by package id. The fixed order
// makes bulk sweeps deterministic within one run.
func (s *Store) ListApps() ([]*InstalledApp, error) {
	return s.listApps(`SELECT ` + appColumns + ` FROM installed_apps ORDER BY package_id`)
}

// ListAppsWithUpdates returns apps whose last sync found a newer release.
func (s *Store) ListAppsWithUpdates() ([]*InstalledApp, error) {
	return s.listApps(`SELECT ` + appColumns + ` FROM installed_apps WHERE update_available = 1 ORDER BY package_id`)
}

// UpdateCount returns the number of apps with a pending update.
func (s *Store) UpdateCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM installed_apps WHERE update_available = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count updates: %w", err)
	}
	return n, nil
}

// DeleteApp removes an app record. Deleting an untracked package is a no-op.
// History rows are intentionally left in place.
func (s *Store) DeleteApp(packageID string) error {
	unlock := s.keys.lock(packageID)
	defer unlock()

	result, err := s.db.Exec(`DELETE FROM installed_apps WHERE package_id = ?`, packageID)
	if err != nil {
		return fmt.Errorf("failed to delete app %s: %w", packageID, err)
	}

	if rows, raErr := result.RowsAffected(); raErr == nil && rows > 0 {
		s.notifyWatchers()
	}
	return nil
}

// UpdateVersionInfo atomically writes the sync-owned fields of an app record:
// the update flag, latest release metadata, and the check timestamp. Fields
// owned by the install pipeline are untouched. Updating an untracked package
// is a no-op.
func (s *Store) UpdateVersionInfo(packageID string, info VersionInfo) error {
	unlock := s.keys.lock(packageID)
	defer unlock()

	query := `
		UPDATE installed_apps
		SET update_available = ?, latest_version = ?, latest_asset_name = ?,
		    latest_asset_url = ?, latest_asset_size = ?, release_notes = ?,
		    last_checked_at = ?
		WHERE package_id = ?
	`

	result, err := s.db.Exec(query,
		info.UpdateAvailable,
		info.LatestVersion,
		info.LatestAssetName,
		info.LatestAssetURL,
		info.LatestAssetSize,
		info.ReleaseNotes,
		fmtTime(info.CheckedAt),
		packageID,
	)
	if err != nil {
		return fmt.Errorf("failed to update version info for %s: %w", packageID, err)
	}

	if rows, raErr := result.RowsAffected(); raErr == nil && rows > 0 {
		s.notifyWatchers()
	}
	return nil
}

// UpdateLastChecked bumps only the check timestamp, used when a sync attempt
// failed and last-known state must otherwise stay intact.
func (s *Store) UpdateLastChecked(packageID string, at time.Time) error {
	unlock := s.keys.lock(packageID)
	defer unlock()

	_, err := s.db.Exec(`UPDATE installed_apps SET last_checked_at = ? WHERE package_id = ?`,
		fmtTime(at), packageID)
	if err != nil {
		return fmt.Errorf("failed to update last checked for %s: %w", packageID, err)
	}

	s.notifyWatchers()
	return nil
}

// SetPendingInstall flips the pending-install flag, the only field the
// pipeline touches before it has a completed outcome.
func (s *Store) SetPendingInstall(packageID string, pending bool) error {
	unlock := s.keys.lock(packageID)
	defer unlock()

	_, err := s.db.Exec(`UPDATE installed_apps SET pending_install = ? WHERE package_id = ?`,
		pending, packageID)
	if err != nil {
		return fmt.Errorf("failed to set pending install for %s: %w", packageID, err)
	}

	s.notifyWatchers()
	return nil
}

// ApplyInstalledVersion atomically commits a successful install: installed
// fields take the new values, the latest fields collapse onto them, the
// update and pending flags clear, and the timestamps bump. Applying to an
// untracked package is a no-op.
func (s *Store) ApplyInstalledVersion(packageID string, v InstalledVersion) error {
	unlock := s.keys.lock(packageID)
	defer unlock()

	query := `
		UPDATE installed_apps
		SET installed_version = ?, installed_asset_name = ?, installed_asset_url = ?,
		    latest_version = ?, latest_asset_name = ?, latest_asset_url = ?,
		    update_available = 0, pending_install = 0,
		    installed_at = ?, last_updated_at = ?, last_checked_at = ?
		WHERE package_id = ?
	`

	at := fmtTime(v.At)
	result, err := s.db.Exec(query,
		v.Version, v.AssetName, v.AssetURL,
		v.Version, v.AssetName, v.AssetURL,
		at, at, at,
		packageID,
	)
	if err != nil {
		return fmt.Errorf("failed to apply installed version for %s: %w", packageID, err)
	}

	if rows, raErr := result.RowsAffected(); raErr == nil && rows > 0 {
		s.notifyWatchers()
	}
	return nil
}

// History operations

// InsertHistory appends one update-history row. History is append-only:
// rows are never modified after insertion.
func (s *Store) InsertHistory(h *UpdateHistory) error {
	query := `
		INSERT INTO update_history
		(package_id, app_name, repo_owner, repo_name, from_version, to_version,
		 updated_at, update_source, success, error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		h.PackageID,
		h.AppName,
		h.RepoOwner,
		h.RepoName,
		h.FromVersion,
		h.ToVersion,
		fmtTime(h.UpdatedAt),
		string(h.Source),
		h.Success,
		h.ErrorText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert history for %s: %w", h.PackageID, err)
	}

	if id, idErr := result.LastInsertId(); idErr == nil {
		h.ID = id
	}

	s.notifyWatchers()
	return nil
}

// RecentHistory returns the most recent history rows, newest first.
func (s *Store) RecentHistory(limit int) ([]*UpdateHistory, error) {
	query := `
		SELECT id, package_id, app_name, repo_owner, repo_name, from_version, to_version,
		       updated_at, update_source, success, error_text
		FROM update_history
		ORDER BY updated_at DESC, id DESC
		LIMIT ?
	`
	return s.listHistory(query, limit)
}

// HistoryForPackage returns all history rows for one package, newest first.
func (s *Store) HistoryForPackage(packageID string) ([]*UpdateHistory, error) {
	query := `
		SELECT id, package_id, app_name, repo_owner, repo_name, from_version, to_version,
		       updated_at, update_source, success, error_text
		FROM update_history
		WHERE package_id = ?
		ORDER BY updated_at DESC, id DESC
	`
	return s.listHistory(query, packageID)
}

// PurgeHistoryBefore deletes history rows older than the cutoff and returns
// how many were removed. This is the only path that ever deletes history.
func (s *Store) PurgeHistoryBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM update_history WHERE updated_at < ?`, fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.notifyWatchers()
	}
	return rows, nil
}

// Row scanning helpers

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApp(row rowScanner) (*InstalledApp, error) {
	var app InstalledApp
	var source string
	var installedAt, lastCheckedAt, lastUpdatedAt string

	err := row.Scan(
		&app.PackageID,
		&app.RepoID,
		&app.RepoOwner,
		&app.RepoName,
		&app.RepoURL,
		&app.Description,
		&app.Language,
		&app.InstalledVersion,
		&app.InstalledAssetName,
		&app.InstalledAssetURL,
		&app.LatestVersion,
		&app.LatestAssetName,
		&app.LatestAssetURL,
		&app.LatestAssetSize,
		&app.ReleaseNotes,
		&app.AppName,
		&source,
		&installedAt,
		&lastCheckedAt,
		&lastUpdatedAt,
		&app.UpdateAvailable,
		&app.UpdateCheckEnabled,
		&app.Architecture,
		&app.FileExtension,
		&app.PendingInstall,
	)
	if err != nil {
		return nil, err
	}

	app.InstallSource = InstallSource(source)
	if app.InstalledAt, err = parseTime(installedAt); err != nil {
		return nil, fmt.Errorf("failed to parse installed_at for %s: %w", app.PackageID, err)
	}
	if app.LastCheckedAt, err = parseTime(lastCheckedAt); err != nil {
		return nil, fmt.Errorf("failed to parse last_checked_at for %s: %w", app.PackageID, err)
	}
	if app.LastUpdatedAt, err = parseTime(lastUpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse last_updated_at for %s: %w", app.PackageID, err)
	}

	return &app, nil
}

func (s *Store) listApps(query string, args ...interface{}) ([]*InstalledApp, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list apps: %w", err)
	}
	defer rows.Close()

	var apps []*InstalledApp
	for rows.Next() {
		app, scanErr := scanApp(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan app row: %w", scanErr)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating apps: %w", err)
	}
	return apps, nil
}

func (s *Store) listHistory(query string, args ...interface{}) ([]*UpdateHistory, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []*UpdateHistory
	for rows.Next() {
		var h UpdateHistory
		var source string
		var updatedAt string

		err := rows.Scan(
			&h.ID,
			&h.PackageID,
			&h.AppName,
			&h.RepoOwner,
			&h.RepoName,
			&h.FromVersion,
			&h.ToVersion,
			&updatedAt,
			&source,
			&h.Success,
			&h.ErrorText,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}

		h.Source = InstallSource(source)
		if h.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("failed to parse updated_at for history %d: %w", h.ID, err)
		}
		entries = append(entries, &h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return entries, nil
}

// Timestamps are stored as RFC 3339 UTC strings so lexicographic SQL
// comparisons order the same way as time comparisons.

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
