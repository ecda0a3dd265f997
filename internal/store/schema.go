package store

const schema = `
CREATE TABLE IF NOT EXISTS installed_apps (
    package_id TEXT PRIMARY KEY,
    repo_id INTEGER NOT NULL,
    repo_owner TEXT NOT NULL,
    repo_name TEXT NOT NULL,
    repo_url TEXT,
    description TEXT,
    language TEXT,
    installed_version TEXT NOT NULL,
    installed_asset_name TEXT,
    installed_asset_url TEXT,
    latest_version TEXT,
    latest_asset_name TEXT,
    latest_asset_url TEXT,
    latest_asset_size INTEGER NOT NULL DEFAULT 0,
    release_notes TEXT,
    app_name TEXT NOT NULL,
    install_source TEXT NOT NULL,
    installed_at TIMESTAMP NOT NULL,
    last_checked_at TIMESTAMP NOT NULL,
    last_updated_at TIMESTAMP NOT NULL,
    update_available BOOLEAN NOT NULL DEFAULT 0,
    update_check_enabled BOOLEAN NOT NULL DEFAULT 1,
    architecture TEXT,
    file_extension TEXT,
    pending_install BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS update_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    package_id TEXT NOT NULL,
    app_name TEXT NOT NULL,
    repo_owner TEXT NOT NULL,
    repo_name TEXT NOT NULL,
    from_version TEXT NOT NULL,
    to_version TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    update_source TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    error_text TEXT
);

CREATE INDEX IF NOT EXISTS idx_apps_repo_id ON installed_apps(repo_id);
CREATE INDEX IF NOT EXISTS idx_apps_update_available ON installed_apps(update_available);
CREATE INDEX IF NOT EXISTS idx_history_package ON update_history(package_id);
CREATE INDEX IF NOT EXISTS idx_history_updated_at ON update_history(updated_at);
`
