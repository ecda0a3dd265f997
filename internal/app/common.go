package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/blackwell-systems/ghstore/internal/auth"
	"github.com/blackwell-systems/ghstore/internal/config"
	"github.com/blackwell-systems/ghstore/internal/github"
	"github.com/blackwell-systems/ghstore/internal/pipeline"
	"github.com/blackwell-systems/ghstore/internal/platform"
	"github.com/blackwell-systems/ghstore/internal/store"
	"github.com/blackwell-systems/ghstore/internal/updates"
)

// env holds the wired collaborators every command works with.
type env struct {
	cfg       *config.Config
	store     *store.Store
	creds     *auth.CredentialStore
	client    *github.Client
	locations platform.Dirs
	logger    *log.Logger
}

// newEnv loads configuration and opens the store and credential state. The
// caller owns the returned env and must Close it.
func newEnv() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := s.CreateSchema(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	confDir, err := config.Dir()
	if err != nil {
		s.Close()
		return nil, err
	}
	creds, err := auth.NewCredentialStore(confDir)
	if err != nil {
		s.Close()
		return nil, err
	}

	client := github.NewClient(
		github.WithAPIBase(cfg.GitHub.APIBase),
		github.WithAuthBase(cfg.GitHub.AuthBase),
		github.WithTokenSource(creds.TokenSource()),
	)

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: "ghstore"})

	return &env{
		cfg:       cfg,
		store:     s,
		creds:     creds,
		client:    client,
		locations: platform.Dirs{Staging: cfg.StagingDir, Apps: cfg.AppsDir},
		logger:    logger,
	}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.logger.Warn("failed to close database", "error", err)
	}
}

func (e *env) sessionManager() *auth.SessionManager {
	return auth.NewSessionManager(e.client, e.creds, e.cfg.GitHub.ClientID, e.cfg.GitHub.Scope, e.logger)
}

func (e *env) installer() *platform.DirInstaller {
	return platform.NewDirInstaller(e.locations)
}

func (e *env) engine() *updates.Engine {
	return updates.NewEngine(e.store, e.client, e.installer(), e.logger)
}

func (e *env) orchestrator() *pipeline.Orchestrator {
	return pipeline.New(
		e.store,
		platform.NewHTTPDownloader(e.client),
		e.installer(),
		platform.NewArchiveInfoExtractor(),
		e.locations,
		e.logger,
	)
}

// resolveRepo expands an alias and splits an owner/repo argument.
func (e *env) resolveRepo(arg string) (owner, repo string, err error) {
	confDir, err := config.Dir()
	if err != nil {
		return "", "", err
	}
	aliases, err := config.LoadAliases(confDir)
	if err != nil {
		return "", "", fmt.Errorf("failed to load aliases: %w", err)
	}
	resolved := aliases.Resolve(arg)

	parts := strings.Split(resolved, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected owner/repo (or a configured alias), got %q", arg)
	}
	return parts[0], parts[1], nil
}

// pidFilePath returns the daemon PID file location, creating the data dir.
func pidFilePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.pid"), nil
}

// logFilePath returns the daemon log file location.
func logFilePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daemon.log"), nil
}

func dataDir() (string, error) {
	dir, err := config.DataDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create ghstore directory: %w", err)
	}
	return dir, nil
}
