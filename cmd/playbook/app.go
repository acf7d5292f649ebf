package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/config"
	"github.com/hpungsan/playbook/internal/db"
	"github.com/hpungsan/playbook/internal/generation"
	"github.com/hpungsan/playbook/internal/localstore"
	"github.com/hpungsan/playbook/internal/pgdb"
	"github.com/hpungsan/playbook/internal/session"
	"github.com/hpungsan/playbook/internal/store"
	"github.com/hpungsan/playbook/internal/web"
)

// keySessionSecret holds the generated cookie signing secret when none is configured.
const keySessionSecret = "pp_session_secret"

// appEnv is everything a command needs: configuration, the selected
// persistence backend, and the device owner.
type appEnv struct {
	cfg      *config.Config
	baseDir  string
	logger   *zap.Logger
	local    *localstore.File
	registry *store.Registry
	owner    string
	gen      web.Generator

	db *sql.DB
}

// openEnv opens the storage driver selected by cfg under baseDir.
func openEnv(ctx context.Context, baseDir string, cfg *config.Config, logger *zap.Logger) (*appEnv, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	local, err := localstore.Open(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	owner, err := local.OwnerID()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner id: %w", err)
	}

	env := &appEnv{cfg: cfg, baseDir: baseDir, logger: logger, local: local, owner: owner}

	var repo store.Repository
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		database, err := pgdb.Open(ctx, cfg.PostgresDSN, cfg)
		if err != nil {
			return nil, err
		}
		env.db = database
		repo = pgdb.NewPostgresRepository(database, logger)
	case config.DriverLocal:
		repo = localstore.NewRepository(local, logger)
	default:
		database, err := db.Init(baseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		db.ConfigurePool(database, cfg)
		env.db = database
		repo = db.NewRepository(database, logger)
	}

	env.registry = store.NewRegistry(repo, local, logger)
	logger.Debug("storage opened",
		zap.String("driver", cfg.StorageDriver),
		zap.String("base_dir", baseDir))
	return env, nil
}

// Close releases the database handle, if any.
func (e *appEnv) Close() {
	if e.db != nil {
		_ = e.db.Close()
		e.db = nil
	}
}

// ownerStore returns the device owner's store.
func (e *appEnv) ownerStore(ctx context.Context) (*store.Store, error) {
	return e.registry.For(ctx, e.owner)
}

// sessionSecret returns the configured secret, or one generated on first run
// and kept in the local store.
func (e *appEnv) sessionSecret() (string, error) {
	if e.cfg.SessionSecret != "" {
		return e.cfg.SessionSecret, nil
	}
	if v, ok := e.local.Get(keySessionSecret); ok && v != "" {
		return v, nil
	}
	secret, err := session.GenerateSecret()
	if err != nil {
		return "", err
	}
	if err := e.local.Set(keySessionSecret, secret); err != nil {
		return "", err
	}
	return secret, nil
}

// generator returns the playbook generator: the injected one in tests, or a
// client for the configured generation endpoint.
func (e *appEnv) generator() web.Generator {
	if e.gen != nil {
		return e.gen
	}
	return generation.NewClient(e.cfg.GenerationBaseURL(), e.cfg.AnonKey, generation.WithLogger(e.logger))
}
