package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/levelup/internal/catalog"
	"github.com/abhisek/levelup/internal/config"
	"github.com/abhisek/levelup/internal/engine"
	"github.com/abhisek/levelup/internal/logging"
	"github.com/abhisek/levelup/internal/store"
)

// errRefused is returned when the engine declines a mutation.
var errRefused = errors.New("refused")

// runOpts controls how withEngine treats a failed load.
type runOpts struct {
	// recover lets the command run on defaults after a failed load. Only
	// commands that replace the stored data (import, reset) set it.
	recover bool
}

// withEngine opens the configured backend, builds and initializes an
// engine, runs fn and destroys the engine, which saves once more.
func withEngine(cmd *cobra.Command, opts runOpts, fn func(ctx context.Context, e *engine.Engine) error) error {
	ctx := cmd.Context()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer backend.Close()

	e := engine.New(backend, cfg.UserID,
		engine.WithLogger(logger),
		engine.WithCatalog(cat),
		engine.WithAutosaveInterval(cfg.Autosave),
	)
	announce(cmd.OutOrStdout(), e)

	if err := e.Initialize(ctx); err != nil && !opts.recover {
		_ = e.Destroy(ctx)
		return err
	}

	runErr := fn(ctx, e)
	if err := e.Destroy(ctx); err != nil && runErr == nil && !errors.Is(err, engine.ErrPersistenceSuspended) {
		logger.Error("final save failed", zap.Error(err))
		runErr = err
	}
	return runErr
}

// openBackend opens the storage backend named by cfg.Backend.
func openBackend(ctx context.Context, cfg config.Config) (store.Backend, error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			p, err := store.DefaultDBPath()
			if err != nil {
				return nil, fmt.Errorf("resolve DB path: %w", err)
			}
			path = p
		} else if err := store.EnsureDir(path); err != nil {
			return nil, err
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		s.SetKeepRevisions(cfg.SQLite.KeepRevisions)
		return s, nil

	case config.BackendFile:
		path := cfg.File.Path
		if path == "" {
			p, err := store.DefaultFilePath()
			if err != nil {
				return nil, fmt.Errorf("resolve file path: %w", err)
			}
			path = p
		} else if err := store.EnsureDir(path); err != nil {
			return nil, err
		}
		return store.OpenFile(path, cfg.File.Quota)

	case config.BackendRedis:
		return store.OpenRedis(ctx, store.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})

	case config.BackendMemory:
		return store.NewMemoryBackend(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// announce prints unlocks as they happen.
func announce(w io.Writer, e *engine.Engine) {
	e.Subscribe(engine.EventAchievementEarned, func(ev engine.Event) {
		p := ev.Payload.(engine.AchievementPayload)
		fmt.Fprintln(w, renderUnlock(p))
	})
	e.Subscribe(engine.EventLevelUp, func(ev engine.Event) {
		p := ev.Payload.(engine.LevelUpPayload)
		fmt.Fprintln(w, renderLevelUp(p))
	})
	e.Subscribe(engine.EventFeatureUnlocked, func(ev engine.Event) {
		p := ev.Payload.(engine.FeaturePayload)
		fmt.Fprintln(w, renderFeature(p))
	})
}
