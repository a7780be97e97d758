package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/prepcoach/internal/assessment"
	"github.com/abhisek/prepcoach/internal/config"
	"github.com/abhisek/prepcoach/internal/content"
	"github.com/abhisek/prepcoach/internal/logger"
	"github.com/abhisek/prepcoach/internal/progress"
	"github.com/abhisek/prepcoach/internal/remote"
	"github.com/abhisek/prepcoach/internal/store"
	"github.com/abhisek/prepcoach/internal/tokencache"
)

// env bundles the dependencies a command needs.
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	bundle    *content.Bundle
	catalog   *content.Catalog
	store     *store.Store
	tokens    tokencache.Store
	remote    *remote.Client // nil when syncing locally
	journeyID string

	closers []func() error
}

// loadConfig reads env configuration and applies persistent flag
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	if p, _ := cmd.Flags().GetString("content"); p != "" {
		cfg.ContentPath = p
	}
	if j, _ := cmd.Flags().GetString("journey"); j != "" {
		cfg.JourneyID = j
	}
	if u, _ := cmd.Flags().GetString("remote"); u != "" {
		cfg.RemoteURL = u
	}
	return cfg, cfg.Validate()
}

// openEnv loads configuration, content and the local store, and the remote
// client when a sync server is configured. Tweaks adjust the loaded config.
func openEnv(cmd *cobra.Command, tweaks ...func(*config.Config)) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, t := range tweaks {
		t(cfg)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	e := &env{cfg: cfg, log: log}
	e.closers = append(e.closers, func() error { log.Sync(); return nil })

	if cfg.ContentPath != "" {
		e.bundle, err = content.Load(cfg.ContentPath)
	} else {
		e.bundle, err = content.Default()
	}
	if err != nil {
		e.close()
		return nil, err
	}
	e.catalog = content.NewCatalog(e.bundle)
	e.journeyID = cfg.JourneyID
	if e.journeyID == "" {
		e.journeyID = e.bundle.JourneyID
	}

	if err := store.EnsureDir(cfg.DBPath); err != nil {
		e.close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	e.store, err = store.Open(cfg.DBPath)
	if err != nil {
		e.close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	e.closers = append(e.closers, e.store.Close)

	if e.tokens, err = openTokens(cmd.Context(), cfg); err != nil {
		e.close()
		return nil, err
	}
	if r, ok := e.tokens.(*tokencache.Redis); ok {
		e.closers = append(e.closers, r.Close)
	}

	if cfg.RemoteURL != "" {
		e.remote = remote.New(cfg.RemoteURL, e.tokens, remote.WithLogger(log))
	}
	return e, nil
}

// openTokens picks Redis when configured, otherwise an in-process cache
// seeded from PREPCOACH_TOKEN.
func openTokens(ctx context.Context, cfg *config.Config) (tokencache.Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.RedisAddr != "" {
		r, err := tokencache.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		if cfg.Token != "" {
			if err := r.Set(ctx, tokencache.TokenKey, cfg.Token, 0); err != nil {
				r.Close()
				return nil, err
			}
		}
		return r, nil
	}
	m := tokencache.NewMemory()
	if cfg.Token != "" {
		if err := m.Set(ctx, tokencache.TokenKey, cfg.Token, 0); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// repository is where progress is loaded from and saved to.
func (e *env) repository() progress.Repository {
	if e.remote != nil {
		return e.remote
	}
	return progress.NewStoreRepository(e.store.SnapshotRepo(), e.cfg.SnapshotKeep)
}

// submitter grades assessments: the sync server when configured, otherwise
// locally against the content bundle.
func (e *env) submitter() assessment.Submitter {
	if e.remote != nil {
		return e.remote
	}
	return assessment.NewLocalSubmitter(e.catalog, e.store.AttemptRepo(), "", e.log)
}

// aggregator returns an aggregator with the journey loaded.
func (e *env) aggregator(ctx context.Context) (*progress.Aggregator, error) {
	agg := progress.NewAggregator(e.repository(), e.catalog.Outline(), progress.WithLogger(e.log))
	if err := agg.Load(ctx, e.journeyID); err != nil {
		return nil, err
	}
	return agg, nil
}

// save persists the aggregator and reports a failed sync without failing
// the command: the local tree stays authoritative.
func (e *env) save(ctx context.Context, agg *progress.Aggregator) {
	if err := agg.Save(ctx); err != nil {
		fmt.Printf("Progress not yet synced: %v\n", err)
	}
}
