package cmd

import (
	"context"
	"fmt"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/release"
	"github.com/oshokin/companion-launcher/internal/repository/versions"
	"github.com/oshokin/companion-launcher/internal/service/launcher"
	"github.com/oshokin/companion-launcher/internal/service/orchestrator"
	"github.com/oshokin/companion-launcher/internal/settings"
)

// environment is everything a subcommand needs, built once per invocation.
type environment struct {
	cfg          *config.Config
	paths        config.Paths
	settings     *settings.Store
	cache        *versions.FileRepository
	orchestrator *orchestrator.Orchestrator
	launcher     *launcher.Launcher
}

// loadConfig reads the settings file and the .env store next to it.
func loadConfig(opts *globalOptions) (*config.Config, *settings.Store, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	store := settings.New(cfg.Paths().EnvFile)

	return cfg, store, nil
}

// bootstrap loads configuration, applies stored settings to the process
// environment and wires the update services.
func bootstrap(ctx context.Context, opts *globalOptions) (*environment, error) {
	cfg, store, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	paths := cfg.Paths()
	if err = paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}

	if err = store.Apply(); err != nil {
		logger.WarnKV(ctx, "Failed to load stored settings", "path", store.Path(), "error", err)
	}

	resolver, err := release.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("create release resolver: %w", err)
	}

	cache := versions.NewFileRepository(ctx, paths.VersionsFile)
	orch := orchestrator.New(cfg, resolver, cache)

	return &environment{
		cfg:          cfg,
		paths:        paths,
		settings:     store,
		cache:        cache,
		orchestrator: orch,
		launcher:     launcher.New(cfg, orch),
	}, nil
}
