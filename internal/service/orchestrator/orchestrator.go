package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/release"
	"github.com/oshokin/companion-launcher/internal/repository/versions"
	"github.com/oshokin/companion-launcher/internal/service/process"
)

// Orchestrator checks for and applies updates of configured applications.
type Orchestrator struct {
	cfg      *config.Config
	paths    config.Paths
	resolver release.Resolver
	cache    versions.Repository
	runner   Runner
	client   *http.Client
	self     string
	exit     func(code int)
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunner sets how the replacer executable is run.
func WithRunner(runner Runner) Option {
	return func(o *Orchestrator) {
		o.runner = runner
	}
}

// WithHTTPClient sets the client used for artifact downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Orchestrator) {
		o.client = client
	}
}

// WithSelf overrides the path of the running launcher executable.
func WithSelf(path string) Option {
	return func(o *Orchestrator) {
		o.self = path
	}
}

// WithExit overrides how the process exits after starting a self-update.
func WithExit(exit func(code int)) Option {
	return func(o *Orchestrator) {
		o.exit = exit
	}
}

// New creates an Orchestrator for cfg.
func New(cfg *config.Config, resolver release.Resolver, cache versions.Repository, opts ...Option) *Orchestrator {
	paths := cfg.Paths()

	orchestrator := &Orchestrator{
		cfg:      cfg,
		paths:    paths,
		resolver: resolver,
		cache:    cache,
		runner:   NewExecRunner(paths.ReplacerLog),
		client:   &http.Client{Timeout: cfg.Feed.DownloadTimeout},
		exit:     os.Exit,
	}

	if executable, err := os.Executable(); err == nil {
		orchestrator.self = executable
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator
}

// Identity returns the paths of app. The launcher's own name maps onto the
// running executable; every other app lives in the bin directory.
func (o *Orchestrator) Identity(app string) update.AppIdentity {
	switch {
	case strings.EqualFold(app, o.cfg.Launcher.Name) && o.self != "":
		return update.NewAppIdentity(o.cfg.Launcher.Name, o.self)
	case strings.EqualFold(app, o.cfg.Replacer.Name):
		return update.NewAppIdentity(o.cfg.Replacer.Name, o.paths.Replacer)
	default:
		return update.NewAppIdentity(app, filepath.Join(o.paths.BinDir, config.ExecutableName(app)))
	}
}

// CheckForUpdate returns the latest release of app when it is newer than
// current, or nil. Feed failures are logged and reported as nil so they never
// block a launch. It performs no filesystem writes.
func (o *Orchestrator) CheckForUpdate(ctx context.Context, app, current string) *update.ReleaseDescriptor {
	ctx = logger.WithFields(ctx, "app", app, "current", current)

	if reason, halted := o.cache.Halted(app); halted {
		logger.WarnKV(ctx, "Automatic updates are halted, clear the app to resume", "reason", reason)

		return nil
	}

	if strings.TrimSpace(current) == "" {
		logger.Info(ctx, "Current version is unknown, skipping update check")

		return nil
	}

	latest, err := o.resolver.Latest(ctx, app)
	if err != nil {
		switch {
		case errors.Is(err, update.ErrNotFound):
			logger.InfoKV(ctx, "No release found", "error", err)
		default:
			logger.WarnKV(ctx, "Release feed unavailable", "error", err)
		}

		return nil
	}

	if latest == nil || strings.TrimSpace(latest.Tag) == "" || latest.URL == "" {
		logger.Info(ctx, "Latest release has no tag or artifact URL")

		return nil
	}

	if !update.IsNewer(latest.Tag, current) {
		logger.DebugKV(ctx, "Up to date", "latest", latest.Tag)

		return nil
	}

	logger.InfoKV(ctx, "Update available", "latest", latest.Tag)

	return latest
}

// CurrentVersion returns the cached version of app, or asks the installed
// executable. An empty string means unknown.
func (o *Orchestrator) CurrentVersion(ctx context.Context, app string) string {
	if cached, ok := o.cache.Get(app); ok && cached != "" {
		return cached
	}

	target := o.Identity(app).TargetPath

	queried, err := process.QueryVersion(ctx, target, o.cfg.VersionQueryTimeout)
	if err != nil {
		logger.DebugKV(ctx, "Version query failed", "app", app, "error", err)

		return ""
	}

	return queried
}

// Update checks app against the feed and applies a newer release.
func (o *Orchestrator) Update(ctx context.Context, app, current string) update.Result {
	tx := update.NewTransaction(app, current)

	candidate := o.CheckForUpdate(ctx, app, current)
	if candidate == nil {
		_ = tx.Transition(update.StateDone)

		return tx.Result()
	}

	return o.apply(ctx, tx, candidate)
}

// Apply installs release over app. The result carries the reason of a failure.
func (o *Orchestrator) Apply(ctx context.Context, app string, candidate *update.ReleaseDescriptor) update.Result {
	current, _ := o.cache.Get(app)

	return o.apply(ctx, update.NewTransaction(app, current), candidate)
}

// Halted reports the halt reason of app, if any.
func (o *Orchestrator) Halted(app string) (string, bool) {
	return o.cache.Halted(app)
}

// Clear resumes automatic updates of app.
func (o *Orchestrator) Clear(ctx context.Context, app string) error {
	return o.cache.Clear(ctx, app)
}

// Paths returns the resolved filesystem layout.
func (o *Orchestrator) Paths() config.Paths {
	return o.paths
}
