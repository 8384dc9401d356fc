package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the single explicit configuration value of the launcher.
// It is loaded once at startup and passed into every component instead of
// letting components derive directories from ambient process state.
type Config struct {
	// AppDir is the directory holding the launcher executable. Defaults to the
	// directory of the running executable.
	AppDir string `yaml:"app_dir"`
	// BinDir holds companion executables and the replacer, relative to AppDir.
	BinDir string `yaml:"bin_dir"`
	// MiscDir holds the version cache and the settings env file, relative to AppDir.
	MiscDir string `yaml:"misc_dir"`
	// LogsDir holds logs written by detached processes, relative to AppDir.
	LogsDir string `yaml:"logs_dir"`
	// Launcher describes the launcher itself as a self-updating application.
	Launcher LauncherConfig `yaml:"launcher"`
	// Replacer describes the out-of-process binary swapper.
	Replacer ReplacerConfig `yaml:"replacer"`
	// Feed configures where releases are looked up.
	Feed FeedConfig `yaml:"feed"`
	// Apps lists the companion executables managed by the launcher.
	Apps []AppConfig `yaml:"apps"`
	// CheckInterval is the period between scheduled update checks in serve mode.
	CheckInterval time.Duration `yaml:"check_interval"`
	// HealthAddress is the gRPC health endpoint exposed in serve mode.
	HealthAddress string `yaml:"health_address"`
	// VersionQueryTimeout bounds `<app> --version` invocations.
	VersionQueryTimeout time.Duration `yaml:"version_query_timeout"`
}

// LauncherConfig identifies the launcher in the release feed.
type LauncherConfig struct {
	// Name is the application identifier of the launcher itself.
	Name string `yaml:"name"`
	// Repository optionally overrides the feed repository for the launcher.
	Repository string `yaml:"repository"`
}

// ReplacerConfig controls the replacer executable and its lock wait.
type ReplacerConfig struct {
	// Name is the application identifier of the replacer binary.
	Name string `yaml:"name"`
	// Repository optionally overrides the feed repository for the replacer.
	Repository string `yaml:"repository"`
	// LockTimeout bounds the wait for the target binary to become writable.
	LockTimeout time.Duration `yaml:"lock_timeout"`
	// PollInterval is the delay between writability probes.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// FeedConfig selects and configures the release feed.
type FeedConfig struct {
	// Kind is either FeedGitHub or FeedManifest.
	Kind string `yaml:"kind"`
	// Strategy picks the GitHub repository layout: StrategyPerApp or StrategyShared.
	Strategy string `yaml:"strategy"`
	// APIURL is the GitHub API base URL.
	APIURL string `yaml:"api_url"`
	// Repository is the default (per_app) or the only (shared) "owner/repo".
	Repository string `yaml:"repository"`
	// UpdateFolder is the base URL of a manifest feed.
	UpdateFolder string `yaml:"update_folder"`
	// TokenEnv names the environment variable holding the GitHub token.
	TokenEnv string `yaml:"token_env"`
	// Timeout bounds feed metadata requests.
	Timeout time.Duration `yaml:"timeout"`
	// DownloadTimeout bounds artifact downloads.
	DownloadTimeout time.Duration `yaml:"download_timeout"`
	// MaxArtifactSize caps the number of bytes accepted for one artifact.
	MaxArtifactSize int64 `yaml:"max_artifact_size"`
}

// AppConfig describes one managed companion executable.
type AppConfig struct {
	// Name is the application identifier and the executable stem.
	Name string `yaml:"name"`
	// Label is the human-facing action name (e.g. "Run Scraper").
	Label string `yaml:"label"`
	// Repository optionally overrides the feed repository ("owner/repo").
	Repository string `yaml:"repository"`
}

const (
	// DefaultConfigFilename is the default filename for launcher settings.
	DefaultConfigFilename = "launcher-settings.yaml"

	// FeedGitHub resolves releases through the GitHub releases API.
	FeedGitHub = "github"
	// FeedManifest resolves releases through a YAML manifest in an update folder.
	FeedManifest = "manifest"

	// StrategyPerApp looks each app up in its own repository.
	StrategyPerApp = "per_app"
	// StrategyShared looks every app up in one shared artifact repository.
	StrategyShared = "shared"

	// DefaultGitHubAPIURL is the public GitHub API endpoint.
	DefaultGitHubAPIURL = "https://api.github.com"
	// DefaultTokenEnv is the environment variable holding the GitHub token.
	DefaultTokenEnv = "GITHUB_TOKEN"

	// DefaultFeedTimeout bounds feed metadata requests.
	DefaultFeedTimeout = 10 * time.Second
	// DefaultDownloadTimeout bounds artifact downloads.
	DefaultDownloadTimeout = 5 * time.Minute
	// DefaultMaxArtifactSize caps a single downloaded artifact (512 MiB).
	DefaultMaxArtifactSize int64 = 512 << 20

	// DefaultLockTimeout is how long the replacer waits for the target to unlock.
	DefaultLockTimeout = 30 * time.Second
	// DefaultPollInterval is the replacer's writability probe interval.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultCheckInterval is the scheduled update check period in serve mode.
	DefaultCheckInterval = time.Hour
	// DefaultHealthAddress is the loopback gRPC health endpoint.
	DefaultHealthAddress = "127.0.0.1:50071"
	// DefaultVersionQueryTimeout bounds `--version` queries.
	DefaultVersionQueryTimeout = 30 * time.Second

	// DefaultLauncherName is the launcher's application identifier.
	DefaultLauncherName = "launcher"
	// DefaultReplacerName is the replacer's application identifier.
	DefaultReplacerName = "replacer"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
	// DefaultDirPermissions is used for directories created by the launcher.
	DefaultDirPermissions = 0o755
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnknownFeedKind is returned for an unsupported feed kind.
	errUnknownFeedKind = errors.New("unknown feed kind")
	// errUnknownStrategy is returned for an unsupported repository strategy.
	errUnknownStrategy = errors.New("unknown repository strategy")
	// errRepositoryRequired is returned when no repository can be derived for an app.
	errRepositoryRequired = errors.New("repository must be provided")
	// errInvalidRepository is returned for repositories not shaped like owner/repo.
	errInvalidRepository = errors.New("repository must look like owner/repo")
	// errUpdateFolderRequired is returned when a manifest feed has no update folder.
	errUpdateFolderRequired = errors.New("update folder must be provided for manifest feed")
	// errInvalidAppName is returned for empty or path-like app names.
	errInvalidAppName = errors.New("invalid app name")
	// errDuplicateApp is returned when two apps share a name or label.
	errDuplicateApp = errors.New("duplicate app")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes Config to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings and fills in defaults.
//
//nolint:cyclop,funlen // Flat list of defaults and checks reads best in one place.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.AppDir == "" {
		cfg.AppDir = executableDir()
	}

	cfg.BinDir = defaultString(cfg.BinDir, "bin")
	cfg.MiscDir = defaultString(cfg.MiscDir, "Misc")
	cfg.LogsDir = defaultString(cfg.LogsDir, "logs")
	cfg.Launcher.Name = defaultString(cfg.Launcher.Name, DefaultLauncherName)
	cfg.Replacer.Name = defaultString(cfg.Replacer.Name, DefaultReplacerName)
	cfg.HealthAddress = defaultString(cfg.HealthAddress, DefaultHealthAddress)
	cfg.Feed.Kind = defaultString(cfg.Feed.Kind, FeedGitHub)
	cfg.Feed.Strategy = defaultString(cfg.Feed.Strategy, StrategyPerApp)
	cfg.Feed.APIURL = defaultString(cfg.Feed.APIURL, DefaultGitHubAPIURL)
	cfg.Feed.TokenEnv = defaultString(cfg.Feed.TokenEnv, DefaultTokenEnv)

	cfg.Replacer.LockTimeout = defaultDuration(cfg.Replacer.LockTimeout, DefaultLockTimeout)
	cfg.Replacer.PollInterval = defaultDuration(cfg.Replacer.PollInterval, DefaultPollInterval)
	cfg.Feed.Timeout = defaultDuration(cfg.Feed.Timeout, DefaultFeedTimeout)
	cfg.Feed.DownloadTimeout = defaultDuration(cfg.Feed.DownloadTimeout, DefaultDownloadTimeout)
	cfg.CheckInterval = defaultDuration(cfg.CheckInterval, DefaultCheckInterval)
	cfg.VersionQueryTimeout = defaultDuration(cfg.VersionQueryTimeout, DefaultVersionQueryTimeout)

	if cfg.Feed.MaxArtifactSize <= 0 {
		cfg.Feed.MaxArtifactSize = DefaultMaxArtifactSize
	}

	if _, err := net.ResolveTCPAddr("tcp", cfg.HealthAddress); err != nil {
		return fmt.Errorf("invalid health address: %w", err)
	}

	if err := validateApps(cfg); err != nil {
		return err
	}

	switch cfg.Feed.Kind {
	case FeedGitHub:
		return validateGitHubFeed(cfg)
	case FeedManifest:
		if cfg.Feed.UpdateFolder == "" {
			return errUpdateFolderRequired
		}

		if _, err := url.ParseRequestURI(cfg.Feed.UpdateFolder); err != nil {
			return fmt.Errorf("invalid update folder URI: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownFeedKind, cfg.Feed.Kind)
	}
}

// App finds a configured app by its name or its label, case-insensitively.
func (c *Config) App(nameOrLabel string) (AppConfig, bool) {
	for _, app := range c.Apps {
		if strings.EqualFold(app.Name, nameOrLabel) || (app.Label != "" && strings.EqualFold(app.Label, nameOrLabel)) {
			return app, true
		}
	}

	return AppConfig{}, false
}

// RepositoryFor returns the "owner/repo" used to look up the named app.
// The shared strategy ignores per-app overrides.
func (c *Config) RepositoryFor(name string) string {
	if c.Feed.Strategy == StrategyShared {
		return c.Feed.Repository
	}

	switch {
	case strings.EqualFold(name, c.Launcher.Name) && c.Launcher.Repository != "":
		return c.Launcher.Repository
	case strings.EqualFold(name, c.Replacer.Name) && c.Replacer.Repository != "":
		return c.Replacer.Repository
	}

	if app, ok := c.App(name); ok && app.Repository != "" {
		return app.Repository
	}

	return c.Feed.Repository
}

// ExecutableName returns the on-disk file name for an app on this platform.
func ExecutableName(name string) string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return name + ".exe"
	}

	return name
}

func validateApps(cfg *Config) error {
	seen := make(map[string]struct{}, len(cfg.Apps))

	for _, app := range cfg.Apps {
		if err := validateAppName(app.Name); err != nil {
			return err
		}

		keys := []string{strings.ToLower(app.Name)}
		if app.Label != "" {
			keys = append(keys, strings.ToLower(app.Label))
		}

		for _, key := range keys {
			if _, found := seen[key]; found {
				return fmt.Errorf("%w: %q", errDuplicateApp, key)
			}

			seen[key] = struct{}{}
		}
	}

	if err := validateAppName(cfg.Launcher.Name); err != nil {
		return err
	}

	return validateAppName(cfg.Replacer.Name)
}

// validateAppName rejects names that would escape the bin directory.
func validateAppName(name string) error {
	if strings.TrimSpace(name) == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\:`) {
		return fmt.Errorf("%w: %q", errInvalidAppName, name)
	}

	return nil
}

func validateGitHubFeed(cfg *Config) error {
	if _, err := url.ParseRequestURI(cfg.Feed.APIURL); err != nil {
		return fmt.Errorf("invalid GitHub API URL: %w", err)
	}

	switch cfg.Feed.Strategy {
	case StrategyShared:
		return validateRepository(cfg.Feed.Repository)
	case StrategyPerApp:
		names := []string{cfg.Launcher.Name, cfg.Replacer.Name}
		for _, app := range cfg.Apps {
			names = append(names, app.Name)
		}

		for _, name := range names {
			if err := validateRepository(cfg.RepositoryFor(name)); err != nil {
				return fmt.Errorf("app %s: %w", name, err)
			}
		}

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownStrategy, cfg.Feed.Strategy)
	}
}

func validateRepository(repository string) error {
	if repository == "" {
		return errRepositoryRequired
	}

	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("%w: %q", errInvalidRepository, repository)
	}

	return nil
}

// executableDir returns the directory of the running executable, or "." when
// it cannot be determined.
func executableDir() string {
	executable, err := os.Executable()
	if err != nil {
		return "."
	}

	if resolved, err := filepath.EvalSymlinks(executable); err == nil {
		executable = resolved
	}

	return filepath.Dir(executable)
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}

	return value
}
