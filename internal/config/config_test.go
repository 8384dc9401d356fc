package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()

	return &Config{
		AppDir: t.TempDir(),
		Feed: FeedConfig{
			Repository: "octo/launcher",
		},
		Apps: []AppConfig{
			{Name: "Scraper", Label: "Run Scraper"},
			{Name: "Mailer", Repository: "octo/mailer"},
		},
	}
}

// TestValidate checks required fields and format validations for Config.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Nil config.
	require.Error(t, Validate(nil))

	// Per-app strategy without any repository.
	cfg := &Config{AppDir: t.TempDir()}
	require.ErrorIs(t, Validate(cfg), errRepositoryRequired)

	// Bad health address.
	cfg = validConfig(t)
	cfg.HealthAddress = "bad:address"
	require.Error(t, Validate(cfg))

	// Path-like app names are rejected.
	cfg = validConfig(t)
	cfg.Apps = append(cfg.Apps, AppConfig{Name: "../evil"})
	require.ErrorIs(t, Validate(cfg), errInvalidAppName)

	// Labels collide with names case-insensitively.
	cfg = validConfig(t)
	cfg.Apps = append(cfg.Apps, AppConfig{Name: "Other", Label: "mailer"})
	require.ErrorIs(t, Validate(cfg), errDuplicateApp)

	// Unknown feed kind.
	cfg = validConfig(t)
	cfg.Feed.Kind = "ftp"
	require.ErrorIs(t, Validate(cfg), errUnknownFeedKind)

	// Manifest feed requires an update folder.
	cfg = validConfig(t)
	cfg.Feed.Kind = FeedManifest
	require.ErrorIs(t, Validate(cfg), errUpdateFolderRequired)

	cfg.Feed.UpdateFolder = "https://updates.local/launcher/"
	require.NoError(t, Validate(cfg))

	// Shared strategy needs a well formed repository.
	cfg = validConfig(t)
	cfg.Feed.Strategy = StrategyShared
	cfg.Feed.Repository = "no-slash"
	require.ErrorIs(t, Validate(cfg), errInvalidRepository)
}

// TestValidate_Defaults ensures Validate fills every tunable.
func TestValidate_Defaults(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	require.NoError(t, Validate(cfg))

	require.Equal(t, "bin", cfg.BinDir)
	require.Equal(t, "Misc", cfg.MiscDir)
	require.Equal(t, "logs", cfg.LogsDir)
	require.Equal(t, FeedGitHub, cfg.Feed.Kind)
	require.Equal(t, StrategyPerApp, cfg.Feed.Strategy)
	require.Equal(t, DefaultGitHubAPIURL, cfg.Feed.APIURL)
	require.Equal(t, DefaultTokenEnv, cfg.Feed.TokenEnv)
	require.Equal(t, DefaultLockTimeout, cfg.Replacer.LockTimeout)
	require.Equal(t, DefaultPollInterval, cfg.Replacer.PollInterval)
	require.Equal(t, DefaultMaxArtifactSize, cfg.Feed.MaxArtifactSize)
	require.Equal(t, DefaultHealthAddress, cfg.HealthAddress)
	require.Equal(t, DefaultLauncherName, cfg.Launcher.Name)
	require.Equal(t, DefaultReplacerName, cfg.Replacer.Name)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := validConfig(t)
	cfg.Replacer.LockTimeout = 45_000_000_000

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.AppDir, loaded.AppDir)
	require.Equal(t, cfg.Apps, loaded.Apps)
	require.Equal(t, cfg.Feed.Repository, loaded.Feed.Repository)
	require.Equal(t, cfg.Replacer.LockTimeout, loaded.Replacer.LockTimeout)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.False(t, info.IsDir())
}

// TestLoad_DurationStrings checks human-readable durations in YAML.
func TestLoad_DurationStrings(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, DefaultConfigFilename)

	contents := "app_dir: " + dir + "\n" +
		"feed:\n  repository: octo/tools\n" +
		"replacer:\n  lock_timeout: 1m\n  poll_interval: 250ms\n" +
		"apps:\n  - name: Foo\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "1m0s", cfg.Replacer.LockTimeout.String())
	require.Equal(t, "250ms", cfg.Replacer.PollInterval.String())
}

func TestRepositoryFor(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	cfg.Replacer.Repository = "octo/replacer"
	require.NoError(t, Validate(cfg))

	require.Equal(t, "octo/mailer", cfg.RepositoryFor("mailer"))
	require.Equal(t, "octo/launcher", cfg.RepositoryFor("Scraper"))
	require.Equal(t, "octo/replacer", cfg.RepositoryFor(DefaultReplacerName))
	require.Equal(t, "octo/launcher", cfg.RepositoryFor(DefaultLauncherName))

	cfg.Feed.Strategy = StrategyShared
	require.Equal(t, "octo/launcher", cfg.RepositoryFor("mailer"))
}

func TestApp_ByNameOrLabel(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)

	app, ok := cfg.App("run scraper")
	require.True(t, ok)
	require.Equal(t, "Scraper", app.Name)

	app, ok = cfg.App("MAILER")
	require.True(t, ok)
	require.Equal(t, "Mailer", app.Name)

	_, ok = cfg.App("unknown")
	require.False(t, ok)
}

func TestPaths(t *testing.T) {
	t.Parallel()

	cfg := validConfig(t)
	require.NoError(t, Validate(cfg))

	paths := cfg.Paths()
	require.Equal(t, filepath.Join(cfg.AppDir, "bin"), paths.BinDir)
	require.Equal(t, filepath.Join(cfg.AppDir, "Misc", "versions.json"), paths.VersionsFile)
	require.Equal(t, filepath.Join(cfg.AppDir, "Misc", ".env"), paths.EnvFile)
	require.Equal(t, filepath.Join(cfg.AppDir, "bin", ExecutableName(DefaultReplacerName)), paths.Replacer)
	require.Equal(t, filepath.Join(cfg.AppDir, "logs", "replacer.log"), paths.ReplacerLog)

	require.NoError(t, paths.EnsureDirs())

	for _, dir := range []string{paths.BinDir, paths.MiscDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
