package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the filesystem locations derived once from a Config.
type Paths struct {
	// AppDir is where the launcher executable lives.
	AppDir string
	// BinDir holds companion executables and the replacer.
	BinDir string
	// MiscDir holds durable launcher state.
	MiscDir string
	// LogsDir holds logs of detached processes.
	LogsDir string
	// VersionsFile is the version cache.
	VersionsFile string
	// EnvFile is the settings env file shared with companion executables.
	EnvFile string
	// Replacer is the expected replacer executable location.
	Replacer string
	// ReplacerLog receives output of detached replacer runs.
	ReplacerLog string
}

const (
	// versionsFilename is the version cache file name inside MiscDir.
	versionsFilename = "versions.json"
	// envFilename is the settings file name inside MiscDir.
	envFilename = ".env"
	// replacerLogFilename is the detached replacer log file name inside LogsDir.
	replacerLogFilename = "replacer.log"
)

// Paths resolves every directory and file location relative to AppDir.
func (c *Config) Paths() Paths {
	appDir := c.AppDir
	if absolute, err := filepath.Abs(appDir); err == nil {
		appDir = absolute
	}

	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return filepath.Clean(dir)
		}

		return filepath.Join(appDir, dir)
	}

	binDir := resolve(c.BinDir)
	miscDir := resolve(c.MiscDir)
	logsDir := resolve(c.LogsDir)

	return Paths{
		AppDir:       appDir,
		BinDir:       binDir,
		MiscDir:      miscDir,
		LogsDir:      logsDir,
		VersionsFile: filepath.Join(miscDir, versionsFilename),
		EnvFile:      filepath.Join(miscDir, envFilename),
		Replacer:     filepath.Join(binDir, ExecutableName(c.Replacer.Name)),
		ReplacerLog:  filepath.Join(logsDir, replacerLogFilename),
	}
}

// EnsureDirs creates the bin, misc and logs directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.BinDir, p.MiscDir, p.LogsDir} {
		if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return nil
}
