package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
	"github.com/oshokin/companion-launcher/internal/release"
	"github.com/oshokin/companion-launcher/internal/service/process"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// Dir is the folder holding the binaries to publish.
	Dir string
	// UpdateFolder is the URL the files will be uploaded to; used for guidance only.
	UpdateFolder string
	// VersionTimeout bounds each "--version" query.
	VersionTimeout time.Duration
}

// packager prepares the manifest of an update folder.
type packager struct {
	// opts are the validated inputs.
	opts *Options
	// manifest is the manifest being built.
	manifest *release.Manifest
}

var (
	// errNoArtifacts indicates that no file in the folder reported a version.
	errNoArtifacts = errors.New("no versioned binaries found")
	// errDuplicateApp indicates two files that map to the same app name.
	errDuplicateApp = errors.New("app published twice")
)

// Run builds the manifest for opts.Dir and writes it next to the binaries.
func Run(ctx context.Context, opts *Options) (*release.Manifest, error) {
	ctx = logger.WithName(ctx, "launcher-package")

	if opts.VersionTimeout <= 0 {
		opts.VersionTimeout = config.DefaultVersionQueryTimeout
	}

	pkg := &packager{
		opts:     opts,
		manifest: &release.Manifest{Apps: make(map[string]release.ManifestEntry)},
	}

	if err := pkg.fillManifest(ctx); err != nil {
		return nil, fmt.Errorf("packager failed: %w", err)
	}

	path := filepath.Join(opts.Dir, release.ManifestFilename)
	logger.InfoKV(ctx, "Saving manifest", "path", path)

	if err := pkg.saveManifest(path); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}

	pkg.printNextSteps(ctx)

	return pkg.manifest, nil
}

// fillManifest queries and hashes every regular file of the folder.
func (p *packager) fillManifest(ctx context.Context) error {
	entries, err := os.ReadDir(p.opts.Dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", p.opts.Dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || name == release.ManifestFilename || strings.HasPrefix(name, ".") {
			continue
		}

		path := filepath.Join(p.opts.Dir, name)
		fileCtx := logger.WithKV(ctx, "file", name)

		tag, err := process.QueryVersion(fileCtx, path, p.opts.VersionTimeout)
		if err != nil {
			logger.WarnKV(fileCtx, "Skipping file without a version", "error", err)

			continue
		}

		checksum, err := fileChecksum(path)
		if err != nil {
			return err
		}

		app := appName(name)
		if previous, ok := p.manifest.Apps[app]; ok {
			return fmt.Errorf("%w: %s by %s and %s", errDuplicateApp, app, previous.File, name)
		}

		p.manifest.Apps[app] = release.ManifestEntry{
			Version:  tag,
			File:     name,
			Checksum: base64.StdEncoding.EncodeToString(checksum),
		}

		logger.InfoKV(fileCtx, "Added to manifest", "app", app, "version", tag)
	}

	if len(p.manifest.Apps) == 0 {
		return errNoArtifacts
	}

	return nil
}

// saveManifest writes the manifest as YAML.
func (p *packager) saveManifest(path string) error {
	contents, err := yaml.Marshal(p.manifest)
	if err != nil {
		return err
	}

	return os.WriteFile(path, contents, 0o644) //nolint:gosec // The manifest is published, not secret.
}

// printNextSteps logs which files to upload.
func (p *packager) printNextSteps(ctx context.Context) {
	files := make([]string, 0, len(p.manifest.Apps)+1)
	for _, entry := range p.manifest.Apps {
		files = append(files, entry.File)
	}

	files = append(files, release.ManifestFilename)
	sort.Strings(files)

	target := p.opts.UpdateFolder
	if target == "" {
		target = "your update folder"
	}

	logger.Infof(ctx, "You should upload the following files to %s:\n%s", target, strings.Join(files, ",\n"))
}

// appName maps an artifact file name to the app it publishes.
func appName(fileName string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}

// fileChecksum returns the manifest digest of the file at path.
func fileChecksum(path string) ([]byte, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	hasher := release.ManifestHash.New()
	if _, err = io.Copy(hasher, file); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	return hasher.Sum(nil), nil
}
