package release

import (
	"context"
	"crypto"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/companion-launcher/internal/domain/update"
)

const (
	// ManifestFilename is the manifest file name inside an update folder.
	ManifestFilename = "launcher-manifest.yaml"

	// ManifestHash is the digest algorithm of manifest checksums.
	ManifestHash = crypto.SHA512
)

// Manifest describes every artifact published in an update folder.
type Manifest struct {
	// Apps maps an application name to its latest artifact.
	Apps map[string]ManifestEntry `yaml:"apps"`
}

// ManifestEntry describes one published artifact.
type ManifestEntry struct {
	// Version is the release tag of the artifact.
	Version string `yaml:"version"`
	// File is the artifact path relative to the update folder.
	File string `yaml:"file"`
	// Checksum is the base64 SHA-512 digest of the artifact.
	Checksum string `yaml:"checksum"`
}

// Lookup finds the entry of app ignoring case.
func (m *Manifest) Lookup(app string) (ManifestEntry, bool) {
	if entry, ok := m.Apps[app]; ok {
		return entry, true
	}

	for name, entry := range m.Apps {
		if strings.EqualFold(name, app) {
			return entry, true
		}
	}

	return ManifestEntry{}, false
}

// ManifestResolver reads releases from a manifest in an update folder.
type ManifestResolver struct {
	folder string
	client *http.Client
}

// NewManifestResolver returns a resolver for the update folder URL.
func NewManifestResolver(folder string, client *http.Client) *ManifestResolver {
	if client == nil {
		client = http.DefaultClient
	}

	return &ManifestResolver{folder: folder, client: client}
}

// Latest implements Resolver.
func (r *ManifestResolver) Latest(ctx context.Context, app string) (*update.ReleaseDescriptor, error) {
	manifest, err := r.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	entry, ok := manifest.Lookup(app)
	if !ok {
		return nil, fmt.Errorf("%w: manifest has no entry for %s", update.ErrNotFound, app)
	}

	tag := strings.TrimSpace(entry.Version)
	if tag == "" || entry.File == "" {
		return nil, fmt.Errorf("%w: manifest entry for %s is incomplete", update.ErrNotFound, app)
	}

	if path.IsAbs(entry.File) || strings.Contains(entry.File, "..") {
		return nil, fmt.Errorf("%w: manifest file %q escapes the update folder", update.ErrNetwork, entry.File)
	}

	artifactURL, err := r.fileURL(entry.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", update.ErrNetwork, err)
	}

	descriptor := &update.ReleaseDescriptor{
		App:       app,
		Tag:       tag,
		URL:       artifactURL,
		AssetName: path.Base(entry.File),
	}

	if entry.Checksum != "" {
		sum, decodeErr := base64.StdEncoding.DecodeString(entry.Checksum)
		if decodeErr != nil || len(sum) != ManifestHash.Size() {
			return nil, fmt.Errorf("%w: malformed checksum for %s", update.ErrNetwork, app)
		}

		descriptor.Checksum = sum
		descriptor.Hash = ManifestHash
	}

	return descriptor, nil
}

// Fetch downloads and parses the manifest.
func (r *ManifestResolver) Fetch(ctx context.Context) (*Manifest, error) {
	manifestURL, err := r.fileURL(ManifestFilename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", update.ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", update.ErrNetwork, err)
	}

	response, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", update.ErrNetwork, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", update.ErrNotFound, manifestURL)
	default:
		return nil, fmt.Errorf("%w: %s, %s", update.ErrNetwork, manifestURL, response.Status)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, maxMetadataBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", update.ErrNetwork, err)
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %w", update.ErrNetwork, err)
	}

	return &manifest, nil
}

// fileURL resolves a file name against the update folder.
func (r *ManifestResolver) fileURL(fileName string) (string, error) {
	folderURL, err := url.Parse(r.folder)
	if err != nil {
		return "", fmt.Errorf("parse update folder: %w", err)
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	folderURL.Path = path.Join(folderURL.Path, fileName)

	return folderURL.String(), nil
}
