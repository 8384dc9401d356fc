package release

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
)

// Strategy maps an application to the "owner/repo" holding its releases.
type Strategy interface {
	Repository(app string) (string, error)
}

// PerAppRepos looks every app up in its own repository, falling back to a
// default repository for apps without one.
type PerAppRepos struct {
	repos    map[string]string
	fallback string
}

// NewPerAppRepos returns a per-app strategy. Keys of repos are app names and
// match case-insensitively.
func NewPerAppRepos(repos map[string]string, fallback string) PerAppRepos {
	normalized := make(map[string]string, len(repos))
	for app, repo := range repos {
		normalized[strings.ToLower(app)] = repo
	}

	return PerAppRepos{repos: normalized, fallback: fallback}
}

// Repository implements Strategy.
func (s PerAppRepos) Repository(app string) (string, error) {
	if repo := s.repos[strings.ToLower(app)]; repo != "" {
		return repo, nil
	}

	if s.fallback != "" {
		return s.fallback, nil
	}

	return "", fmt.Errorf("%w: no repository configured for %s", update.ErrNotFound, app)
}

// SharedRepo looks every app up in one artifact repository; the asset name
// selects the app.
type SharedRepo struct {
	Repo string
}

// Repository implements Strategy.
func (s SharedRepo) Repository(app string) (string, error) {
	if s.Repo == "" {
		return "", fmt.Errorf("%w: no shared repository configured for %s", update.ErrNotFound, app)
	}

	return s.Repo, nil
}

// GitHubResolver reads the latest release from the GitHub releases API.
type GitHubResolver struct {
	apiURL   string
	strategy Strategy
	client   *http.Client
	token    func() string
}

// GitHubOption customizes a GitHubResolver.
type GitHubOption func(*GitHubResolver)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) GitHubOption {
	return func(r *GitHubResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithTokenSource sets the function returning the API token, read per request.
func WithTokenSource(token func() string) GitHubOption {
	return func(r *GitHubResolver) {
		if token != nil {
			r.token = token
		}
	}
}

// NewGitHubResolver returns a resolver for the GitHub API at apiURL.
func NewGitHubResolver(apiURL string, strategy Strategy, opts ...GitHubOption) *GitHubResolver {
	resolver := &GitHubResolver{
		apiURL:   strings.TrimRight(apiURL, "/"),
		strategy: strategy,
		client:   http.DefaultClient,
		token:    func() string { return "" },
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver
}

// githubRelease is the subset of the release payload the resolver reads.
type githubRelease struct {
	TagName string        `json:"tag_name"`
	Assets  []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
	Digest             string `json:"digest"`
}

// Latest implements Resolver.
func (r *GitHubResolver) Latest(ctx context.Context, app string) (*update.ReleaseDescriptor, error) {
	repo, err := r.strategy.Repository(app)
	if err != nil {
		return nil, err
	}

	release, err := r.fetchLatest(ctx, repo)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(release.TagName) == "" {
		return nil, fmt.Errorf("%w: latest release of %s has no tag", update.ErrNotFound, repo)
	}

	for _, asset := range release.Assets {
		if !MatchesApp(asset.Name, app) {
			continue
		}

		if asset.BrowserDownloadURL == "" {
			return nil, fmt.Errorf("%w: asset %s has no download URL", update.ErrNotFound, asset.Name)
		}

		descriptor := &update.ReleaseDescriptor{
			App:       app,
			Tag:       strings.TrimSpace(release.TagName),
			URL:       asset.BrowserDownloadURL,
			AssetName: asset.Name,
			Size:      asset.Size,
		}

		if err = applyDigest(descriptor, asset.Digest); err != nil {
			logger.WarnKV(ctx, "Ignoring malformed asset digest",
				"app", app,
				"asset", asset.Name,
				"error", err)
		}

		return descriptor, nil
	}

	return nil, fmt.Errorf("%w: release %s of %s has no asset for %s",
		update.ErrNotFound, release.TagName, repo, app)
}

func (r *GitHubResolver) fetchLatest(ctx context.Context, repo string) (*githubRelease, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/releases/latest", r.apiURL, escapeRepository(repo))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", update.ErrNetwork, err)
	}

	req.Header.Set("Accept", "application/vnd.github+json")

	if token := r.token(); token != "" {
		req.Header.Set("Authorization", "token "+token)
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
		return nil, fmt.Errorf("%w: %s has no published release", update.ErrNotFound, repo)
	default:
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))

		return nil, fmt.Errorf("%w: GitHub API %s: %s", update.ErrNetwork, response.Status, strings.TrimSpace(string(body)))
	}

	var release githubRelease

	decoder := json.NewDecoder(io.LimitReader(response.Body, maxMetadataBytes))
	if err = decoder.Decode(&release); err != nil {
		return nil, fmt.Errorf("%w: decode release: %w", update.ErrNetwork, err)
	}

	return &release, nil
}

var errUnsupportedDigest = errors.New("unsupported digest")

// applyDigest parses a GitHub asset digest of the form "<algorithm>:<hex>".
// An empty digest leaves the descriptor without a checksum.
func applyDigest(descriptor *update.ReleaseDescriptor, digest string) error {
	if digest == "" {
		return nil
	}

	algorithm, encoded, found := strings.Cut(digest, ":")
	if !found {
		return fmt.Errorf("%w: %q", errUnsupportedDigest, digest)
	}

	hash, ok := hashByName(algorithm)
	if !ok {
		return fmt.Errorf("%w: %q", errUnsupportedDigest, algorithm)
	}

	sum, err := hex.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode digest: %w", err)
	}

	if len(sum) != hash.Size() {
		return fmt.Errorf("%w: %s digest has %d bytes", errUnsupportedDigest, algorithm, len(sum))
	}

	descriptor.Checksum = sum
	descriptor.Hash = hash

	return nil
}

// escapeRepository escapes each half of "owner/repo" for use in a URL path.
func escapeRepository(repo string) string {
	owner, name, _ := strings.Cut(repo, "/")

	return url.PathEscape(owner) + "/" + url.PathEscape(name)
}
