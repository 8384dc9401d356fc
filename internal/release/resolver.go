package release

import (
	"context"
	"crypto"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/domain/update"
)

// Resolver looks up the latest release of an application.
// Errors wrap update.ErrNetwork or update.ErrNotFound.
type Resolver interface {
	Latest(ctx context.Context, app string) (*update.ReleaseDescriptor, error)
}

const (
	// maxMetadataBytes caps feed metadata responses.
	maxMetadataBytes = 4 << 20
	// maxErrorBodyBytes caps the part of an error response kept for logs.
	maxErrorBodyBytes = 512
)

// New builds the resolver configured by cfg.
//
//nolint:ireturn // The feed kind is a runtime choice.
func New(cfg *config.Config) (Resolver, error) {
	client := &http.Client{Timeout: cfg.Feed.Timeout}

	switch cfg.Feed.Kind {
	case config.FeedGitHub:
		var strategy Strategy

		switch cfg.Feed.Strategy {
		case config.StrategyShared:
			strategy = SharedRepo{Repo: cfg.Feed.Repository}
		default:
			repos := make(map[string]string, len(cfg.Apps)+2)
			for _, name := range appNames(cfg) {
				repos[name] = cfg.RepositoryFor(name)
			}

			strategy = NewPerAppRepos(repos, cfg.Feed.Repository)
		}

		tokenEnv := cfg.Feed.TokenEnv

		return NewGitHubResolver(cfg.Feed.APIURL, strategy,
			WithHTTPClient(client),
			WithTokenSource(func() string { return os.Getenv(tokenEnv) }),
		), nil
	case config.FeedManifest:
		return NewManifestResolver(cfg.Feed.UpdateFolder, client), nil
	default:
		return nil, fmt.Errorf("%w: unknown feed kind %q", update.ErrNetwork, cfg.Feed.Kind)
	}
}

func appNames(cfg *config.Config) []string {
	names := []string{cfg.Launcher.Name, cfg.Replacer.Name}
	for _, app := range cfg.Apps {
		names = append(names, app.Name)
	}

	return names
}

// MatchesApp reports whether an asset file name belongs to app: its stem, the
// name without the final extension, equals the app name ignoring case.
func MatchesApp(assetName, app string) bool {
	stem := strings.TrimSuffix(assetName, path.Ext(assetName))

	return stem != "" && strings.EqualFold(stem, app)
}

// hashByName maps checksum algorithm labels used by feeds to crypto hashes.
func hashByName(name string) (crypto.Hash, bool) {
	switch strings.ToLower(name) {
	case "sha256":
		return crypto.SHA256, true
	case "sha512":
		return crypto.SHA512, true
	default:
		return 0, false
	}
}
