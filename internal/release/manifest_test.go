package release

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/companion-launcher/internal/domain/update"
)

func TestManifestResolver_Latest(t *testing.T) {
	t.Parallel()

	sum := sha512.Sum512([]byte("foo binary"))
	manifest := "apps:\n" +
		"  Foo:\n" +
		"    version: 1.1.0\n" +
		"    file: bin/Foo\n" +
		"    checksum: " + base64.StdEncoding.EncodeToString(sum[:]) + "\n" +
		"  Bar:\n" +
		"    version: 2.0.0\n" +
		"    file: ../../etc/passwd\n" +
		"  Baz:\n" +
		"    version: 1.0.0\n" +
		"    file: Baz\n" +
		"    checksum: not-base64!\n" +
		"  Qux:\n" +
		"    file: Qux\n"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/updates/"+ManifestFilename {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write([]byte(manifest))
	}))
	t.Cleanup(server.Close)

	resolver := NewManifestResolver(server.URL+"/updates/", nil)

	release, err := resolver.Latest(context.Background(), "foo")
	require.NoError(t, err)
	require.Equal(t, "1.1.0", release.Tag)
	require.Equal(t, server.URL+"/updates/bin/Foo", release.URL)
	require.Equal(t, "Foo", release.AssetName)
	require.Equal(t, sum[:], release.Checksum)
	require.Equal(t, ManifestHash, release.Hash)

	_, err = resolver.Latest(context.Background(), "Bar")
	require.ErrorIs(t, err, update.ErrNetwork)

	_, err = resolver.Latest(context.Background(), "Baz")
	require.ErrorIs(t, err, update.ErrNetwork)

	_, err = resolver.Latest(context.Background(), "Qux")
	require.ErrorIs(t, err, update.ErrNotFound)

	_, err = resolver.Latest(context.Background(), "Missing")
	require.ErrorIs(t, err, update.ErrNotFound)

	_, err = NewManifestResolver(server.URL+"/elsewhere", nil).Latest(context.Background(), "Foo")
	require.ErrorIs(t, err, update.ErrNotFound)
}

func TestManifestResolver_MalformedManifest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("apps: [unterminated"))
	}))
	t.Cleanup(server.Close)

	_, err := NewManifestResolver(server.URL, nil).Latest(context.Background(), "Foo")
	require.ErrorIs(t, err, update.ErrNetwork)
}
