package update

import (
	"crypto"
	"hash"

	// Register digests used by release feeds.
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// ReleaseDescriptor is what a resolver reports as the latest release of an
// app. It is produced only by resolvers and treated as immutable.
type ReleaseDescriptor struct {
	// App is the application identifier the release belongs to.
	App string
	// Tag is the release version as published by the feed.
	Tag string
	// URL is where the artifact is downloaded from.
	URL string
	// AssetName is the artifact file name as published.
	AssetName string
	// Size is the advertised artifact size, zero when unknown.
	Size int64
	// Checksum is the expected digest of the artifact, empty when the feed has none.
	Checksum []byte
	// Hash is the digest algorithm of Checksum.
	Hash crypto.Hash
}

// HasChecksum reports whether the artifact can be verified.
func (r *ReleaseDescriptor) HasChecksum() bool {
	return r != nil && len(r.Checksum) > 0 && r.Hash.Available()
}

// NewHash returns a fresh digest for verifying the artifact, or nil.
func (r *ReleaseDescriptor) NewHash() hash.Hash {
	if !r.HasChecksum() {
		return nil
	}

	return r.Hash.New()
}
