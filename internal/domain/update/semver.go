package update

import (
	"strings"

	"github.com/hashicorp/go-version"
)

// NormalizeVersion trims whitespace, a leading "v" or "V" and "+build"
// metadata, so that "v1.2.3+linux" and "1.2.3" normalize identically.
func NormalizeVersion(raw string) string {
	normalized := strings.TrimSpace(raw)
	normalized = strings.TrimPrefix(strings.TrimPrefix(normalized, "v"), "V")

	if before, _, found := strings.Cut(normalized, "+"); found {
		normalized = before
	}

	return normalized
}

// CompareVersions orders two version tags. It returns -1, 0 or 1.
//
// Both sides are normalized and compared as semantic versions: missing
// segments count as zero and a prerelease sorts before its release. When
// either side does not parse, the normalized strings are compared as plain
// strings.
func CompareVersions(a, b string) int {
	left, right := NormalizeVersion(a), NormalizeVersion(b)

	lv, lerr := version.NewVersion(left)
	rv, rerr := version.NewVersion(right)

	if lerr != nil || rerr != nil {
		return strings.Compare(left, right)
	}

	return lv.Compare(rv)
}

// IsNewer reports whether candidate is strictly greater than current.
func IsNewer(candidate, current string) bool {
	return CompareVersions(candidate, current) > 0
}
