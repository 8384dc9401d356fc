package update

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		a, b string
		want int
	}{
		{"1.2.3", "1.2.3", 0},
		{"v1.2.3", "1.2.3", 0},
		{"V1.2.3", "v1.2.3", 0},
		{"1.2.3+linux.amd64", "1.2.3", 0},
		{"1.9.0", "1.10.0", -1},
		{"1.10.0", "1.9.0", 1},
		{"2.0", "2.0.0", 0},
		{"2.0.1", "2.0", 1},
		{"1.0.0-rc.1", "1.0.0", -1},
		{"1.0.0-alpha", "1.0.0-alpha.1", -1},
		{"1.0.0-alpha.2", "1.0.0-alpha.10", -1},
		{"1.0.0-1", "1.0.0-alpha", -1},
		{"1.0.0-beta", "1.0.0-alpha", 1},
		{" 0.1.6 ", "0.1.6", 0},
		{"1.2.3.4", "1.2.3", 1},
		{"10.0.0", "9.99.99", 1},
		// Fallback to plain comparison of normalized strings.
		{"nightly-b", "nightly-a", 1},
		{"1.x", "1.x", 0},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, CompareVersions(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
		require.Equal(t, -tc.want, CompareVersions(tc.b, tc.a), "%q vs %q", tc.b, tc.a)
	}
}

// TestIsNewer_Monotonic checks that for an ordered list every later entry is
// newer than every earlier one, and never the reverse.
func TestIsNewer_Monotonic(t *testing.T) {
	t.Parallel()

	ordered := []string{
		"0.0.1", "0.1.0", "0.9.9", "1.0.0-alpha", "1.0.0-alpha.1", "1.0.0-beta",
		"1.0.0-rc.1", "1.0.0", "v1.0.1", "1.2.0", "1.9.0", "1.10.0", "1.10.1", "2.0.0", "10.0.0",
	}

	for i := range ordered {
		for j := range ordered {
			switch {
			case j > i:
				require.True(t, IsNewer(ordered[j], ordered[i]), "%s should be newer than %s", ordered[j], ordered[i])
			default:
				require.False(t, IsNewer(ordered[j], ordered[i]), "%s should not be newer than %s", ordered[j], ordered[i])
			}
		}
	}
}

func TestIsNewer_PrefixInsensitive(t *testing.T) {
	t.Parallel()

	require.False(t, IsNewer("v1.2.3", "1.2.3"))
	require.False(t, IsNewer("1.2.3", "v1.2.3"))
	require.True(t, IsNewer("v1.2.4", "1.2.3"))
	require.Equal(t, NormalizeVersion("v1.2.3"), NormalizeVersion("1.2.3"))
}

func TestIsNewer_MultiDigitRegression(t *testing.T) {
	t.Parallel()

	current := "1.0.0"

	for _, tag := range []string{"1.9.0", "1.10.0"} {
		require.True(t, IsNewer(tag, current))
		current = tag
	}

	require.Equal(t, "1.10.0", current)
}
