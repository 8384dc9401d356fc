package version

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

// TestVersionFlag_PrintsSingleLine checks the `--version` output honours the one-line query contract.
func TestVersionFlag_PrintsSingleLine(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{
		Use: "probe",
		Run: func(*cobra.Command, []string) {},
	}

	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"--version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Short()+"\n", out.String())
	require.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 1)
}

// TestVersionSubcommand_PrintsFull checks the `version` subcommand output.
func TestVersionSubcommand_PrintsFull(t *testing.T) {
	t.Parallel()

	root := &cobra.Command{
		Use: "probe",
		Run: func(*cobra.Command, []string) {},
	}

	AttachCobraVersionCommand(root)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Full()+"\n", out.String())
}
