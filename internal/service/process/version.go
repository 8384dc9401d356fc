package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

const (
	// VersionFlag is the single argument of a version query.
	VersionFlag = "--version"

	// maxVersionOutput caps the bytes read from a version query.
	maxVersionOutput = 4 << 10
	// maxVersionLength caps the length of an accepted version string.
	maxVersionLength = 64
	// versionWaitDelay bounds waiting for output pipes after the child exits.
	versionWaitDelay = time.Second
)

// ErrInvalidVersionOutput is returned when a version query prints nothing usable.
var ErrInvalidVersionOutput = errors.New("invalid version output")

// QueryVersion runs `path --version` and returns the version it prints.
// Any non-zero exit, empty output or suspicious output is an error; callers
// treat that as "version unknown".
func QueryVersion(ctx context.Context, path string, timeout time.Duration) (string, error) {
	// Create a context with timeout to avoid hanging.
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output := &cappedBuffer{limit: maxVersionOutput}

	//nolint:gosec // The path comes from configuration, not from user input.
	cmd := exec.CommandContext(cmdCtx, path, VersionFlag)
	cmd.Dir = filepath.Dir(path)
	cmd.Stdout = output
	cmd.SysProcAttr = hiddenAttributes()
	cmd.WaitDelay = versionWaitDelay

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s %s: %w", filepath.Base(path), VersionFlag, err)
	}

	return ParseVersionOutput(output.String())
}

// ParseVersionOutput extracts a version from the first line of output.
// Both a bare "1.2.3" and the verbose "version: 1.2.3, commit: ..." form are
// accepted.
func ParseVersionOutput(output string) (string, error) {
	line, _, _ := strings.Cut(strings.TrimLeft(output, "\r\n\t "), "\n")
	line = strings.TrimSpace(line)

	// Parse "version: 1.0.0, commit: abc123, built at: ..." → "1.0.0"
	if rest, found := strings.CutPrefix(line, "version: "); found {
		line, _, _ = strings.Cut(rest, ",")
		line = strings.TrimSpace(line)
	}

	if line == "" || len(line) > maxVersionLength {
		return "", ErrInvalidVersionOutput
	}

	for _, r := range line {
		if !unicode.IsPrint(r) || r > unicode.MaxASCII {
			return "", fmt.Errorf("%w: non-printable characters", ErrInvalidVersionOutput)
		}
	}

	return line, nil
}

// cappedBuffer keeps at most limit bytes and silently drops the rest, so a
// misbehaving child cannot exhaust memory.
type cappedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}

	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
