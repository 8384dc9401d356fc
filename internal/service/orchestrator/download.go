package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"

	"github.com/oshokin/companion-launcher/internal/domain/update"
	"github.com/oshokin/companion-launcher/internal/logger"
)

// stagedFileMode is the mode of staged artifacts; they are promoted as is.
const stagedFileMode os.FileMode = 0o755

var (
	errBadHTTPStatus    = errors.New("bad HTTP status")
	errArtifactTooLarge = errors.New("artifact exceeds size limit")
	errSizeMismatch     = errors.New("artifact size mismatch")
	errChecksumMismatch = errors.New("artifact checksum mismatch")
)

// download fetches candidate into dest. The file at dest is complete, verified
// and synced when download returns nil; on error it is removed.
func (o *Orchestrator) download(ctx context.Context, candidate *update.ReleaseDescriptor, dest string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Feed.DownloadTimeout)
	defer cancel()

	defer func() {
		if err != nil {
			_ = os.Remove(dest)
			err = fmt.Errorf("%w: %w", update.ErrDownload, err)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate.URL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/octet-stream")

	response, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch artifact: %w", err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", candidate.URL, response.Status, errBadHTTPStatus)
	}

	limit := o.cfg.Feed.MaxArtifactSize
	if response.ContentLength > limit {
		return fmt.Errorf("%w: %d > %d bytes", errArtifactTooLarge, response.ContentLength, limit)
	}

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, stagedFileMode)
	if err != nil {
		return fmt.Errorf("create staged file: %w", err)
	}

	written, digest, copyErr := copyVerified(file, io.LimitReader(response.Body, limit+1), candidate.NewHash())

	syncErr := file.Sync()
	closeErr := file.Close()

	switch {
	case copyErr != nil:
		return fmt.Errorf("write staged file: %w", copyErr)
	case syncErr != nil:
		return fmt.Errorf("sync staged file: %w", syncErr)
	case closeErr != nil:
		return fmt.Errorf("close staged file: %w", closeErr)
	case written > limit:
		return fmt.Errorf("%w: more than %d bytes", errArtifactTooLarge, limit)
	case response.ContentLength >= 0 && written != response.ContentLength:
		return fmt.Errorf("%w: got %d of %d bytes", errSizeMismatch, written, response.ContentLength)
	case candidate.Size > 0 && written != candidate.Size:
		return fmt.Errorf("%w: got %d bytes, release lists %d", errSizeMismatch, written, candidate.Size)
	case written == 0:
		return fmt.Errorf("%w: empty artifact", errSizeMismatch)
	case digest != nil && !bytes.Equal(digest, candidate.Checksum):
		return fmt.Errorf("%w: expected %x, got %x", errChecksumMismatch, candidate.Checksum, digest)
	}

	// The umask may have narrowed the mode at creation.
	if err = os.Chmod(dest, stagedFileMode); err != nil {
		return fmt.Errorf("chmod staged file: %w", err)
	}

	logger.InfoKV(ctx, "Artifact staged",
		"path", dest,
		"bytes", written,
		"verified", digest != nil)

	return nil
}

// copyVerified copies src into dst, hashing the stream when hasher is set.
func copyVerified(dst io.Writer, src io.Reader, hasher hash.Hash) (int64, []byte, error) {
	if hasher == nil {
		written, err := io.Copy(dst, src)

		return written, nil, err
	}

	written, err := io.Copy(io.MultiWriter(dst, hasher), src)
	if err != nil {
		return written, nil, err
	}

	return written, hasher.Sum(nil), nil
}
