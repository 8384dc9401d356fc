package versions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/companion-launcher/internal/config"
	"github.com/oshokin/companion-launcher/internal/logger"
)

// Repository defines the operations the orchestrator and the launcher need
// from the version cache.
type Repository interface {
	Get(app string) (string, bool)
	Set(ctx context.Context, app, version string) error
	Halt(ctx context.Context, app, reason string) error
	Halted(app string) (string, bool)
	Clear(ctx context.Context, app string) error
}

// FileRepository persists the cache to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) over a
// structpb.Struct of the shape {"versions": {...}, "halted": {...}}.
type FileRepository struct {
	// path is the filesystem location of the JSON cache file.
	path string
	// mu protects the maps and the file.
	mu sync.Mutex
	// versions maps an app name to its installed tag.
	versions map[string]string
	// halted maps an app name to the reason automatic updates stopped.
	halted map[string]string
}

const (
	versionsField = "versions"
	haltedField   = "halted"
)

// NewFileRepository creates a repository backed by the file at path and loads
// its current contents.
func NewFileRepository(ctx context.Context, path string) *FileRepository {
	repo := &FileRepository{
		path:     filepath.Clean(path),
		versions: make(map[string]string),
		halted:   make(map[string]string),
	}

	repo.Reload(ctx)

	return repo
}

// Path returns the cache file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Reload replaces the in-memory cache with the file contents. A missing or
// malformed file yields an empty cache.
func (r *FileRepository) Reload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions, halted, err := r.read()
	if err != nil {
		logger.WarnKV(ctx, "Version cache is unreadable, starting empty",
			"path", r.path,
			"error", err)
	}

	r.versions, r.halted = versions, halted
}

// Get returns the cached tag of app.
func (r *FileRepository) Get(app string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	version, ok := r.versions[app]

	return version, ok
}

// Set records version as the installed tag of app and persists the cache.
// A failed write is logged and returned; the in-memory value stays.
func (r *FileRepository) Set(ctx context.Context, app, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.versions[app] = version

	return r.persist(ctx)
}

// Halt stops automatic updates of app until Clear is called.
func (r *FileRepository) Halt(ctx context.Context, app, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.halted[app] = reason

	return r.persist(ctx)
}

// Halted returns the halt reason of app.
func (r *FileRepository) Halted(app string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reason, ok := r.halted[app]

	return reason, ok
}

// Clear removes the halt marker of app. Clearing an app that is not halted is
// a no-op that does not touch the file.
func (r *FileRepository) Clear(ctx context.Context, app string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.halted[app]; !ok {
		return nil
	}

	delete(r.halted, app)

	return r.persist(ctx)
}

// Versions returns a copy of every cached tag.
func (r *FileRepository) Versions() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return maps.Clone(r.versions)
}

// read decodes the cache file. On any error it returns empty maps.
func (r *FileRepository) read() (map[string]string, map[string]string, error) {
	versions, halted := make(map[string]string), make(map[string]string)

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return versions, halted, nil
		}

		return versions, halted, fmt.Errorf("read version cache: %w", err)
	}

	var document structpb.Struct
	if err = protojson.Unmarshal(contents, &document); err != nil {
		return versions, halted, fmt.Errorf("decode version cache: %w", err)
	}

	fields := document.GetFields()
	copyStrings(versions, fields[versionsField])
	copyStrings(halted, fields[haltedField])

	return versions, halted, nil
}

// persist writes the cache atomically: a temporary file in the same directory
// is renamed over the old one, so readers never see a partial document.
func (r *FileRepository) persist(ctx context.Context) error {
	err := r.write()
	if err != nil {
		logger.ErrorKV(ctx, "Failed to persist version cache",
			"path", r.path,
			"error", err)
	}

	return err
}

func (r *FileRepository) write() error {
	document, err := structpb.NewStruct(map[string]any{
		versionsField: toAny(r.versions),
		haltedField:   toAny(r.halted),
	})
	if err != nil {
		return fmt.Errorf("encode version cache: %w", err)
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(document)
	if err != nil {
		return fmt.Errorf("encode version cache: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err = os.MkdirAll(dir, config.DefaultDirPermissions); err != nil {
		return fmt.Errorf("create version cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temporary version cache: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("write temporary version cache: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync temporary version cache: %w", err)
	}

	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temporary version cache: %w", err)
	}

	if err = os.Chmod(tmpName, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("chmod temporary version cache: %w", err)
	}

	if err = os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace version cache: %w", err)
	}

	return nil
}

// copyStrings copies string members of an object value into dst. Values of
// any other type are ignored since the file is not trusted.
func copyStrings(dst map[string]string, value *structpb.Value) {
	for key, member := range value.GetStructValue().GetFields() {
		if text, ok := member.GetKind().(*structpb.Value_StringValue); ok {
			dst[key] = text.StringValue
		}
	}
}

func toAny(values map[string]string) map[string]any {
	result := make(map[string]any, len(values))
	for key, value := range values {
		result[key] = value
	}

	return result
}
