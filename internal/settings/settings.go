// Package settings stores key/value settings shared by the launcher and its
// companion executables in a dotenv file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/joho/godotenv"
)

// Store is a dotenv file of settings.
type Store struct {
	path string
}

const filePermissions = 0o600

var (
	// ErrInvalidKey is returned for keys that are not valid environment variable names.
	ErrInvalidKey = errors.New("invalid settings key")

	keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// New returns a Store backed by the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// All reads every setting. A missing file yields an empty map.
func (s *Store) All() (map[string]string, error) {
	values, err := godotenv.Read(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("read settings %s: %w", s.path, err)
	}

	return values, nil
}

// Keys returns the setting names in sorted order.
func (s *Store) Keys() ([]string, error) {
	values, err := s.All()
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

// Get returns one setting.
func (s *Store) Get(key string) (string, bool, error) {
	values, err := s.All()
	if err != nil {
		return "", false, err
	}

	value, ok := values[key]

	return value, ok, nil
}

// Set writes one setting, keeping the others.
func (s *Store) Set(key, value string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	values, err := s.All()
	if err != nil {
		return err
	}

	values[key] = value

	return s.write(values)
}

// Unset removes one setting. Removing an absent key is not an error.
func (s *Store) Unset(key string) error {
	values, err := s.All()
	if err != nil {
		return err
	}

	if _, ok := values[key]; !ok {
		return nil
	}

	delete(values, key)

	return s.write(values)
}

// Apply exports the settings into the process environment so that child
// processes inherit them. Variables already set in the environment win.
func (s *Store) Apply() error {
	err := godotenv.Load(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load settings %s: %w", s.path, err)
	}

	return nil
}

func (s *Store) write(values map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	if err := godotenv.Write(values, s.path); err != nil {
		return fmt.Errorf("write settings %s: %w", s.path, err)
	}

	if err := os.Chmod(s.path, filePermissions); err != nil {
		return fmt.Errorf("chmod settings %s: %w", s.path, err)
	}

	return nil
}
