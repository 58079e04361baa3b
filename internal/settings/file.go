package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iMokhles/candidate-pdf-uploader/internal/apperrors"
	"gopkg.in/yaml.v3"
)

// FileStore persists settings as a flat YAML mapping.
// Every write rewrites the whole document through a temp file and rename.
// Edits made by other processes are picked up on the next read; changes are
// detected by the file's modification time and size.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
	stamp  fileStamp
}

type fileStamp struct {
	modTime time.Time
	size    int64
}

func stampOf(info fs.FileInfo) fileStamp {
	return fileStamp{modTime: info.ModTime(), size: info.Size()}
}

// OpenFile loads the settings document at path. A missing file is an empty store.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path, values: make(map[string]string)}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, apperrors.Internal("settings.read", err)
	}
	values, err := s.read()
	if err != nil {
		return nil, err
	}
	s.values = values
	s.stamp = stampOf(info)
	return s, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

// Get returns the value for key.
func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and flushes the document to disk.
func (s *FileStore) Set(key, value string) error {
	return s.Update(map[string]string{key: value})
}

// Update applies all values in one write. On failure nothing changes.
func (s *FileStore) Update(values map[string]string) error {
	for key := range values {
		if err := checkKey(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()

	prev := maps.Clone(s.values)
	apply(s.values, values)
	if err := s.flush(); err != nil {
		s.values = prev
		return err
	}
	return nil
}

// Ready reports whether the settings directory is usable.
func (s *FileStore) Ready() error {
	dir := filepath.Dir(s.path)
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil // created on first write
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("settings directory %s is not a directory", dir)
	}
	return nil
}

// refresh reloads the document if it changed on disk since the last read
// or write. A document that cannot be parsed leaves the cached values in place.
// Callers hold s.mu.
func (s *FileStore) refresh() {
	info, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		if s.stamp != (fileStamp{}) {
			s.values = make(map[string]string)
			s.stamp = fileStamp{}
		}
		return
	}
	if err != nil {
		slog.Warn("Settings file not readable, using cached values", "path", s.path, "error", err)
		return
	}
	stamp := stampOf(info)
	if stamp == s.stamp {
		return
	}
	s.stamp = stamp

	values, err := s.read()
	if err != nil {
		slog.Warn("Settings file changed but could not be loaded, using cached values", "path", s.path, "error", err)
		return
	}
	s.values = values
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, apperrors.Internal("settings.read", err)
	}
	values := make(map[string]string)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, apperrors.Internal("settings.parse", fmt.Errorf("%s: %w", s.path, err))
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

func (s *FileStore) flush() error {
	data, err := yaml.Marshal(s.values)
	if err != nil {
		return apperrors.Internal("settings.encode", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Internal("settings.mkdir", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return apperrors.Internal("settings.write", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Internal("settings.write", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Internal("settings.write", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return apperrors.Internal("settings.write", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return apperrors.Internal("settings.write", err)
	}
	if info, err := os.Stat(s.path); err == nil {
		s.stamp = stampOf(info)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
