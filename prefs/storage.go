package prefs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// Storage is the persistent string key-value store preferences are read
// from and written back to.
type Storage interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

type MemStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ Storage = &MemStorage{}

func NewMemStorage() *MemStorage {
	return &MemStorage{data: make(map[string]string)}
}

func (m *MemStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, found := m.data[key]
	return value, found, nil
}

func (m *MemStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = value
	return nil
}

// FileStorage keeps all keys in one JSON object on disk. Every Set rewrites
// the file through a temporary file and a rename.
type FileStorage struct {
	mu   sync.RWMutex
	path string
	data map[string]string
}

var _ Storage = &FileStorage{}

func OpenFileStorage(path string) (*FileStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create directory for %s", path)
	}

	fs := &FileStorage{
		path: path,
		data: make(map[string]string),
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}

		return nil, errors.Wrapf(err, "failed to read preferences file %s", path)
	}

	if len(b) == 0 {
		return fs, nil
	}

	if err := json.Unmarshal(b, &fs.data); err != nil {
		return nil, errors.Wrapf(err, "failed to parse preferences file %s", path)
	}

	if fs.data == nil {
		fs.data = make(map[string]string)
	}

	return fs, nil
}

func (fs *FileStorage) Path() string {
	return fs.path
}

func (fs *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	value, found := fs.data[key]
	return value, found, nil
}

func (fs *FileStorage) Set(_ context.Context, key, value string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prev, existed := fs.data[key]
	fs.data[key] = value

	if err := fs.saveLocked(); err != nil {
		if existed {
			fs.data[key] = prev
		} else {
			delete(fs.data, key)
		}

		return err
	}

	return nil
}

func (fs *FileStorage) saveLocked() error {
	b, err := json.MarshalIndent(fs.data, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal preferences")
	}

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}

	if err := os.Rename(tmp, fs.path); err != nil {
		return errors.Wrapf(err, "failed to rename %s to %s", tmp, fs.path)
	}

	return nil
}
