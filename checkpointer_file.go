package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const lockFileName = ".lock"

// FileStore is a CheckpointStore that keeps one file per key in a directory
type FileStore struct {
	dataDir string
}

var (
	_ CheckpointStore = (*FileStore)(nil)
	_ StoreLocker     = (*FileStore)(nil)
)

// NewFileStore creates a new file-based checkpoint store
func NewFileStore(dataDir string) (*FileStore, error) {
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".deepnoodle", "agent", "checkpoints")
	}

	// Ensure the data directory exists
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir}, nil
}

// NewFileCheckpointManager returns a CheckpointManager backed by a FileStore
// rooted at dataDir.
func NewFileCheckpointManager(dataDir string, opts CheckpointManagerOptions) (*CheckpointManager, error) {
	store, err := NewFileStore(dataDir)
	if err != nil {
		return nil, err
	}
	opts.Store = store
	return NewCheckpointManager(opts)
}

// Dir returns the directory holding the checkpoint files.
func (s *FileStore) Dir() string {
	return s.dataDir
}

// Put writes the blob to a temporary file and renames it into place so
// readers never observe a partial write.
func (s *FileStore) Put(ctx context.Context, key string, data []byte) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dataDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Size(ctx context.Context, key string) (int64, error) {
	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrBlobNotFound
		}
		return 0, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return info.Size(), nil
}

// Lock takes an exclusive lock on the store directory, shared with other
// processes using the same directory.
func (s *FileStore) Lock(ctx context.Context) (func() error, error) {
	return lockFile(ctx, filepath.Join(s.dataDir, lockFileName))
}

func (s *FileStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid store key %q", key)
	}
	return filepath.Join(s.dataDir, key), nil
}
