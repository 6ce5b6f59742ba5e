package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore implements StateStore on the local filesystem, one JSON file per
// key. Writes go through a temp file and an atomic rename so a crash mid-write
// never leaves a truncated record.
type FileStore struct {
	basePath string
}

// FileConfig holds configuration for the file state store.
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// NewFileStore creates a FileStore rooted at cfg.BasePath.
func NewFileStore(cfg FileConfig) (*FileStore, error) {
	if err := os.MkdirAll(cfg.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	return &FileStore{basePath: absPath}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.basePath, filepath.Base(key)+".json")
}

// Load reads the record for key.
func (s *FileStore) Load(ctx context.Context, key string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return decodeEnvelope(data)
}

// Save writes the record for key atomically.
func (s *FileStore) Save(ctx context.Context, key string, state any) error {
	data, err := encodeEnvelope(state)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Delete removes the record for key.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }
