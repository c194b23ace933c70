package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lot-watcher/internal/observability"
	"lot-watcher/internal/storage"
)

// Store хранит отправленные лоты JSON-массивом строк (seen_api.json).
type Store struct {
	path   string
	logger *observability.Logger
}

func NewStore(path string, logger *observability.Logger) *Store {
	return &Store{path: path, logger: logger}
}

// Load: нет файла или файл битый, значит пустое множество (битый ещё и с warning).
func (s *Store) Load(_ context.Context) (*storage.KeySet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Info("Seen file not found, starting empty", "path", s.path)
			return storage.NewKeySet(), nil
		}
		s.logger.Warn("Failed to read seen file, starting empty", "path", s.path, "error", err.Error())
		return storage.NewKeySet(), nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		s.logger.Warn("Malformed seen file, starting empty", "path", s.path, "error", err.Error())
		return storage.NewKeySet(), nil
	}

	set := storage.NewKeySet(ids...)
	s.logger.Info("Loaded seen lots", "path", s.path, "count", set.Len())
	return set, nil
}

// Save пишет во временный файл рядом и атомарно заменяет основной через rename.
func (s *Store) Save(_ context.Context, set *storage.KeySet) error {
	data, err := json.MarshalIndent(set.Items(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode seen set: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// после успешного rename файла уже нет
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}

	s.logger.Debug("Saved seen lots", "path", s.path, "count", set.Len())
	return nil
}

func (s *Store) Close() error {
	return nil
}
