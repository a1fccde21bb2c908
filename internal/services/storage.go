package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/huangang/taskboard/pkg/logger"
)

// LocalStorage keeps uploads as flat files in one directory.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir}, nil
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

// StoredObject describes bytes written by Save.
type StoredObject struct {
	Filename string
	Path     string
	Size     int64
}

// Save writes r under a random name that keeps the extension of
// originalName. Partially written files are removed on error.
func (s *LocalStorage) Save(r io.Reader, originalName string) (*StoredObject, error) {
	filename := uuid.NewString() + filepath.Ext(originalName)
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	return &StoredObject{Filename: filename, Path: path, Size: size}, nil
}

// Remove deletes a stored file. A file that is already gone is not an error.
func (s *LocalStorage) Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// ProcessCleanup removes every path in the task, logging failures and
// returning the last one so the queue can retry.
func (s *LocalStorage) ProcessCleanup(ctx context.Context, task *FileCleanupTask) error {
	var lastErr error
	removed := 0
	for _, path := range task.Paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("failed to remove stored file")
			lastErr = err
			continue
		}
		removed++
	}
	logger.Info().Str("project_id", task.ProjectID).Int("removed", removed).Msg("file cleanup finished")
	return lastErr
}
