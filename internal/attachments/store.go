// Package attachments provides access to the chat transport's local
// attachment directory and to scoped temporary files.
package attachments

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/signal-mail-bridge/internal/core"
)

// LocalStore reads attachments that the chat transport stored on disk
type LocalStore struct {
	dir    string
	logger *zap.Logger
}

// NewLocalStore creates a new LocalStore rooted at dir
func NewLocalStore(dir string, logger *zap.Logger) *LocalStore {
	return &LocalStore{
		dir:    dir,
		logger: logger,
	}
}

// Dir returns the attachment directory
func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("%w: invalid attachment id %q", core.ErrPrecondition, id)
	}
	return filepath.Join(s.dir, id), nil
}

// Stat returns the size of the attachment file. A missing file is a
// core.ErrPrecondition.
func (s *LocalStore) Stat(id string) (int64, error) {
	p, err := s.path(id)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("%w: attachment file %s does not exist", core.ErrPrecondition, p)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat attachment %s: %w", p, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: attachment %s is a directory", core.ErrPrecondition, p)
	}
	return info.Size(), nil
}

// Read returns the contents of the attachment file
func (s *LocalStore) Read(id string) ([]byte, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: attachment file %s does not exist", core.ErrPrecondition, p)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment %s: %w", p, err)
	}
	return data, nil
}

// Cleanup removes regular files last modified more than maxAge before now.
// A missing directory is not an error.
func (s *LocalStore) Cleanup(maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to list attachment directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn("Failed to stat attachment", zap.String("name", entry.Name()), zap.Error(err))
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}

		p := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(p); err != nil {
			s.logger.Warn("Failed to remove stale attachment", zap.String("path", p), zap.Error(err))
			continue
		}
		s.logger.Debug("Removed stale attachment", zap.String("path", p))
		removed++
	}

	return removed, nil
}

// WithTempFile writes data to a file called name inside a fresh temporary
// directory, calls fn with its path and removes the directory afterwards,
// whether or not fn succeeds.
func WithTempFile(name string, data []byte, fn func(path string) error) (err error) {
	dir, err := os.MkdirTemp("", "signal-mail-bridge-")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil && err == nil {
			err = fmt.Errorf("failed to remove temp dir: %w", rmErr)
		}
	}()

	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == ".." {
		base = "attachment"
	}
	p := filepath.Join(dir, base)
	if err := os.WriteFile(p, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	return fn(p)
}
