// Package storage holds payslip documents and generated artifacts on a
// local directory tree. Paths stored in the database are relative to the
// bucket root so the tree can be relocated.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
)

type Local struct {
	root   string
	logger *slog.Logger
}

func NewLocal(root string, logger *slog.Logger) (*Local, error) {
	if root == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "storage root is required", common.ErrInvalidInput)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Local{root: root, logger: logger}, nil
}

// Fetch implements pipeline.DocumentSource.
func (l *Local) Fetch(ctx context.Context, path string) ([]byte, error) {
	abs, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if os.IsNotExist(err) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

// Put implements pipeline.ArtifactSink: store bytes under the user's prefix
// and return the relative path.
func (l *Local) Put(ctx context.Context, userID, name, contentType string, data []byte) (string, error) {
	rel := filepath.Join(userID, "artifacts", uuid.New().String()+"-"+filepath.Base(name))
	abs, err := l.resolve(rel)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	if err := os.WriteFile(abs, data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	l.logger.Info("storage.put", "path", rel, "bytes", len(data), "content_type", contentType)
	return rel, nil
}

// Delete removes stored documents; missing paths are not an error.
func (l *Local) Delete(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		abs, err := l.resolve(p)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			l.logger.Warn("storage.delete.failed", "path", p, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// resolve joins a stored relative path onto the root and rejects traversal
// outside it.
func (l *Local) resolve(rel string) (string, error) {
	abs := filepath.Join(l.root, filepath.Clean("/"+rel))
	if !strings.HasPrefix(abs, filepath.Clean(l.root)+string(filepath.Separator)) {
		return "", common.NewAppError("STORAGE_ERROR", "path escapes storage root", common.ErrInvalidInput)
	}
	return abs, nil
}
