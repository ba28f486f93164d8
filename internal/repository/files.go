package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rory-hayes/payslip-buddy-ai/internal/common"
)

// File is a stored source document reference.
type File struct {
	ID          string
	UserID      string
	StoragePath string
	CreatedAt   string
}

// InsertFile registers a stored document.
func (s *Store) InsertFile(ctx context.Context, f *File) error {
	if f.CreatedAt == "" {
		f.CreatedAt = now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, user_id, storage_path, created_at) VALUES ($1, $2, $3, $4)`,
		f.ID, f.UserID, f.StoragePath, f.CreatedAt)
	if err != nil {
		s.log.Error("file insert failed", "file_id", f.ID, "error", err)
		return err
	}
	return nil
}

// GetFile loads one file row; common.ErrNotFound when absent.
func (s *Store) GetFile(ctx context.Context, fileID string) (*File, error) {
	var f File
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, storage_path, created_at FROM files WHERE id = $1`, fileID).
		Scan(&f.ID, &f.UserID, &f.StoragePath, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return &f, nil
}

// ListFilePaths returns the storage paths of every file the user owns.
func (s *Store) ListFilePaths(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storage_path FROM files WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list file paths: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// DeleteFiles removes all file rows for the user.
func (s *Store) DeleteFiles(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete files: %w", err)
	}
	return res.RowsAffected()
}
