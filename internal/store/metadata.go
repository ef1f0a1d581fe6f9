package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Metadata keys written by imports.
const (
	MetaLastImportAt   = "last_import_at"
	MetaLastImportRoot = "last_import_root"
)

// SetMetadata upserts a key-value pair in the compass_metadata table.
func (s *Store) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO compass_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`),
		key, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT value FROM compass_metadata WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// RecordImport stores when and from where the last import ran.
func (s *Store) RecordImport(ctx context.Context, root string, at time.Time) error {
	if err := s.SetMetadata(ctx, MetaLastImportAt, at.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return s.SetMetadata(ctx, MetaLastImportRoot, root)
}

// GetImportedFileHash returns the content hash recorded for path, or "" if
// the file was never imported.
func (s *Store) GetImportedFileHash(ctx context.Context, path string) (string, error) {
	var hash string
	err := s.db.GetContext(ctx, &hash, s.db.Rebind(`SELECT hash FROM imported_files WHERE path = ?`), path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported file.
func (s *Store) SetImportedFileHash(ctx context.Context, path, hash string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO imported_files (path, hash, imported_at) VALUES (?, ?, ?)
		 ON CONFLICT (path) DO UPDATE SET hash = excluded.hash, imported_at = excluded.imported_at`),
		path, hash, now(),
	)
	return err
}
