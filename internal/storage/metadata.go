package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver, registers as "sqlite"

	"github.com/deb2000-sudo/cloudvault/pkg/model"
)

// metadataStore persists FileMetadata and DirectoryMetadata in a SQLite
// database. database/sql connection pooling already serializes writes at
// the driver level; callers additionally serialize writes to the same
// fileID at the transfer-coordinator layer per SPEC_FULL.md section 5.
type metadataStore struct {
	db *sql.DB
}

func openMetadataStore(path string) (*metadataStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open metadata db: %w", err)
	}
	// SQLite has no concurrent-writer story; one connection avoids
	// SQLITE_BUSY under the goroutine-per-session model.
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &metadataStore{db: db}, nil
}

func (s *metadataStore) Close() error { return s.db.Close() }

func nullableString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPointer(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

const timeLayout = time.RFC3339Nano

func (s *metadataStore) insertFile(m *model.FileMetadata) error {
	_, err := s.db.Exec(
		`INSERT INTO files (id, user_id, file_name, file_size, content_type, directory_id, is_complete, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.UserID, m.FileName, m.FileSize, m.ContentType, nullableString(m.DirectoryID), m.IsComplete,
		m.CreatedAt.Format(timeLayout), m.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storage: insert file: %w", err)
	}
	return nil
}

func scanFile(row interface {
	Scan(dest ...any) error
}) (*model.FileMetadata, error) {
	var m model.FileMetadata
	var dirID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&m.ID, &m.UserID, &m.FileName, &m.FileSize, &m.ContentType, &dirID, &m.IsComplete, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	m.DirectoryID = stringPointer(dirID)
	m.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	m.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &m, nil
}

func (s *metadataStore) getFile(fileID string) (*model.FileMetadata, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, file_name, file_size, content_type, directory_id, is_complete, created_at, updated_at
		 FROM files WHERE id = ?`, fileID)
	m, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get file: %w", err)
	}
	return m, nil
}

func (s *metadataStore) listFiles(userID string, directoryID *string) ([]*model.FileMetadata, error) {
	var rows *sql.Rows
	var err error
	if directoryID == nil {
		rows, err = s.db.Query(
			`SELECT id, user_id, file_name, file_size, content_type, directory_id, is_complete, created_at, updated_at
			 FROM files WHERE user_id = ? ORDER BY created_at`, userID)
	} else {
		rows, err = s.db.Query(
			`SELECT id, user_id, file_name, file_size, content_type, directory_id, is_complete, created_at, updated_at
			 FROM files WHERE user_id = ? AND directory_id = ? ORDER BY created_at`, userID, *directoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list files: %w", err)
	}
	defer rows.Close()

	var out []*model.FileMetadata
	for rows.Next() {
		m, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan file: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *metadataStore) setFileComplete(fileID string, complete bool) error {
	res, err := s.db.Exec(`UPDATE files SET is_complete = ?, updated_at = ? WHERE id = ?`,
		complete, time.Now().Format(timeLayout), fileID)
	if err != nil {
		return fmt.Errorf("storage: mark file complete: %w", err)
	}
	return mustAffect(res)
}

func (s *metadataStore) moveFile(fileID string, targetDirectoryID *string) error {
	res, err := s.db.Exec(`UPDATE files SET directory_id = ?, updated_at = ? WHERE id = ?`,
		nullableString(targetDirectoryID), time.Now().Format(timeLayout), fileID)
	if err != nil {
		return fmt.Errorf("storage: move file: %w", err)
	}
	return mustAffect(res)
}

func (s *metadataStore) deleteFile(fileID string) error {
	res, err := s.db.Exec(`DELETE FROM files WHERE id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("storage: delete file: %w", err)
	}
	return mustAffect(res)
}

func mustAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if n == 0 {
		return ErrFileNotFound
	}
	return nil
}

func (s *metadataStore) insertDirectory(d *model.DirectoryMetadata) error {
	_, err := s.db.Exec(
		`INSERT INTO directories (id, user_id, name, parent_directory_id, is_root, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.UserID, d.Name, nullableString(d.ParentDirectoryID), d.IsRoot,
		d.CreatedAt.Format(timeLayout), d.UpdatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("storage: insert directory: %w", err)
	}
	return nil
}

func scanDirectory(row interface {
	Scan(dest ...any) error
}) (*model.DirectoryMetadata, error) {
	var d model.DirectoryMetadata
	var parentID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &parentID, &d.IsRoot, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.ParentDirectoryID = stringPointer(parentID)
	d.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	d.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	return &d, nil
}

func (s *metadataStore) getDirectory(directoryID string) (*model.DirectoryMetadata, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, parent_directory_id, is_root, created_at, updated_at
		 FROM directories WHERE id = ?`, directoryID)
	d, err := scanDirectory(row)
	if err == sql.ErrNoRows {
		return nil, ErrDirectoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get directory: %w", err)
	}
	return d, nil
}

func (s *metadataStore) rootDirectory(userID string) (*model.DirectoryMetadata, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, parent_directory_id, is_root, created_at, updated_at
		 FROM directories WHERE user_id = ? AND is_root = 1`, userID)
	d, err := scanDirectory(row)
	if err == nil {
		return d, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("storage: get root directory: %w", err)
	}

	now := time.Now()
	root := &model.DirectoryMetadata{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "root",
		IsRoot:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.insertDirectory(root); err != nil {
		return nil, err
	}
	return root, nil
}

func (s *metadataStore) listDirectories(userID string, parentDirectoryID *string) ([]*model.DirectoryMetadata, error) {
	var rows *sql.Rows
	var err error
	if parentDirectoryID == nil {
		rows, err = s.db.Query(
			`SELECT id, user_id, name, parent_directory_id, is_root, created_at, updated_at
			 FROM directories WHERE user_id = ? AND parent_directory_id IS NULL ORDER BY name`, userID)
	} else {
		rows, err = s.db.Query(
			`SELECT id, user_id, name, parent_directory_id, is_root, created_at, updated_at
			 FROM directories WHERE user_id = ? AND parent_directory_id = ? ORDER BY name`, userID, *parentDirectoryID)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list directories: %w", err)
	}
	defer rows.Close()

	var out []*model.DirectoryMetadata
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan directory: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *metadataStore) renameDirectory(directoryID, newName string) error {
	res, err := s.db.Exec(`UPDATE directories SET name = ?, updated_at = ? WHERE id = ?`,
		newName, time.Now().Format(timeLayout), directoryID)
	if err != nil {
		return fmt.Errorf("storage: rename directory: %w", err)
	}
	return directoryAffect(res)
}

func directoryAffect(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if n == 0 {
		return ErrDirectoryNotFound
	}
	return nil
}

func (s *metadataStore) deleteDirectory(directoryID string) error {
	res, err := s.db.Exec(`DELETE FROM directories WHERE id = ?`, directoryID)
	if err != nil {
		return fmt.Errorf("storage: delete directory: %w", err)
	}
	return directoryAffect(res)
}

// filesIn and subdirectoriesOf back the recursive-delete walk in
// FilesystemBackend.DeleteDirectory.
func (s *metadataStore) filesIn(directoryID string) ([]*model.FileMetadata, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, file_name, file_size, content_type, directory_id, is_complete, created_at, updated_at
		 FROM files WHERE directory_id = ?`, directoryID)
	if err != nil {
		return nil, fmt.Errorf("storage: files in directory: %w", err)
	}
	defer rows.Close()
	var out []*model.FileMetadata
	for rows.Next() {
		m, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *metadataStore) subdirectoriesOf(directoryID string) ([]*model.DirectoryMetadata, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, parent_directory_id, is_root, created_at, updated_at
		 FROM directories WHERE parent_directory_id = ?`, directoryID)
	if err != nil {
		return nil, fmt.Errorf("storage: subdirectories: %w", err)
	}
	defer rows.Close()
	var out []*model.DirectoryMetadata
	for rows.Next() {
		d, err := scanDirectory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
