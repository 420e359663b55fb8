package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"
)

// ConnectToDB opens a libsql database. A bare file path is turned into a
// file: DSN. For local files the parent directory is created.
func ConnectToDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn cannot be empty")
	}

	if !strings.Contains(dsn, ":") {
		dsn = "file:" + dsn
	}
	if file := localFile(dsn); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, fmt.Errorf("could not create database directory: %w", err)
		}
	}

	db, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// localFile returns the filesystem path of a file: DSN, or "" for remote and
// in-memory databases.
func localFile(dsn string) string {
	file, ok := strings.CutPrefix(dsn, "file:")
	if !ok {
		return ""
	}
	file, _, _ = strings.Cut(file, "?")
	if file == "" || file == ":memory:" {
		return ""
	}
	return file
}

// SQLLockStore keeps lock records in a libsql database.
type SQLLockStore struct {
	db *sql.DB
}

// NewSQLLockStore connects to dsn and initializes the schema.
func NewSQLLockStore(dsn string) (*SQLLockStore, error) {
	db, err := ConnectToDB(dsn)
	if err != nil {
		return nil, err
	}
	store := &SQLLockStore{db: db}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, err
	}

	slog.Info("Lock store opened", "dsn", dsn)
	return store, nil
}

// Close closes the database connection.
func (s *SQLLockStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema creates the locks table if it does not exist yet.
func (s *SQLLockStore) InitSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS locks (
		lock_uri TEXT PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		file_name TEXT NOT NULL,
		content_uri TEXT NOT NULL,
		owner TEXT NOT NULL,
		acquired_at TEXT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create locks table: %w", err)
	}
	return nil
}

// InsertLock stores rec, failing with ErrLockExists when its lock URI is taken.
func (s *SQLLockStore) InsertLock(ctx context.Context, rec *LockRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be a no-op if transaction is committed

	var exists bool
	err = tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM locks WHERE lock_uri = ?)", rec.LockURI).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check lock %s: %w", rec.LockURI, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrLockExists, rec.LockURI)
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO locks (lock_uri, id, file_name, content_uri, owner, acquired_at) VALUES (?, ?, ?, ?, ?, ?)",
		rec.LockURI, rec.ID.String(), rec.FileName, rec.ContentURI, rec.Owner, rec.AcquiredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert lock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected != 1 {
		return fmt.Errorf("expected 1 row affected, got %d", rowsAffected)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Debug("Lock stored", "lock_uri", rec.LockURI, "owner", rec.Owner)
	return nil
}

// GetLock returns the record stored under lockURI.
func (s *SQLLockStore) GetLock(ctx context.Context, lockURI string) (*LockRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT lock_uri, id, file_name, content_uri, owner, acquired_at FROM locks WHERE lock_uri = ?", lockURI)

	rec, err := scanLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrLockNotFound, lockURI)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock %s: %w", lockURI, err)
	}
	return rec, nil
}

// DeleteLock removes the record stored under lockURI.
func (s *SQLLockStore) DeleteLock(ctx context.Context, lockURI string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM locks WHERE lock_uri = ?", lockURI)
	if err != nil {
		return fmt.Errorf("failed to delete lock %s: %w", lockURI, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrLockNotFound, lockURI)
	}
	return nil
}

// ListLocks returns all records ordered by lock URI.
func (s *SQLLockStore) ListLocks(ctx context.Context) ([]*LockRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT lock_uri, id, file_name, content_uri, owner, acquired_at FROM locks ORDER BY lock_uri")
	if err != nil {
		return nil, fmt.Errorf("failed to list locks: %w", err)
	}
	defer rows.Close()

	var records []*LockRecord
	for rows.Next() {
		rec, err := scanLock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lock: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate locks: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLock(row rowScanner) (*LockRecord, error) {
	var (
		rec        LockRecord
		id         string
		acquiredAt string
	)
	if err := row.Scan(&rec.LockURI, &id, &rec.FileName, &rec.ContentURI, &rec.Owner, &acquiredAt); err != nil {
		return nil, err
	}

	if err := rec.ID.UnmarshalText([]byte(id)); err != nil {
		return nil, fmt.Errorf("invalid lock id %q: %w", id, err)
	}
	t, err := time.Parse(time.RFC3339Nano, acquiredAt)
	if err != nil {
		return nil, fmt.Errorf("invalid acquired_at %q: %w", acquiredAt, err)
	}
	rec.AcquiredAt = t
	return &rec, nil
}

var _ LockStore = (*SQLLockStore)(nil)
