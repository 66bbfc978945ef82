package database

import (
	"database/sql"
	"errors"
	"fmt"

	"msync/internal/bt"
	"msync/internal/database/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements bt.FingerprintStore on a single SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the store at path, creating and migrating it as needed.
// path can be a file path or ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	if err := migrations.Check(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("checking schema of %s: %w", path, err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to ":memory:" is a fresh, empty database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) ListAll() ([]bt.CacheEntry, error) {
	rows, err := s.db.Query("SELECT path, fingerprint FROM files")
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	var entries []bt.CacheEntry
	for rows.Next() {
		var path, raw string
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		fp, err := bt.ParseFingerprint(raw)
		if err != nil {
			return nil, fmt.Errorf("file %s: %w", path, err)
		}
		entries = append(entries, bt.CacheEntry{Path: path, Fingerprint: fp})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Upsert(entries []bt.CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO files (path, fingerprint) VALUES (?, ?)
			ON CONFLICT(path) DO UPDATE SET fingerprint = excluded.fingerprint`)
		if err != nil {
			return fmt.Errorf("preparing upsert: %w", err)
		}
		defer stmt.Close()

		for _, entry := range entries {
			if _, err := stmt.Exec(entry.Path, entry.Fingerprint.String()); err != nil {
				return fmt.Errorf("upserting %s: %w", entry.Path, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteAll(paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.inTx(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare("DELETE FROM files WHERE path = ?")
		if err != nil {
			return fmt.Errorf("preparing delete: %w", err)
		}
		defer stmt.Close()

		for _, p := range paths {
			if _, err := stmt.Exec(p); err != nil {
				return fmt.Errorf("deleting %s: %w", p, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) IsKnown(path string) (bool, error) {
	_, found, err := s.find(path)
	return found, err
}

func (s *SQLiteStore) IsNewOrChanged(path string, fp bt.Fingerprint) (bool, error) {
	cached, found, err := s.find(path)
	if err != nil {
		return false, err
	}
	return !found || !cached.Equal(fp), nil
}

func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM files"); err != nil {
		return fmt.Errorf("clearing files: %w", err)
	}
	return nil
}

// Count returns the number of cached files.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting files: %w", err)
	}
	return n, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) find(path string) (bt.Fingerprint, bool, error) {
	var raw string
	err := s.db.QueryRow("SELECT fingerprint FROM files WHERE path = ?", path).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return bt.Fingerprint{}, false, nil
	}
	if err != nil {
		return bt.Fingerprint{}, false, fmt.Errorf("finding %s: %w", path, err)
	}
	fp, err := bt.ParseFingerprint(raw)
	if err != nil {
		return bt.Fingerprint{}, false, fmt.Errorf("file %s: %w", path, err)
	}
	return fp, true, nil
}

func (s *SQLiteStore) inTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Compile-time check that SQLiteStore implements bt.FingerprintStore interface
var _ bt.FingerprintStore = (*SQLiteStore)(nil)
