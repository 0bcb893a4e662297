package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteKV stores keys in a single-table SQLite database
type SQLiteKV struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteKV opens (or creates) the database at basePath/stackforge.db
func NewSQLiteKV(basePath string) (*SQLiteKV, error) {
	dbPath := filepath.Join(basePath, "stackforge.db")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// Single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	kv := &SQLiteKV{
		db:     db,
		dbPath: dbPath,
	}

	if err := kv.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	return kv, nil
}

func (kv *SQLiteKV) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := kv.db.Exec(schema); err != nil {
		return fmt.Errorf("create kv table: %w", err)
	}
	return nil
}

// Path returns the database file location
func (kv *SQLiteKV) Path() string {
	return kv.dbPath
}

func (kv *SQLiteKV) Get(key string) ([]byte, error) {
	var value []byte
	err := kv.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (kv *SQLiteKV) Put(key string, value []byte) error {
	_, err := kv.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	return err
}

// Close closes the database
func (kv *SQLiteKV) Close() error {
	if kv.db != nil {
		return kv.db.Close()
	}
	return nil
}
