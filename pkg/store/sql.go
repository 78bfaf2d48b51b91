package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chatterd/chatterd/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// SQLStore is a SQLite-backed UserStore for servers whose user base has
// outgrown the flat file.
type SQLStore struct {
	db *sql.DB
}

// OpenSQL opens (or creates) a SQLite database and runs the schema.
func OpenSQL(dbPath string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	ctx := context.Background()

	// Enable WAL mode for better concurrent read performance
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set WAL: %w", err)
	}
	// Set busy timeout to avoid "database is locked" under concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: set busy_timeout: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		username   TEXT NOT NULL PRIMARY KEY CHECK(length(username) > 0 AND length(username) <= 32),
		salt       BLOB NOT NULL,
		hash       BLOB NOT NULL,
		created_at TEXT NOT NULL DEFAULT (datetime('now'))
	);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Get retrieves a record by username. Returns (nil, nil) if not found.
func (s *SQLStore) Get(username string) (*model.UserRecord, error) {
	row := s.db.QueryRow(
		"SELECT username, salt, hash, created_at FROM users WHERE username = ?", username)

	rec := &model.UserRecord{}
	var createdAt string
	err := row.Scan(&rec.Username, &rec.Salt, &rec.Hash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(dbTimeLayout, createdAt)
	return rec, nil
}

// Put inserts a new record. Returns ErrUserExists if the username is taken.
func (s *SQLStore) Put(rec *model.UserRecord) error {
	if err := model.ValidateUsername(rec.Username); err != nil {
		return fmt.Errorf("store: put user: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.Exec(
		"INSERT OR IGNORE INTO users (username, salt, hash, created_at) VALUES (?, ?, ?, ?)",
		rec.Username, rec.Salt, rec.Hash, createdAt.Format(dbTimeLayout))
	if err != nil {
		return fmt.Errorf("store: put user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: put user: %w", err)
	}
	if n == 0 {
		return ErrUserExists
	}
	return nil
}

// All returns every record, ordered by username.
func (s *SQLStore) All() ([]model.UserRecord, error) {
	rows, err := s.db.Query("SELECT username, salt, hash, created_at FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var recs []model.UserRecord
	for rows.Next() {
		var rec model.UserRecord
		var createdAt string
		if err := rows.Scan(&rec.Username, &rec.Salt, &rec.Hash, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(dbTimeLayout, createdAt)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	return recs, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
