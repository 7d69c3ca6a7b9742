// internal/history/store.go
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Entry records one completed download. This is an archive of downloaded
// works, not task state: task lifecycle stays in process memory.
type Entry struct {
	ContentID    string
	FilePath     string
	AuthorName   string
	Caption      string
	DownloadedAt time.Time
}

// Store persists download history in a local SQLite database so the same
// work is not fetched twice across restarts.
type Store struct {
	db *sql.DB
}

const createTableStmt = `
CREATE TABLE IF NOT EXISTS download_records (
	content_id    TEXT PRIMARY KEY,
	file_path     TEXT NOT NULL,
	author_name   TEXT NOT NULL DEFAULT '',
	caption       TEXT NOT NULL DEFAULT '',
	downloaded_at TIMESTAMP NOT NULL
)`

// Open connects to the database file, creating it and its schema as needed.
func Open(databasePath string) (*Store, error) {
	if databasePath == "" {
		return nil, fmt.Errorf("history database path is required")
	}

	db, err := sql.Open("sqlite3", databasePath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Record inserts or refreshes the entry for a content item.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if entry.ContentID == "" {
		return fmt.Errorf("content id is required")
	}
	if entry.DownloadedAt.IsZero() {
		entry.DownloadedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO download_records (content_id, file_path, author_name, caption, downloaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_id) DO UPDATE SET
			file_path = excluded.file_path,
			downloaded_at = excluded.downloaded_at`,
		entry.ContentID, entry.FilePath, entry.AuthorName, entry.Caption, entry.DownloadedAt)
	if err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// Find returns the entry for a content item, or nil when it has never been
// downloaded.
func (s *Store) Find(ctx context.Context, contentID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT content_id, file_path, author_name, caption, downloaded_at
		FROM download_records WHERE content_id = ?`, contentID)

	var entry Entry
	err := row.Scan(&entry.ContentID, &entry.FilePath, &entry.AuthorName, &entry.Caption, &entry.DownloadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query download history: %w", err)
	}
	return &entry, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
