package library

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/promptly-ai/videoseek/internal/types"
)

// Store persists (video URL, transcript) pairs in SQLite. Duplicate URLs
// are tolerated; snapshot order is insertion order, which is also the
// order the matcher scans candidates in.
type Store struct {
	db *sql.DB
}

// NewStore opens (and if needed creates) the transcript database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS video_transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		video_url TEXT NOT NULL,
		title TEXT NOT NULL,
		source_type TEXT NOT NULL,
		transcript TEXT NOT NULL,
		word_count INTEGER,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_video_url ON video_transcripts(video_url);
	CREATE INDEX IF NOT EXISTS idx_created ON video_transcripts(created_at);
	`

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create table: %v", err)
	}

	return &Store{db: db}, nil
}

// Save inserts one transcribed video
func (s *Store) Save(ctx context.Context, videoURL, title, sourceType, transcript string, wordCount int) error {
	query := `
	INSERT INTO video_transcripts (video_url, title, source_type, transcript, word_count, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query, videoURL, title, sourceType, transcript, wordCount, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save video transcript: %v", err)
	}

	return nil
}

// Snapshot returns all stored (url, transcript) pairs in insertion order.
// This is the matcher's point-in-time candidate list.
func (s *Store) Snapshot(ctx context.Context) ([]types.VideoTranscriptRecord, error) {
	query := `SELECT video_url, transcript FROM video_transcripts ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read library snapshot: %v", err)
	}
	defer rows.Close()

	var records []types.VideoTranscriptRecord
	for rows.Next() {
		var record types.VideoTranscriptRecord
		if err := rows.Scan(&record.VideoURL, &record.Transcript); err != nil {
			continue
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// List returns video metadata, newest first, for the library UI
func (s *Store) List(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	query := `
	SELECT video_url, title, source_type, word_count, created_at
	FROM video_transcripts ORDER BY created_at DESC LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %v", err)
	}
	defer rows.Close()

	var videos []map[string]interface{}
	for rows.Next() {
		var (
			url, title, source string
			wordCount          int
			createdAt          time.Time
		)
		if err := rows.Scan(&url, &title, &source, &wordCount, &createdAt); err != nil {
			continue
		}
		videos = append(videos, map[string]interface{}{
			"video_url":   url,
			"title":       title,
			"source_type": source,
			"word_count":  wordCount,
			"created_at":  createdAt,
		})
	}

	return videos, rows.Err()
}

// Count returns the number of stored transcripts
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM video_transcripts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count videos: %v", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
