// Package sqlite persists an audit trail of sessions, uploads and asked
// questions. Session working state (chunks, indexes, history windows)
// lives in memory only; this store exists for operational history and
// survives process restarts.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/docqa/backend/internal/storage/models"
	"github.com/docqa/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		ended_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		name TEXT NOT NULL,
		page_count INTEGER NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_documents_session ON documents(session_id);

	CREATE TABLE IF NOT EXISTS ask_history (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		question TEXT NOT NULL,
		answer TEXT,
		chunks_used INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_ask_session ON ask_history(session_id);
	CREATE INDEX IF NOT EXISTS idx_ask_created ON ask_history(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertSession(record *models.SessionRecord) error {
	query := `INSERT OR IGNORE INTO sessions (id, created_at) VALUES (?, ?)`

	if _, err := c.db.Exec(query, record.ID, record.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (c *Client) MarkSessionEnded(id string) error {
	query := `UPDATE sessions SET ended_at = ? WHERE id = ?`

	if _, err := c.db.Exec(query, time.Now().Unix(), id); err != nil {
		return fmt.Errorf("failed to mark session ended: %w", err)
	}
	return nil
}

func (c *Client) InsertDocument(record *models.DocumentRecord) error {
	query := `
		INSERT INTO documents (id, session_id, name, page_count, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.Name,
		record.PageCount,
		record.ChunkCount,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document recorded",
		zap.String("doc_id", record.ID),
		zap.String("session_id", record.SessionID),
	)
	return nil
}

func (c *Client) InsertAskRecord(record *models.AskRecord) error {
	query := `
		INSERT INTO ask_history (id, session_id, question, answer, chunks_used, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.SessionID,
		record.Question,
		record.Answer,
		record.ChunksUsed,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ask record: %w", err)
	}
	return nil
}

func (c *Client) GetAskHistory(sessionID string, limit int) ([]models.AskRecord, error) {
	query := `
		SELECT id, question, answer, chunks_used, latency_ms, created_at
		FROM ask_history
		WHERE session_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get ask history: %w", err)
	}
	defer rows.Close()

	var records []models.AskRecord
	for rows.Next() {
		var r models.AskRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.ChunksUsed, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.SessionID = sessionID
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
