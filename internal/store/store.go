// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists deck sessions, their produced cards, and model
// usage in a local SQLite database, with full-text search over card text.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/deck-engine/internal/session"
	"github.com/pdiddy/deck-engine/pkg/types"
)

const (
	dbFile     = "deck.db"
	defaultDir = "decks"

	// timeLayout has fixed width so stored timestamps sort as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrNotFound is returned when no stored session matches.
var ErrNotFound = errors.New("store: session not found")

// Store manages the deck database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates dir/deck.db and its schema.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			objective TEXT,
			lod TEXT,
			snapshot TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at)`,
		`CREATE TABLE IF NOT EXISTS cards (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			number INTEGER NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			word_count INTEGER NOT NULL,
			UNIQUE(session_id, number)
		)`,
		`CREATE TABLE IF NOT EXISTS usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cache_read_tokens INTEGER NOT NULL,
			cache_write_tokens INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_session ON usage(session_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='cards_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE cards_fts USING fts5(title, content, content=cards, content_rowid=rowid)`,
			`CREATE TRIGGER cards_ai AFTER INSERT ON cards BEGIN
				INSERT INTO cards_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
			`CREATE TRIGGER cards_ad AFTER DELETE ON cards BEGIN
				INSERT INTO cards_fts(cards_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
			END`,
			`CREATE TRIGGER cards_au AFTER UPDATE ON cards BEGIN
				INSERT INTO cards_fts(cards_fts, rowid, title, content) VALUES('delete', old.rowid, old.title, old.content);
				INSERT INTO cards_fts(rowid, title, content) VALUES (new.rowid, new.title, new.content);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// SaveSession writes snap and replaces the session's stored cards.
func (s *Store) SaveSession(ctx context.Context, snap session.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, state, objective, lod, snapshot, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state=excluded.state, objective=excluded.objective, lod=excluded.lod,
			snapshot=excluded.snapshot, updated_at=excluded.updated_at`,
		snap.ID, string(snap.State), snap.Briefing.Objective, string(snap.LOD), string(data),
		formatTime(snap.CreatedAt), formatTime(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cards WHERE session_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("deleting old cards: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cards (session_id, number, title, content, word_count) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range snap.Cards {
		if _, err := stmt.ExecContext(ctx, snap.ID, c.Number, c.Title, c.Content, c.WordCount); err != nil {
			return fmt.Errorf("inserting card %d: %w", c.Number, err)
		}
	}
	return tx.Commit()
}

// LoadSession returns the stored snapshot of session id.
func (s *Store) LoadSession(ctx context.Context, id string) (session.Snapshot, error) {
	return s.scanSnapshot(s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, id))
}

// LatestSession returns the most recently updated session.
func (s *Store) LatestSession(ctx context.Context) (session.Snapshot, error) {
	return s.scanSnapshot(s.db.QueryRowContext(ctx,
		`SELECT snapshot FROM sessions ORDER BY updated_at DESC, rowid DESC LIMIT 1`))
}

func (s *Store) scanSnapshot(row *sql.Row) (session.Snapshot, error) {
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.Snapshot{}, ErrNotFound
		}
		return session.Snapshot{}, fmt.Errorf("reading session: %w", err)
	}
	var snap session.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("decoding session: %w", err)
	}
	return snap, nil
}

// SessionSummary is one row of ListSessions.
type SessionSummary struct {
	ID        string        `json:"id" yaml:"id"`
	State     session.State `json:"state" yaml:"state"`
	Objective string        `json:"objective" yaml:"objective"`
	LOD       types.LOD     `json:"lod" yaml:"lod"`
	Cards     int           `json:"cards" yaml:"cards"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}

// ListSessions returns all sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.state, s.objective, s.lod, s.updated_at,
			(SELECT count(*) FROM cards c WHERE c.session_id = s.id)
		 FROM sessions s
		 ORDER BY s.updated_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum     SessionSummary
			state   string
			lod     string
			updated string
		)
		if err := rows.Scan(&sum.ID, &state, &sum.Objective, &lod, &updated, &sum.Cards); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sum.State = session.State(state)
		sum.LOD = types.LOD(lod)
		sum.UpdatedAt = parseTime(updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSession removes a session with its cards and usage.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM usage WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("deleting usage: %w", err)
	}
	return tx.Commit()
}

// CardHit is a full-text search match.
type CardHit struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	Number    int    `json:"number" yaml:"number"`
	Title     string `json:"title" yaml:"title"`
	Snippet   string `json:"snippet" yaml:"snippet"`
}

// SearchCards runs an FTS5 query over produced card titles and content,
// best matches first. A limit below 1 means 20.
func (s *Store) SearchCards(ctx context.Context, query string, limit int) ([]CardHit, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.session_id, c.number, c.title, snippet(cards_fts, 1, '[', ']', '...', 12)
		 FROM cards_fts
		 JOIN cards c ON c.rowid = cards_fts.rowid
		 WHERE cards_fts MATCH ?
		 ORDER BY cards_fts.rank
		 LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching cards: %w", err)
	}
	defer rows.Close()

	var out []CardHit
	for rows.Next() {
		var h CardHit
		if err := rows.Scan(&h.SessionID, &h.Number, &h.Title, &h.Snippet); err != nil {
			return nil, fmt.Errorf("scanning card hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
