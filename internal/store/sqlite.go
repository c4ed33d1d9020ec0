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

	_ "modernc.org/sqlite"

	"cryptic-tracker/internal/watchlist"
)

const watchlistKey = "watchlist"

type Store struct {
	db *sql.DB
}

// PublishRecord is one attempt to create or edit the summary message.
type PublishRecord struct {
	TS        int64  `json:"ts"`
	CycleID   string `json:"cycle_id"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		path = "data/app.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS publishes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			cycle_id TEXT,
			action TEXT,
			status TEXT,
			channel_id TEXT,
			message_id TEXT,
			error TEXT,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_publishes_ts ON publishes(ts);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// LoadWatchList reads the watch-list document. A database without one yields
// an empty list.
func (s *Store) LoadWatchList(ctx context.Context) (watchlist.WatchList, error) {
	if s == nil || s.db == nil {
		return watchlist.WatchList{}, fmt.Errorf("store not initialized")
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, watchlistKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return watchlist.WatchList{}, nil
	}
	if err != nil {
		return watchlist.WatchList{}, fmt.Errorf("get watchlist: %w", err)
	}
	var wl watchlist.WatchList
	if err := json.Unmarshal([]byte(value), &wl); err != nil {
		return watchlist.WatchList{}, fmt.Errorf("parse watchlist: %w", err)
	}
	return wl, nil
}

func (s *Store) SaveWatchList(ctx context.Context, wl watchlist.WatchList) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	value, err := json.Marshal(wl)
	if err != nil {
		return fmt.Errorf("marshal watchlist: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		watchlistKey, string(value), time.Now().Format(time.RFC3339),
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert watchlist: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit watchlist: %w", err)
	}
	return nil
}

func (s *Store) InsertPublish(ctx context.Context, p PublishRecord) error {
	if s == nil || s.db == nil {
		return nil
	}
	if p.TS == 0 {
		p.TS = time.Now().Unix()
	}
	if p.CreatedAt == "" {
		p.CreatedAt = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publishes (ts, cycle_id, action, status, channel_id, message_id, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.TS, p.CycleID, p.Action, p.Status, p.ChannelID, p.MessageID, p.Error, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert publish: %w", err)
	}
	return nil
}

func (s *Store) QueryPublishes(ctx context.Context, limit int, offset int) ([]PublishRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, cycle_id, action, status, channel_id, message_id, error, created_at
		 FROM publishes ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query publishes: %w", err)
	}
	defer rows.Close()

	var out []PublishRecord
	for rows.Next() {
		var p PublishRecord
		if err := rows.Scan(&p.TS, &p.CycleID, &p.Action, &p.Status, &p.ChannelID, &p.MessageID, &p.Error, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan publish: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows publish: %w", err)
	}
	return out, nil
}
