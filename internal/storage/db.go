// Package storage holds the SQLite database shared by the bot and the flat-file repositories
// used for per-guild configuration and engine state.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("storage: not found")

// DB wraps the SQLite connection holding api keys, stat history,
// cached faction payloads and spy reports
type DB struct {
	conn *sql.DB
}

func NewDB(dbPath string) (*DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers anyway
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("Database ready")
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS api_keys (
			user_id TEXT PRIMARY KEY,
			torn_api_key TEXT,
			tornstats_api_key TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS stat_history (
			player_id INTEGER NOT NULL,
			timestamp INTEGER NOT NULL,
			strength REAL NOT NULL,
			defense REAL NOT NULL,
			speed REAL NOT NULL,
			dexterity REAL NOT NULL,
			total REAL NOT NULL,
			level INTEGER NOT NULL,
			xanax_used INTEGER NOT NULL,
			energy_used INTEGER NOT NULL,
			PRIMARY KEY (player_id, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS faction_info (
			faction_id INTEGER PRIMARY KEY,
			last_updated INTEGER NOT NULL,
			faction_data TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS spies (
			target_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			strength REAL NOT NULL,
			speed REAL NOT NULL,
			dexterity REAL NOT NULL,
			defense REAL NOT NULL,
			total REAL NOT NULL,
			source TEXT NOT NULL,
			confidence TEXT NOT NULL,
			PRIMARY KEY (target_id, user_id, timestamp)
		)`,
		`CREATE TABLE IF NOT EXISTS kv (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spies_target ON spies(target_id, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}
