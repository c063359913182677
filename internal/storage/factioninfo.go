package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveFactionInfo caches the last raw faction payload fetched from Torn
func (db *DB) SaveFactionInfo(ctx context.Context, factionID int, data json.RawMessage, updated time.Time) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO faction_info (faction_id, last_updated, faction_data) VALUES (?, ?, ?)
		 ON CONFLICT(faction_id) DO UPDATE SET last_updated = excluded.last_updated, faction_data = excluded.faction_data`,
		factionID, updated.Unix(), string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save faction info: %w", err)
	}
	return nil
}

func (db *DB) GetFactionInfo(ctx context.Context, factionID int) (json.RawMessage, time.Time, error) {
	var (
		data    string
		updated int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT faction_data, last_updated FROM faction_info WHERE faction_id = ?`, factionID,
	).Scan(&data, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read faction info: %w", err)
	}
	return json.RawMessage(data), time.Unix(updated, 0), nil
}
