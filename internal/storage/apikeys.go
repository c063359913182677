package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type APIKeys struct {
	UserID    string
	Torn      string
	TornStats string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SetAPIKey stores (or overwrites) the Torn key of a Discord user
func (db *DB) SetAPIKey(ctx context.Context, userID, key string) error {
	now := time.Now().Unix()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_keys (user_id, torn_api_key, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET torn_api_key = excluded.torn_api_key, updated_at = excluded.updated_at`,
		userID, key, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store api key: %w", err)
	}
	return nil
}

// SetTornStatsKey stores (or overwrites) the TornStats key of a Discord user
func (db *DB) SetTornStatsKey(ctx context.Context, userID, key string) error {
	now := time.Now().Unix()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_keys (user_id, tornstats_api_key, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET tornstats_api_key = excluded.tornstats_api_key, updated_at = excluded.updated_at`,
		userID, key, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to store tornstats key: %w", err)
	}
	return nil
}

func (db *DB) GetAPIKeys(ctx context.Context, userID string) (APIKeys, error) {
	var (
		keys             APIKeys
		torn, tornStats  sql.NullString
		created, updated int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, torn_api_key, tornstats_api_key, created_at, updated_at FROM api_keys WHERE user_id = ?`,
		userID,
	).Scan(&keys.UserID, &torn, &tornStats, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return APIKeys{}, ErrNotFound
	}
	if err != nil {
		return APIKeys{}, fmt.Errorf("failed to read api keys: %w", err)
	}
	keys.Torn = torn.String
	keys.TornStats = tornStats.String
	keys.CreatedAt = time.Unix(created, 0)
	keys.UpdatedAt = time.Unix(updated, 0)
	return keys, nil
}

// DeleteAPIKeys removes every key of the user. Returns ErrNotFound if there was nothing stored
func (db *DB) DeleteAPIKeys(ctx context.Context, userID string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM api_keys WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete api keys: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
