package storage

import (
	"context"
	"fmt"
	"time"
)

// One capture of a player's own battle stats
type StatRecord struct {
	PlayerID   int
	Timestamp  time.Time
	Strength   float64
	Defense    float64
	Speed      float64
	Dexterity  float64
	Total      float64
	Level      int
	XanaxUsed  int64
	EnergyUsed int64
}

func (db *DB) AddStatHistory(ctx context.Context, r StatRecord) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO stat_history
		 (player_id, timestamp, strength, defense, speed, dexterity, total, level, xanax_used, energy_used)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PlayerID, r.Timestamp.Unix(), r.Strength, r.Defense, r.Speed, r.Dexterity, r.Total, r.Level, r.XanaxUsed, r.EnergyUsed,
	)
	if err != nil {
		return fmt.Errorf("failed to add stat history: %w", err)
	}
	return nil
}

// GetStatHistory returns the newest records first
func (db *DB) GetStatHistory(ctx context.Context, playerID int, limit int) ([]StatRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT player_id, timestamp, strength, defense, speed, dexterity, total, level, xanax_used, energy_used
		 FROM stat_history WHERE player_id = ? ORDER BY timestamp DESC LIMIT ?`,
		playerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stat history: %w", err)
	}
	defer rows.Close()

	var records []StatRecord
	for rows.Next() {
		var (
			r  StatRecord
			ts int64
		)
		if err := rows.Scan(&r.PlayerID, &ts, &r.Strength, &r.Defense, &r.Speed, &r.Dexterity, &r.Total, &r.Level, &r.XanaxUsed, &r.EnergyUsed); err != nil {
			return nil, err
		}
		r.Timestamp = time.Unix(ts, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
