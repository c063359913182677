package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// A spy report saved by a guild member
type Spy struct {
	TargetID   int
	UserID     string
	Timestamp  time.Time
	Strength   float64
	Speed      float64
	Dexterity  float64
	Defense    float64
	Total      float64
	Source     string
	Confidence string
}

func (db *DB) SaveSpy(ctx context.Context, s Spy) error {
	if s.Total == 0 {
		s.Total = s.Strength + s.Speed + s.Dexterity + s.Defense
	}
	if s.Source == "" {
		s.Source = "manual"
	}
	if s.Confidence == "" {
		s.Confidence = "medium"
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO spies
		 (target_id, user_id, timestamp, strength, speed, dexterity, defense, total, source, confidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TargetID, s.UserID, s.Timestamp.Unix(), s.Strength, s.Speed, s.Dexterity, s.Defense, s.Total, s.Source, s.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to save spy: %w", err)
	}
	return nil
}

// LatestSpy returns the freshest report for the target
func (db *DB) LatestSpy(ctx context.Context, targetID int) (Spy, error) {
	var (
		s  Spy
		ts int64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT target_id, user_id, timestamp, strength, speed, dexterity, defense, total, source, confidence
		 FROM spies WHERE target_id = ? ORDER BY timestamp DESC LIMIT 1`,
		targetID,
	).Scan(&s.TargetID, &s.UserID, &ts, &s.Strength, &s.Speed, &s.Dexterity, &s.Defense, &s.Total, &s.Source, &s.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return Spy{}, ErrNotFound
	}
	if err != nil {
		return Spy{}, fmt.Errorf("failed to read spy: %w", err)
	}
	s.Timestamp = time.Unix(ts, 0)
	return s, nil
}

// AverageSpyTotal averages the latest known total of each of the given players.
// Players without any report are ignored; ErrNotFound when none has one
func (db *DB) AverageSpyTotal(ctx context.Context, playerIDs []int) (float64, int, error) {
	if len(playerIDs) == 0 {
		return 0, 0, ErrNotFound
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(playerIDs)), ",")
	args := make([]any, len(playerIDs))
	for i, id := range playerIDs {
		args[i] = id
	}
	query := fmt.Sprintf(
		`SELECT AVG(total), COUNT(*) FROM (
			SELECT s.total FROM spies s
			WHERE s.target_id IN (%s)
			AND s.timestamp = (SELECT MAX(timestamp) FROM spies WHERE target_id = s.target_id)
			GROUP BY s.target_id
		)`, placeholders)

	var (
		avg   sql.NullFloat64
		count int
	)
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to average spies: %w", err)
	}
	if !avg.Valid || count == 0 {
		return 0, 0, ErrNotFound
	}
	return avg.Float64, count, nil
}
