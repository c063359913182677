package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// KVRepository offers the Repository surface on top of the SQLite kv table,
// one namespace per kind of value
type KVRepository[T any] struct {
	db        *DB
	namespace string
}

func NewKVRepository[T any](db *DB, namespace string) *KVRepository[T] {
	return &KVRepository[T]{db: db, namespace: namespace}
}

func (r *KVRepository[T]) Get(key string) (T, error) {
	var (
		zero T
		raw  string
	)
	err := r.db.conn.QueryRow(`SELECT value FROM kv WHERE namespace = ? AND key = ?`, r.namespace, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to read %s/%s: %w", r.namespace, key, err)
	}
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return zero, fmt.Errorf("failed to decode %s/%s: %w", r.namespace, key, err)
	}
	return value, nil
}

func (r *KVRepository[T]) Set(key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", r.namespace, key, err)
	}
	_, err = r.db.conn.Exec(
		`INSERT INTO kv (namespace, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value`,
		r.namespace, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", r.namespace, key, err)
	}
	return nil
}

func (r *KVRepository[T]) Delete(key string) error {
	res, err := r.db.conn.Exec(`DELETE FROM kv WHERE namespace = ? AND key = ?`, r.namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", r.namespace, key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *KVRepository[T]) List() (map[string]T, error) {
	rows, err := r.db.conn.Query(`SELECT key, value FROM kv WHERE namespace = ?`, r.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", r.namespace, err)
	}
	defer rows.Close()

	result := make(map[string]T)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		var value T
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to decode %s/%s: %w", r.namespace, key, err)
		}
		result[key] = value
	}
	return result, rows.Err()
}
