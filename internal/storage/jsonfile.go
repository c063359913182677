package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// JSONFileRepository keeps the whole file in memory and rewrites
// the whole file after every mutation
type JSONFileRepository[T any] struct {
	mu   sync.RWMutex
	path string
	data map[string]T
}

func OpenJSONFile[T any](path string) (*JSONFileRepository[T], error) {
	repo := &JSONFileRepository[T]{path: path, data: make(map[string]T)}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", path).Msg("Creating empty store")
		return repo, repo.flush()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &repo.data); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
	}
	log.Debug().Str("path", path).Int("entries", len(repo.data)).Msg("Loaded store")
	return repo, nil
}

func (r *JSONFileRepository[T]) Get(key string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.data[key]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return value, nil
}

func (r *JSONFileRepository[T]) Set(key string, value T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, existed := r.data[key]
	r.data[key] = value
	if err := r.flush(); err != nil {
		if existed {
			r.data[key] = previous
		} else {
			delete(r.data, key)
		}
		return err
	}
	return nil
}

func (r *JSONFileRepository[T]) Delete(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous, ok := r.data[key]
	if !ok {
		return ErrNotFound
	}
	delete(r.data, key)
	if err := r.flush(); err != nil {
		r.data[key] = previous
		return err
	}
	return nil
}

func (r *JSONFileRepository[T]) List() (map[string]T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.data), nil
}

// Writes a temporary file next to the store and renames it over the store.
// Caller holds the lock
func (r *JSONFileRepository[T]) flush() error {
	raw, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", r.path, err)
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", r.path, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		log.Error().Err(err).Str("path", r.path).Msg("Could not write store")
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", r.path, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		log.Error().Err(err).Str("path", r.path).Msg("Could not replace store")
		return fmt.Errorf("failed to replace %s: %w", r.path, err)
	}
	return nil
}
