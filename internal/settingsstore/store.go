// Package settingsstore persists the mutable, API-writable Settings key/value
// pairs described in the data model (upstream API token, webhook signing
// key, notification defaults). Unlike internal/config, values here can
// change while the process runs: Get returns a new value as soon as Set
// stores it. The upstream client, webhook ingestor and notification channels
// copy their values when the process starts and do not see a change until a
// restart.
//
// Settings live in a flat JSON file rather than a database table: the
// control plane is expected to run with a writable local volume (the same
// one the Report Materializer uses), and a single small file is simpler to
// back up, diff, and hand-edit than a migration-bearing table. Reads merge
// in an environment variable of the same name (SettingKey.EnvVar) whenever
// the file has no value for a key, so a fresh deployment can seed secrets
// through its process environment before anyone has used the API to set
// them.
package settingsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ignite/adcontrol/internal/domain"
)

// ErrNotFound is returned when a requested Setting key has no stored value,
// in the file or the environment.
var ErrNotFound = errors.New("settingsstore: key not found")

// Store persists and caches Settings. Reads are served from an in-memory
// cache refreshed on every write and on explicit Reload, so repeated reads
// never hit the disk.
type Store struct {
	path string

	mu    sync.RWMutex
	cache map[domain.SettingKey]domain.Setting
}

// New creates a Store backed by the JSON file at path and performs an
// initial load. A missing file is not an error: it is treated as empty, and
// the file is created on the first Set.
func New(path string) (*Store, error) {
	s := &Store{path: path, cache: make(map[domain.SettingKey]domain.Setting)}
	if err := s.Reload(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload repopulates the in-memory cache from the JSON file on disk.
func (s *Store) Reload(_ context.Context) error {
	fresh, err := s.readFile()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cache = fresh
	s.mu.Unlock()
	return nil
}

func (s *Store) readFile() (map[domain.SettingKey]domain.Setting, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[domain.SettingKey]domain.Setting), nil
	}
	if err != nil {
		return nil, fmt.Errorf("settingsstore: read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return make(map[domain.SettingKey]domain.Setting), nil
	}

	var rows []domain.Setting
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("settingsstore: parse %s: %w", s.path, err)
	}

	fresh := make(map[domain.SettingKey]domain.Setting, len(rows))
	for _, st := range rows {
		fresh[st.Key] = st
	}
	return fresh, nil
}

func (s *Store) writeFile(rows map[domain.SettingKey]domain.Setting) error {
	out := make([]domain.Setting, 0, len(rows))
	for _, st := range rows {
		out = append(out, st)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("settingsstore: marshal: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("settingsstore: mkdir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("settingsstore: write %s: %w", s.path, err)
	}
	return nil
}

// Get returns the current value for key: the JSON-file value if set,
// otherwise the value of its environment variable, otherwise ErrNotFound.
func (s *Store) Get(key domain.SettingKey) (domain.Setting, error) {
	s.mu.RLock()
	st, ok := s.cache[key]
	s.mu.RUnlock()

	if ok && st.Value != "" {
		return st, nil
	}
	if env := os.Getenv(key.EnvVar()); env != "" {
		return domain.Setting{Key: key, Value: env}, nil
	}
	if ok {
		return st, nil
	}
	return domain.Setting{}, ErrNotFound
}

// GetString is a convenience wrapper for the common case of reading a string
// value, returning "" if the key has no file or environment value.
func (s *Store) GetString(key domain.SettingKey) string {
	st, err := s.Get(key)
	if err != nil {
		return ""
	}
	return st.Value
}

// All returns every currently-stored Setting, with secret values redacted.
// Settings that are only set through the environment are not included,
// since they were never written through this store.
func (s *Store) All() []domain.Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Setting, 0, len(s.cache))
	for _, st := range s.cache {
		st.Value = st.Redacted()
		out = append(out, st)
	}
	return out
}

// Set upserts a Setting in the JSON file and refreshes the cache entry.
// Writes always go to the file, never to the environment.
func (s *Store) Set(ctx context.Context, key domain.SettingKey, value, updatedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = domain.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
		UpdatedBy: updatedBy,
	}
	if err := s.writeFile(s.cache); err != nil {
		return err
	}
	return nil
}

// SetJSON marshals v and stores it under key, for Settings whose value is a
// structured blob rather than a scalar string.
func (s *Store) SetJSON(ctx context.Context, key domain.SettingKey, v any, updatedBy string) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("settingsstore: marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b), updatedBy)
}
