// Package settings implements the engine's versioned JSON configuration
// document (spec section 4.C): a typed key registry backed by an
// atomically-written document at <config_root>/config.json, with a
// coalesced persistence window and ordered migrations.
//
// No example repo in this corpus carries a settings layer with a
// migration model (viper reads static files but has no notion of
// versioned document transforms), so this package is grounded directly
// on the spec's description and built on encoding/json + sync, in the
// teacher's plain-stdlib style for things outside its usual domain.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/clopapp/clop/internal/corelog"
)

const currentSchemaVersion = 2

const persistDebounce = 250 * time.Millisecond

// document is the on-disk shape. Values holds every key (known and
// unknown) as raw JSON-decoded values; unknown keys round-trip
// untouched so a newer build's settings survive an older build.
type document struct {
	SchemaVersion int            `json:"schemaVersion"`
	Values        map[string]any `json:"values"`
}

// Store is the process-wide settings document. Safe for concurrent use.
type Store struct {
	path string
	log  *corelog.Logger

	mu  sync.RWMutex
	doc document

	persistMu   sync.Mutex
	persistTimer *time.Timer
	pendingSave bool

	subMu       sync.Mutex
	subscribers []func()
}

// Open loads (or initializes) the settings document at configRoot/config.json,
// running any pending migrations and persisting the upgraded document
// immediately so the on-disk schema_version never lags what's in memory.
func Open(configRoot string) (*Store, error) {
	s := &Store{
		path: filepath.Join(configRoot, "config.json"),
		log:  corelog.New("settings"),
	}

	raw, err := os.ReadFile(s.path)
	switch {
	case err == nil:
		var doc document
		if jsonErr := json.Unmarshal(raw, &doc); jsonErr != nil {
			s.log.Printf("config.json is corrupt, starting fresh: %v", jsonErr)
			doc = document{SchemaVersion: currentSchemaVersion, Values: map[string]any{}}
		}
		if doc.Values == nil {
			doc.Values = map[string]any{}
		}
		s.doc = doc
	case os.IsNotExist(err):
		s.doc = document{SchemaVersion: currentSchemaVersion, Values: map[string]any{}}
	default:
		return nil, err
	}

	migrated := applyMigrations(&s.doc, configRoot, s.log)
	if migrated || err != nil {
		if writeErr := s.writeNow(); writeErr != nil {
			return nil, writeErr
		}
	}
	return s, nil
}

// ConfigDir returns the directory holding this store's config.json, for
// callers that need to place sibling files (e.g. the coordinator's
// activity tally) next to the settings document.
func (s *Store) ConfigDir() string {
	return filepath.Dir(s.path)
}

// Get returns the stored value for k, decoded as T, or k.Default if the
// key is absent or fails to decode as T.
func Get[T any](s *Store, k Key[T]) T {
	s.mu.RLock()
	raw, ok := s.doc.Values[k.Name]
	s.mu.RUnlock()
	if !ok {
		return k.Default
	}
	if v, ok := raw.(T); ok {
		return v
	}
	// Values round-tripped through JSON decode as float64/[]any; re-marshal
	// and unmarshal into T to normalize those shapes cheaply.
	var out T
	b, err := json.Marshal(raw)
	if err != nil {
		return k.Default
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return k.Default
	}
	return out
}

// Set stores v under k and schedules a coalesced persist.
func Set[T any](s *Store, k Key[T], v T) {
	s.mu.Lock()
	s.doc.Values[k.Name] = v
	s.mu.Unlock()
	s.notify()
	s.schedulePersist()
}

// Subscribe registers fn to be called (async, best-effort) after any Set.
// Returns an unsubscribe function.
func (s *Store) Subscribe(fn func()) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
	idx := len(s.subscribers) - 1
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.subscribers[idx] = nil
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		if fn != nil {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		go fn()
	}
}

// schedulePersist coalesces bursts of Set calls into a single write
// persistDebounce after the last one, per spec's "coalesced persistence".
func (s *Store) schedulePersist() {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	s.pendingSave = true
	if s.persistTimer != nil {
		s.persistTimer.Stop()
	}
	s.persistTimer = time.AfterFunc(persistDebounce, func() {
		s.persistMu.Lock()
		shouldWrite := s.pendingSave
		s.pendingSave = false
		s.persistMu.Unlock()
		if shouldWrite {
			if err := s.writeNow(); err != nil {
				s.log.Printf("failed to persist config.json: %v", err)
			}
		}
	})
}

// Flush forces any pending coalesced write to complete synchronously.
func (s *Store) Flush() error {
	s.persistMu.Lock()
	if s.persistTimer != nil {
		s.persistTimer.Stop()
	}
	s.pendingSave = false
	s.persistMu.Unlock()
	return s.writeNow()
}

// writeNow serializes the document and writes it via a temp-file-then-
// rename, grounded on the teacher's EncodeToAV1SVT output-safety pattern
// (never leave a half-written config.json on disk).
func (s *Store) writeNow() error {
	s.mu.RLock()
	doc := s.doc
	s.mu.RUnlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}
