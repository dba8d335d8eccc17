// Package respconfig loads and serves the emotion-to-quote response
// configuration. The configuration lives in a single JSON document validated
// against an embedded JSON Schema plus a handful of business rules the schema
// cannot express.
package respconfig

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/voiceback/voiceback/internal/models"
)

//go:embed schema.json
var schemaJSON string

// ConfigurationError describes why a configuration document was rejected.
// Reason is a stable short code: "read", "parse", "schema" or "content".
type ConfigurationError struct {
	Reason string
	Path   string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s error for %s: %v", e.Reason, e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Store holds the validated configuration and refreshes it from disk when the
// file changes. Reads always serve the last good document; a failed reload
// never clobbers the cache.
type Store struct {
	path   string
	schema *jsonschema.Schema

	mu       sync.RWMutex
	cfg      models.ResponseConfiguration
	mtime    time.Time
	loadedAt time.Time
	dirty    bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// Opts holds configuration options for the store.
type Opts struct {
	Watch bool
}

// Option defines a configuration option for the store.
type Option func(*Opts)

// WithWatcher enables a filesystem watcher that marks the cache stale as soon
// as the configuration file changes, instead of waiting for an mtime check.
func WithWatcher() Option {
	return func(o *Opts) { o.Watch = true }
}

// NewStore compiles the embedded schema and prepares a store for the given
// configuration file. The file itself is not read until Load is called.
func NewStore(path string, opts ...Option) (*Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("parse embedded schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("responses.schema.json", doc); err != nil {
		return nil, fmt.Errorf("register embedded schema: %w", err)
	}
	schema, err := compiler.Compile("responses.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile embedded schema: %w", err)
	}

	s := &Store{path: path, schema: schema}

	if cfg.Watch {
		if err := s.startWatcher(); err != nil {
			return nil, fmt.Errorf("start configuration watcher: %w", err)
		}
	}
	return s, nil
}

func (s *Store) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.path); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					slog.Debug("Store: configuration file changed on disk", "path", s.path, "op", ev.Op.String())
					s.mu.Lock()
					s.dirty = true
					s.mu.Unlock()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Store: configuration watcher error", "path", s.path, "error", err)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the filesystem watcher if one is running.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}

// Load refreshes the configuration from disk. When force is false the cached
// document is reused as long as the file's mtime is unchanged and the watcher
// has not flagged it stale. On validation failure the previous document stays
// in place and the error is returned.
func (s *Store) Load(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fi, err := os.Stat(s.path)
	if err != nil {
		return &ConfigurationError{Reason: "read", Path: s.path, Err: err}
	}

	if !force && s.cfg != nil && !s.dirty && fi.ModTime().Equal(s.mtime) {
		return nil
	}

	cfg, err := s.parseAndValidate()
	if err != nil {
		slog.Error("Store.Load: configuration rejected, keeping previous document", "path", s.path, "error", err)
		return err
	}

	s.cfg = cfg
	s.mtime = fi.ModTime()
	s.loadedAt = time.Now()
	s.dirty = false
	slog.Info("Store.Load: configuration loaded", "path", s.path, "emotions", len(cfg))
	return nil
}

// Reload forces a fresh read and validation of the configuration file.
func (s *Store) Reload() error { return s.Load(true) }

func (s *Store) parseAndValidate() (models.ResponseConfiguration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, &ConfigurationError{Reason: "read", Path: s.path, Err: err}
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &ConfigurationError{Reason: "parse", Path: s.path, Err: err}
	}
	if err := s.schema.Validate(inst); err != nil {
		return nil, &ConfigurationError{Reason: "schema", Path: s.path, Err: err}
	}

	var cfg models.ResponseConfiguration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Reason: "parse", Path: s.path, Err: err}
	}

	if err := checkContent(cfg); err != nil {
		return nil, &ConfigurationError{Reason: "content", Path: s.path, Err: err}
	}
	return cfg, nil
}

// checkContent enforces the rules the schema cannot: whitespace-only keys,
// placeholder figures and the per-record invariants.
func checkContent(cfg models.ResponseConfiguration) error {
	if len(cfg) == 0 {
		return fmt.Errorf("configuration defines no emotions")
	}
	for emotion, records := range cfg {
		if strings.TrimSpace(emotion) == "" {
			return fmt.Errorf("emotion key is blank")
		}
		if len(records) == 0 {
			return fmt.Errorf("emotion %q has no records", emotion)
		}
		for i, rec := range records {
			if err := rec.Validate(); err != nil {
				return fmt.Errorf("emotion %q record %d: %w", emotion, i, err)
			}
		}
	}
	return nil
}

// IsLoaded reports whether a valid document is currently cached.
func (s *Store) IsLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg != nil
}

// LoadedAt returns the time the current document was accepted, or the zero
// time when nothing is loaded.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Emotions lists the configured emotion keys in sorted order.
func (s *Store) Emotions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.cfg))
	for emotion := range s.cfg {
		out = append(out, emotion)
	}
	sort.Strings(out)
	return out
}

// RecordsFor returns a copy of the quote records for the given emotion, or
// nil when the emotion is not configured.
func (s *Store) RecordsFor(emotion models.EmotionCategory) []models.QuoteRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, ok := s.cfg[string(emotion)]
	if !ok {
		return nil
	}
	out := make([]models.QuoteRecord, len(records))
	copy(out, records)
	return out
}
