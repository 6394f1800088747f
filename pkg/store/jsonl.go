// Package store persists crawl records. The JSONL store appends one JSON
// object per line into per-platform, per-kind files and deduplicates by
// record ID so re-crawls are idempotent.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/platform"
)

// JSONLStore writes records as JSON lines under a base directory, one file
// per platform and record kind, e.g. xhs/contents.jsonl.
type JSONLStore struct {
	baseDir string
	log     logger.Logger
	schemas *SchemaCache

	mu      sync.Mutex
	files   map[string]*os.File
	seen    map[string]struct{}
	sidecar map[string]struct{}
}

// NewJSONLStore creates a store rooted at baseDir. Directories are created
// lazily on first write. The store derives a column layout from the first
// record of each platform/kind via its SchemaCache and writes it alongside
// the data file for tabular exporters.
func NewJSONLStore(baseDir string, log logger.Logger) *JSONLStore {
	if log == nil {
		log = logger.GetLogger()
	}
	return &JSONLStore{
		baseDir: baseDir,
		log:     log,
		schemas: NewSchemaCache(),
		files:   make(map[string]*os.File),
		seen:    make(map[string]struct{}),
		sidecar: make(map[string]struct{}),
	}
}

// Schemas exposes the store's column-layout cache.
func (s *JSONLStore) Schemas() *SchemaCache { return s.schemas }

// Save appends the records, skipping any ID already written in this run.
func (s *JSONLStore) Save(ctx context.Context, records []platform.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := rec.Platform + "/" + string(rec.Kind) + "/" + rec.ID
		if _, dup := s.seen[key]; dup {
			continue
		}

		f, err := s.file(rec.Platform, rec.Kind)
		if err != nil {
			return err
		}
		if err := s.writeSchema(rec); err != nil {
			return err
		}

		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		line = append(line, '\n')
		if _, err := f.Write(line); err != nil {
			return fmt.Errorf("append record %s: %w", rec.ID, err)
		}

		s.seen[key] = struct{}{}
	}
	return nil
}

// Close flushes and closes all open files.
func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	for name, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
		delete(s.files, name)
	}
	return firstErr
}

// writeSchema records the column layout for the record's platform/kind pair
// next to the data file, once per pair. Caller holds the mutex.
func (s *JSONLStore) writeSchema(rec platform.Record) error {
	key := rec.Platform + "/" + string(rec.Kind)
	if _, done := s.sidecar[key]; done {
		return nil
	}

	cols := s.schemas.Columns(rec)
	payload, err := json.Marshal(cols)
	if err != nil {
		return fmt.Errorf("marshal schema %s: %w", key, err)
	}

	path := filepath.Join(s.baseDir, rec.Platform, string(rec.Kind)+"s.schema.json")
	if err := os.WriteFile(path, append(payload, '\n'), 0644); err != nil {
		return fmt.Errorf("write schema %s: %w", key, err)
	}

	s.sidecar[key] = struct{}{}
	return nil
}

// file returns the open append handle for a platform/kind pair, opening it
// on first use. Caller holds the mutex.
func (s *JSONLStore) file(platformName string, kind platform.RecordKind) (*os.File, error) {
	key := platformName + "/" + string(kind)
	if f, ok := s.files[key]; ok {
		return f, nil
	}

	dir := filepath.Join(s.baseDir, platformName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	path := filepath.Join(dir, string(kind)+"s.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open store file: %w", err)
	}

	s.log.DebugWithFields("opened store file", map[string]interface{}{"path": path})
	s.files[key] = f
	return f, nil
}
