package store

import (
	"sort"
	"sync"

	"mediacrawl/pkg/platform"
)

// SchemaCache memoizes the column layout derived for each platform/kind
// pair. Layouts are computed lazily from the first record seen and reused
// for the rest of the run, so tabular exporters emit stable columns without
// re-inspecting every record. The cache is an explicit dependency handed to
// each store rather than shared process-wide state.
type SchemaCache struct {
	mu      sync.RWMutex
	schemas map[string][]string
}

// NewSchemaCache creates an empty cache.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{schemas: make(map[string][]string)}
}

// Columns returns the cached column list for the record's platform/kind,
// deriving it from this record on first sight.
func (c *SchemaCache) Columns(rec platform.Record) []string {
	key := rec.Platform + "/" + string(rec.Kind)

	c.mu.RLock()
	cols, ok := c.schemas[key]
	c.mu.RUnlock()
	if ok {
		return cols
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cols, ok := c.schemas[key]; ok {
		return cols
	}

	cols = deriveColumns(rec.Data)
	c.schemas[key] = cols
	return cols
}

// Len returns the number of cached layouts.
func (c *SchemaCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.schemas)
}

// deriveColumns extracts the sorted top-level field names from a record
// payload. Empty payloads yield a single "data" column.
func deriveColumns(data map[string]interface{}) []string {
	if len(data) == 0 {
		return []string{"data"}
	}

	cols := make([]string, 0, len(data))
	for k := range data {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}
