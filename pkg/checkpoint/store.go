// Package checkpoint persists search progress and accepted records so an
// interrupted search can resume at the next unsearched identifier.
package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/Sternrassler/scorecard-search/pkg/scorecard"
)

// RangeKey identifies one identifier range [Start, End).
// Progress is tracked per range so different ranges never share a position.
type RangeKey struct {
	Start int64
	End   int64
}

// String renders the Redis key of the range.
//
// Example:
//
//	scorecard:checkpoint:240411345673-240411999999
func (k RangeKey) String() string {
	return fmt.Sprintf("%s:%d-%d", KeyPrefix, k.Start, k.End)
}

// Store records search progress.
type Store interface {
	// Load returns the next identifier to search for the range.
	// ok is false when no checkpoint exists.
	Load(ctx context.Context, key RangeKey) (next int64, ok bool, err error)

	// Save records next as the first identifier not yet searched.
	Save(ctx context.Context, key RangeKey, next int64) error

	// RecordMatch archives an accepted record under its identifier.
	RecordMatch(ctx context.Context, identifier string, rec scorecard.Record) error

	// Matches returns every archived record keyed by identifier.
	Matches(ctx context.Context) (map[string]scorecard.Record, error)
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.Mutex
	next    map[RangeKey]int64
	matches map[string]scorecard.Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		next:    make(map[RangeKey]int64),
		matches: make(map[string]scorecard.Record),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, key RangeKey) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, ok := m.next[key]
	return next, ok, nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, key RangeKey, next int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next[key] = next
	return nil
}

// RecordMatch implements Store.
func (m *MemoryStore) RecordMatch(_ context.Context, identifier string, rec scorecard.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches[identifier] = rec
	return nil
}

// Matches implements Store.
func (m *MemoryStore) Matches(_ context.Context) (map[string]scorecard.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]scorecard.Record, len(m.matches))
	for k, v := range m.matches {
		out[k] = v
	}
	return out, nil
}
