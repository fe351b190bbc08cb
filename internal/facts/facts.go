// Package facts is the run-wide accumulator collect tasks write into and
// rewrite tasks read from. Writers and readers never overlap: the runner
// freezes the store between the two stages.
package facts

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrFrozen is returned by writes after Freeze.
var ErrFrozen = errors.New("fact store is frozen")

// Store maps table name → key → ordered set of values. It is safe for
// concurrent writers.
type Store struct {
	mu     sync.RWMutex
	tables map[string]map[string][]string
	frozen bool
}

func New() *Store {
	return &Store{tables: make(map[string]map[string][]string)}
}

// Add records value under key in table. Duplicates are ignored.
func (s *Store) Add(table, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return fmt.Errorf("%w: add %s[%q]", ErrFrozen, table, key)
	}
	t, ok := s.tables[table]
	if !ok {
		t = make(map[string][]string)
		s.tables[table] = t
	}
	for _, v := range t[key] {
		if v == value {
			return nil
		}
	}
	t[key] = append(t[key], value)
	return nil
}

// Freeze ends the collect stage. Values are sorted so that readers see the
// same order no matter how collection was scheduled.
func (s *Store) Freeze() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.frozen {
		return
	}
	for _, t := range s.tables {
		for _, vs := range t {
			sort.Strings(vs)
		}
	}
	s.frozen = true
}

func (s *Store) Frozen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frozen
}

// Table returns a read-only view of one table.
func (s *Store) Table(name string) Table {
	return Table{store: s, name: name}
}

// Table is a read-only view over one table of a store.
type Table struct {
	store *Store
	name  string
}

func (t Table) Name() string { return t.name }

// Get returns a copy of the values recorded under key.
func (t Table) Get(key string) []string {
	if t.store == nil {
		return nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	vs := t.store.tables[t.name][key]
	if len(vs) == 0 {
		return nil
	}
	return append([]string(nil), vs...)
}

// Has reports whether value was recorded under key.
func (t Table) Has(key, value string) bool {
	for _, v := range t.Get(key) {
		if v == value {
			return true
		}
	}
	return false
}

// Keys returns the table's keys in sorted order.
func (t Table) Keys() []string {
	if t.store == nil {
		return nil
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	keys := make([]string, 0, len(t.store.tables[t.name]))
	for k := range t.store.tables[t.name] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
