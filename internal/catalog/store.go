package catalog

import (
	"sort"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// Store is an immutable id → entry mapping for one catalog kind. It is
// safe for concurrent readers once returned by a loader.
type Store[T any] struct {
	kind    Kind
	entries map[string]T
	files   map[string]string
}

func newStore[T any](kind Kind) *Store[T] {
	return &Store[T]{kind: kind, entries: make(map[string]T), files: make(map[string]string)}
}

// NewStore builds a store from in-memory entries, typically for tests.
func NewStore[T any](kind Kind, entries map[string]T) *Store[T] {
	s := newStore[T](kind)
	for id, e := range entries {
		s.entries[id] = e
	}
	return s
}

// Kind returns the catalog kind of the store.
func (s *Store[T]) Kind() Kind { return s.kind }

// Get returns the entry with the given id.
func (s *Store[T]) Get(id string) (T, error) {
	if s != nil {
		if e, ok := s.entries[id]; ok {
			return e, nil
		}
	}
	var zero T
	kind := Kind("")
	if s != nil {
		kind = s.kind
	}
	return zero, api.NewError(api.InvalidParameter, "%s %q is not declared in any catalog", kind, id)
}

// Has reports whether id is declared.
func (s *Store[T]) Has(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.entries[id]
	return ok
}

// IDs returns the sorted entry ids.
func (s *Store[T]) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of entries.
func (s *Store[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

func (s *Store[T]) add(id, file string, e T) error {
	if prev, dup := s.files[id]; dup {
		return api.NewError(api.ProhibitiveBehavior, "%s id %q is declared twice (%s and %s)", s.kind, id, prev, file)
	}
	s.entries[id] = e
	s.files[id] = file
	return nil
}
