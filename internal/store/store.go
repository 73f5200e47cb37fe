// Package store holds the shared data tree every worker task writes into and
// every HTTP read is served from. There is exactly one lock; the tree is
// never handed out except inside it or as a deep copy taken under it.
package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotFound is returned when a read path does not resolve to a value,
// either because a key is absent or because the path descends into a leaf.
var ErrNotFound = errors.New("data path not found")

// Store is a mutex-guarded hierarchical key-value tree. Keys are strings,
// values are JSON-representable scalars or nested map[string]any subtrees.
type Store struct {
	mu   sync.Mutex
	data map[string]any
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data: make(map[string]any),
	}
}

// Update runs fn with the store lock held, passing the live data tree.
// All mutation goes through here. The lock is released on every exit path,
// including a panic inside fn.
func (s *Store) Update(fn func(data map[string]any) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// Read resolves a key path and returns a deep copy of the value found there.
// An empty path returns the whole tree. The copy is taken while the lock is
// held, so it is a consistent snapshot; callers encode it without the lock.
func (s *Store) Read(path ...string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur any = s.data
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(path, "/"))
		}
		cur, ok = m[key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(path, "/"))
		}
	}
	return deepCopy(cur), nil
}

// Snapshot returns a deep copy of the whole tree, taken under the lock.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopy(s.data).(map[string]any)
}

// deepCopy clones the nested map/slice structure so callers never share
// memory with the locked tree. Scalars are returned as-is.
func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
