package atomlog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryObjectStore is an in-memory ObjectStore used by tests and the default
// harness mode. Like a real blob store it provides read-after-write
// consistency per path but no cross-path atomicity: the overwrite=false check
// is a plain check-then-write the commit protocol must never rely on.
type MemoryObjectStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryObjectStore instantiate an in-memory object store
func NewMemoryObjectStore() *MemoryObjectStore {
	return &MemoryObjectStore{
		objects: make(map[string][]byte),
	}
}

// Put stores data under path
func (m *MemoryObjectStore) Put(ctx context.Context, path string, data []byte, overwrite bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[path]; ok && !overwrite {
		return fmt.Errorf("put %s: %w", path, ErrObjectAlreadyExists)
	}
	m.objects[path] = append([]byte{}, data...)
	return nil
}

// Get returns the content stored under path
func (m *MemoryObjectStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", path, ErrObjectNotFound)
	}
	return append([]byte{}, data...), nil
}

// Exists reports whether an object is stored under path
func (m *MemoryObjectStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[path]
	return ok, nil
}

// List returns all paths starting with prefix in lexical order
func (m *MemoryObjectStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var paths []string
	for path := range m.objects {
		if strings.HasPrefix(path, prefix) {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths, nil
}
