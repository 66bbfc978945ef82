package vault

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-memory ObjectStore, useful for testing.
// Failures can be injected per key. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	objects    map[string][]byte
	failPut    map[string]error
	failDelete map[string]error
	puts       int
	deletes    int
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:    make(map[string][]byte),
		failPut:    make(map[string]error),
		failDelete: make(map[string]error),
	}
}

func (m *MemoryStore) Put(ctx context.Context, key string, r io.Reader) error {
	m.mu.RLock()
	failErr := m.failPut[key]
	m.mu.RUnlock()
	if failErr != nil {
		return failErr
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.puts++
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failDelete[key]; err != nil {
		return err
	}
	delete(m.objects, key)
	m.deletes++
	return nil
}

// Validate always succeeds for the in-memory store.
func (m *MemoryStore) Validate(ctx context.Context) error {
	return nil
}

// FailPut makes every Put of key fail with err. A nil err clears the failure.
func (m *MemoryStore) FailPut(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failPut, key)
		return
	}
	m.failPut[key] = err
}

// FailDelete makes every Delete of key fail with err. A nil err clears the failure.
func (m *MemoryStore) FailDelete(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failDelete, key)
		return
	}
	m.failDelete[key] = err
}

// Get returns the content stored under key.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.objects))
}

// Calls returns the number of successful Put and Delete calls.
func (m *MemoryStore) Calls() (puts, deletes int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts, m.deletes
}
