package kv

import (
	"context"
	"sync"
)

type memoryEntry struct {
	value   []byte
	version int64
}

// Memory is an in-process Store used by tests and local development. It is
// safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: map[string]memoryEntry{}}
}

func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key.String()]
	if !ok {
		return nil, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)

	return &Entry{Value: value, Version: entry.version}, nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(key, value)
	return nil
}

func (m *Memory) Commit(_ context.Context, checks []Check, writes []Write) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, check := range checks {
		version := int64(0)
		if entry, ok := m.entries[check.Key.String()]; ok {
			version = entry.version
		}
		if version != check.Version {
			return false, nil
		}
	}

	for _, write := range writes {
		m.set(write.Key, write.Value)
	}

	return true, nil
}

func (m *Memory) set(key Key, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := m.entries[key.String()]
	entry.value = stored
	entry.version++
	m.entries[key.String()] = entry
}
