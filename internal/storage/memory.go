package storage

import (
	"context"
	"encoding/json"
	"maps"
	"sync"
)

// Memory is an in-process Area. It backs ephemeral runs and tests; the
// failure hooks let callers simulate an unavailable tier.
type Memory struct {
	name string

	mu     sync.Mutex
	data   map[string]json.RawMessage
	writes []map[string]json.RawMessage

	// GetErr, SetErr and ClearErr, when set, are returned by the matching
	// operation instead of touching the data.
	GetErr   error
	SetErr   error
	ClearErr error

	watchers watchers
}

// NewMemory returns an empty in-memory area reporting the given name.
func NewMemory(name string) *Memory {
	return &Memory{name: name, data: make(map[string]json.RawMessage)}
}

func (m *Memory) Name() string { return m.name }

func (m *Memory) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	out := make(map[string]json.RawMessage)
	if keys == nil {
		maps.Copy(out, m.data)
		return out, nil
	}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *Memory) Set(ctx context.Context, items map[string]json.RawMessage) error {
	m.mu.Lock()
	if m.SetErr != nil {
		m.mu.Unlock()
		return m.SetErr
	}
	before := maps.Clone(m.data)
	maps.Copy(m.data, items)
	m.writes = append(m.writes, maps.Clone(items))
	after := maps.Clone(m.data)
	m.mu.Unlock()

	m.watchers.emit(m.name, diff(before, after))
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	if m.ClearErr != nil {
		m.mu.Unlock()
		return m.ClearErr
	}
	before := m.data
	m.data = make(map[string]json.RawMessage)
	m.mu.Unlock()

	m.watchers.emit(m.name, diff(before, nil))
	return nil
}

func (m *Memory) Watch(fn func(Change)) func() {
	return m.watchers.add(fn)
}

// Writes returns every successful Set payload in order.
func (m *Memory) Writes() []map[string]json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]json.RawMessage, len(m.writes))
	copy(out, m.writes)
	return out
}

// Put seeds a value without recording a write or emitting a change.
func (m *Memory) Put(key string, value json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}
