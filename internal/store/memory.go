package store

import (
	"bytes"
	"context"
	"sync"
)

// MemoryBackend is an in-process Backend for tests and throwaway runs.
// Failures can be injected per operation.
type MemoryBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool

	// Injected errors, returned instead of performing the operation.
	GetErr    error
	SetErr    error
	RemoveErr error
	ClearErr  error

	// Writes counts successful Set calls.
	Writes int
}

// NewMemoryBackend creates an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// FailWrites makes subsequent Set calls return err (nil restores writes).
func (m *MemoryBackend) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetErr = err
}

// FailReads makes subsequent Get calls return err (nil restores reads).
func (m *MemoryBackend) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErr = err
}

// WriteCount returns the number of successful writes.
func (m *MemoryBackend) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Writes
}

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return bytes.Clone(v), nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.SetErr != nil {
		return m.SetErr
	}
	m.data[key] = bytes.Clone(value)
	m.Writes++
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryBackend) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.data = make(map[string][]byte)
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
