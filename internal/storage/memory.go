package storage

import (
	"context"
	"sync"
)

// Memory is a process-local backend used when no database path is configured
// and in tests.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]AccountRecord
	progress map[string]ProgressRecord

	failWrites error
}

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]AccountRecord),
		progress: make(map[string]ProgressRecord),
	}
}

func (m *Memory) LoadAccount(ctx context.Context, id string) (AccountRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return AccountRecord{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.accounts[id]
	return record, ok, nil
}

func (m *Memory) SaveAccount(ctx context.Context, id string, record AccountRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	m.accounts[id] = record
	return nil
}

func (m *Memory) LoadProgress(ctx context.Context, id string) (ProgressRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return ProgressRecord{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.progress[id]
	if !ok {
		return ProgressRecord{}, false, nil
	}
	return record.Clone(), true, nil
}

func (m *Memory) SaveProgress(ctx context.Context, id string, record ProgressRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	m.progress[id] = record.Clone()
	return nil
}

// SetFailWrites makes every save return err until it is reset with nil.
func (m *Memory) SetFailWrites(err error) {
	m.mu.Lock()
	m.failWrites = err
	m.mu.Unlock()
}

func (m *Memory) Close() error {
	return nil
}
