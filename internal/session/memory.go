package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Memory is a process-local Store. Contents are lost on restart.
type Memory struct {
	mu     sync.RWMutex
	maps   map[string][]MapRecord
	states map[string]State
}

func NewMemory() *Memory {
	return &Memory{
		maps:   make(map[string][]MapRecord),
		states: make(map[string]State),
	}
}

func (m *Memory) Put(_ context.Context, rec MapRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[rec.UserID] = append(m.maps[rec.UserID], rec)
	return nil
}

func (m *Memory) List(_ context.Context, userID string) ([]MapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MapRecord{}, m.maps[userID]...), nil
}

func (m *Memory) Last(_ context.Context, userID string) (MapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.maps[userID]
	if len(recs) == 0 {
		return MapRecord{}, ErrNotFound
	}
	return recs[len(recs)-1], nil
}

func (m *Memory) Get(_ context.Context, userID string, id uuid.UUID) (MapRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.maps[userID] {
		if rec.ID == id {
			return rec, nil
		}
	}
	return MapRecord{}, ErrNotFound
}

func (m *Memory) GetState(_ context.Context, userID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyState(m.states[userID]), nil
}

func (m *Memory) SetState(_ context.Context, userID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = copyState(st)
	return nil
}

func (m *Memory) ClearState(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

func (m *Memory) Close() error { return nil }
