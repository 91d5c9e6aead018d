package state

import (
	"context"
	"sync"

	"sidas/internal/asset"
)

// Memory is a process-local Store. Values are cloned on the way in and out.
type Memory struct {
	mu     sync.RWMutex
	states map[string]asset.State
}

func NewMemory() *Memory {
	return &Memory{states: make(map[string]asset.State)}
}

func (m *Memory) Get(_ context.Context, name string) (asset.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[name]
	if !ok {
		return asset.NeverState(), nil
	}
	return st.Clone(), nil
}

func (m *Memory) GetMany(ctx context.Context, names []string) (map[string]asset.State, error) {
	return getEach(ctx, m, names)
}

func (m *Memory) Put(_ context.Context, name string, st asset.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[name] = st.Clone()
	return nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, name)
	return nil
}

func (m *Memory) Close() error { return nil }
