package repository

import (
	"context"
	"sort"
	"sync"

	"assistant-engine/internal/domain"
)

// Memory is an in-process session store with the same conditional-write
// semantics as Client. It backs local runs of the CLI and the usecase tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]map[string]domain.Session
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]map[string]domain.Session)}
}

func (m *Memory) Get(_ context.Context, ownerScope, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ownerScope][id]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	return clone(s), nil
}

func (m *Memory) CreateOnly(_ context.Context, s domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	scope := m.sessions[s.OwnerScope]
	if scope == nil {
		scope = make(map[string]domain.Session)
		m.sessions[s.OwnerScope] = scope
	}
	if _, ok := scope[s.ID]; ok {
		return ErrConflict
	}
	scope[s.ID] = clone(s)
	return nil
}

func (m *Memory) Replace(_ context.Context, s domain.Session, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.OwnerScope][s.ID]
	if !ok || cur.Version != expectedVersion {
		return ErrConflict
	}
	m.sessions[s.OwnerScope][s.ID] = clone(s)
	return nil
}

func (m *Memory) QueryByOwnerScope(_ context.Context, ownerScope string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Session, 0, len(m.sessions[ownerScope]))
	for _, s := range m.sessions[ownerScope] {
		out = append(out, clone(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) QueryByID(_ context.Context, id string) ([]domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Session
	for _, scope := range m.sessions {
		if s, ok := scope[id]; ok {
			out = append(out, clone(s))
		}
	}
	return out, nil
}

func (m *Memory) Delete(_ context.Context, ownerScope, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions[ownerScope], id)
	return nil
}

func clone(s domain.Session) domain.Session {
	s.Turns = append([]domain.Turn(nil), s.Turns...)
	s.Attachments = append([]domain.Attachment(nil), s.Attachments...)
	return s
}
