package store

import (
	"context"
	"sync"

	"patientflow/internal/verification/models"
	"patientflow/internal/verification/ports"
)

type memoryEntry struct {
	patient *models.PatientIdentity
	token   models.SessionToken
}

// Memory is an in-process Factory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

func (m *Memory) Scope(scope string) ports.SessionStore {
	return &MemoryScope{parent: m, scope: scope}
}

// MemoryScope is the SessionStore for one scope of a Memory.
type MemoryScope struct {
	parent *Memory
	scope  string
}

// Save replaces whatever the scope held, including a previous token.
func (s *MemoryScope) Save(_ context.Context, identity models.PatientIdentity, token models.SessionToken) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	p := identity
	s.parent.entries[s.scope] = memoryEntry{patient: &p, token: token}
	return nil
}

func (s *MemoryScope) Load(_ context.Context) (*models.PatientIdentity, models.SessionToken, error) {
	s.parent.mu.RLock()
	defer s.parent.mu.RUnlock()
	e, ok := s.parent.entries[s.scope]
	if !ok || e.patient == nil {
		return nil, e.token, nil
	}
	p := *e.patient
	return &p, e.token, nil
}

func (s *MemoryScope) Clear(_ context.Context) error {
	s.parent.mu.Lock()
	defer s.parent.mu.Unlock()
	delete(s.parent.entries, s.scope)
	return nil
}
