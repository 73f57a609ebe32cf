package store

import (
	"fmt"
	"sync"
	"time"
)

type MemorySessionStore struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		workspaces: make(map[string]*Workspace),
	}
}

func (s *MemorySessionStore) Create(ws *Workspace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workspaces[ws.ID]; exists {
		return fmt.Errorf("session %s already exists", ws.ID)
	}
	s.workspaces[ws.ID] = ws
	return nil
}

func (s *MemorySessionStore) Get(id string) (*Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[id]
	return ws, ok
}

func (s *MemorySessionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workspaces[id]
	delete(s.workspaces, id)
	return ok
}

// Sweep removes workspaces with no activity since idleSince.
func (s *MemorySessionStore) Sweep(idleSince time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ws := range s.workspaces {
		if ws.idleSince(idleSince) {
			delete(s.workspaces, id)
			removed++
		}
	}
	return removed
}

func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}
