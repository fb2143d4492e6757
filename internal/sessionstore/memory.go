package sessionstore

import (
	"context"
	"onlinemis-backend/internal/scrapers/onlinemis"
	"sync"
)

// Memory is a Store that lives as long as the process.
type Memory struct {
	mutex    sync.RWMutex
	sessions map[string]onlinemis.UpstreamSession
}

func NewMemory() *Memory {
	return &Memory{sessions: map[string]onlinemis.UpstreamSession{}}
}

func (m *Memory) Get(_ context.Context, id string) (onlinemis.UpstreamSession, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return onlinemis.UpstreamSession{}, ErrNotFound
	}
	return session, nil
}

func (m *Memory) Set(_ context.Context, id string, session onlinemis.UpstreamSession) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[id] = session
	return nil
}

func (m *Memory) Has(_ context.Context, id string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.sessions[id]
	return ok, nil
}

func (m *Memory) Destroy(_ context.Context, id string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, id)
	return nil
}
