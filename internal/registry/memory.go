package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// MemoryStore держит сессии в памяти под одним RWMutex. Ожидаемая
// конкуренция на запись низкая, поэтому грубая блокировка, а не по ключу.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	rooms    map[string]map[string]struct{} // room -> set of session ids

	maxSessions int              // 0 — без лимита
	now         func() time.Time // подменяется в тестах
}

func NewMemoryStore(maxSessions int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]domain.Session),
		rooms:       make(map[string]map[string]struct{}),
		maxSessions: maxSessions,
		now:         time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		return domain.ErrCapacity
	}

	m.sessions[s.ID] = *s
	m.indexLocked(s.Room, s.ID)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok && s.IsExpired(m.now()) {
		// ленивое удаление просроченной записи
		m.mu.Lock()
		if cur, still := m.sessions[id]; still && cur.IsExpired(m.now()) {
			m.evictLocked(cur)
		}
		m.mu.Unlock()
		ok = false
	}
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

// SetRoom переносит сессию между индексами комнат под одним write-lock,
// поэтому читатель не увидит промежуточного состояния.
func (m *MemoryStore) SetRoom(_ context.Context, id, room string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if s.IsExpired(m.now()) {
		m.evictLocked(s)
		return nil, domain.ErrSessionNotFound
	}

	if s.Room != room {
		m.unindexLocked(s.Room, id)
		m.indexLocked(room, id)
		s.Room = room
		m.sessions[id] = s
	}
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		m.evictLocked(s)
	}
	return nil
}

func (m *MemoryStore) ListByRoom(_ context.Context, room string) ([]domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	out := make([]domain.Session, 0, len(m.rooms[room]))
	for id := range m.rooms[room] {
		s, ok := m.sessions[id]
		if !ok || s.IsExpired(now) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Len возвращает число живых записей (включая ещё не вычищенные просроченные).
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) indexLocked(room, id string) {
	set, ok := m.rooms[room]
	if !ok {
		set = make(map[string]struct{})
		m.rooms[room] = set
	}
	set[id] = struct{}{}
}

func (m *MemoryStore) unindexLocked(room, id string) {
	if set, ok := m.rooms[room]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m.rooms, room)
		}
	}
}

func (m *MemoryStore) evictLocked(s domain.Session) {
	m.unindexLocked(s.Room, s.ID)
	delete(m.sessions, s.ID)
}
