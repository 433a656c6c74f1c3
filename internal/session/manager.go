package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

const DefaultTTL = 30 * time.Minute

// Backend persists session snapshots.
type Backend interface {
	Load(id string) (*Snapshot, bool, error)
	Save(sn *Snapshot) error
	Delete(id string) error
}

// Purger is implemented by backends that can drop expired snapshots in bulk.
type Purger interface {
	Purge(before time.Time) (int, error)
}

// Manager owns live sessions. Sessions loaded from the backend are cached so
// concurrent requests of one session share a single Controller.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	backend  Backend
	ttl      time.Duration

	now func() time.Time
}

// NewManager returns a Manager. A nil backend keeps sessions in memory only.
func NewManager(b Backend, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		sessions: map[string]*Session{},
		backend:  b,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a new anonymous session.
func (m *Manager) Create() (*Session, error) {
	s, err := newSession(m.now().UTC())
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns a live session, consulting the backend on a cache miss.
// Expired sessions are destroyed and reported as missing.
func (m *Manager) Get(id string) (*Session, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, false
	}
	now := m.now().UTC()

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()

	if !ok && m.backend != nil {
		sn, found, err := m.backend.Load(id)
		if err != nil {
			glog.Warningf("session: load %s: %v", id, err)
			return nil, false
		}
		if !found {
			return nil, false
		}
		loaded, err := fromSnapshot(sn)
		if err != nil {
			glog.Warningf("session: decode %s: %v", id, err)
			return nil, false
		}
		m.mu.Lock()
		// Another request may have loaded it meanwhile; keep the first.
		if cur, exists := m.sessions[id]; exists {
			loaded = cur
		} else {
			m.sessions[id] = loaded
		}
		m.mu.Unlock()
		s, ok = loaded, true
	}
	if !ok {
		return nil, false
	}
	if now.Sub(s.LastSeen()) > m.ttl {
		m.Destroy(id)
		return nil, false
	}
	s.touch(now)
	return s, true
}

// GetOrCreate returns the session for id, or a fresh one.
func (m *Manager) GetOrCreate(id string) (*Session, bool, error) {
	if s, ok := m.Get(id); ok {
		return s, false, nil
	}
	s, err := m.Create()
	return s, true, err
}

// Save persists a session through the backend, if any.
func (m *Manager) Save(s *Session) error {
	if s == nil {
		return errors.New("session: nil session")
	}
	if m.backend == nil {
		return nil
	}
	sn, err := s.snapshot()
	if err != nil {
		return err
	}
	return m.backend.Save(sn)
}

// Destroy forgets a session everywhere.
func (m *Manager) Destroy(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	if m.backend != nil {
		if err := m.backend.Delete(id); err != nil {
			glog.Warningf("session: delete %s: %v", id, err)
		}
	}
}

// Sweep drops sessions idle for longer than the TTL and returns how many were removed.
func (m *Manager) Sweep() int {
	cutoff := m.now().UTC().Add(-m.ttl)
	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.LastSeen().Before(cutoff) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	n := len(expired)
	if p, ok := m.backend.(Purger); ok {
		purged, err := p.Purge(cutoff)
		if err != nil {
			glog.Warningf("session: purge: %v", err)
		}
		if purged > n {
			n = purged
		}
		return n
	}
	for _, id := range expired {
		if m.backend != nil {
			_ = m.backend.Delete(id)
		}
	}
	return n
}

// Len is the number of cached sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
