package app

import (
	"sync"

	"github.com/dkeye/Duet/internal/domain"
	"github.com/rs/zerolog/log"
)

// Session is a snapshot of one connection's record.
type Session struct {
	ID          domain.ConnID
	ClientToken string
	Nick        string
	Room        domain.RoomID
	State       domain.SessionState
}

// Registry holds the explicit per-connection session records.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnID]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.ConnID]*Session),
	}
}

// Open records a fresh, unjoined connection. Reopening a known sid is a no-op.
func (r *Registry) Open(sid domain.ConnID, clientToken string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; ok {
		return
	}
	r.sessions[sid] = &Session{ID: sid, ClientToken: clientToken, State: domain.StateUnjoined}
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("opened session")
}

func (r *Registry) Get(sid domain.ConnID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.sessions[sid]; ok {
		return *s, true
	}
	return Session{}, false
}

func (r *Registry) SetState(sid domain.ConnID, state domain.SessionState) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return false
	}
	s.State = state
	return true
}

// Bind marks sid joined to room under nick.
func (r *Registry) Bind(sid domain.ConnID, room domain.RoomID, nick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return false
	}
	s.Room = room
	s.Nick = nick
	s.State = domain.StateJoined
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Msg("bound session")
	return true
}

// Unbind clears the room association and returns sid to Unjoined.
func (r *Registry) Unbind(sid domain.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sid]; ok {
		s.Room = ""
		s.State = domain.StateUnjoined
	}
}

func (r *Registry) Remove(sid domain.ConnID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Msg("removed session")
	return *s, true
}

// RoomOf returns the room sid is joined to.
func (r *Registry) RoomOf(sid domain.ConnID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sid]
	if !ok || s.Room == "" || s.State == domain.StateUnjoined || s.State == domain.StateJoining {
		return "", false
	}
	return s.Room, true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
