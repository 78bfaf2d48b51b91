package server

import (
	"errors"
	"sort"
	"sync"
)

// ErrAlreadyOnline reports a join for a username that already has a live
// session. The existing session keeps the name; the new login is refused.
var ErrAlreadyOnline = errors.New("server: user already online")

// Registry is the authoritative mapping of online username to session.
// Membership changes are atomic: no reader ever observes a partially
// inserted or removed entry, and the lock is never held across network I/O.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// TryJoin atomically checks that the session's username is absent and
// inserts it. At most one session per username can ever be registered.
func (r *Registry) TryJoin(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.Username]; ok {
		return ErrAlreadyOnline
	}
	r.sessions[s.Username] = s
	return nil
}

// Leave removes the username's session if present and closes it. Removing
// an absent username is a no-op, not an error.
func (r *Registry) Leave(username string) {
	r.mu.Lock()
	s := r.sessions[username]
	delete(r.sessions, username)
	r.mu.Unlock()

	if s != nil {
		s.close()
	}
}

// leaveSession removes a specific session. Unlike Leave it compares
// identity, so tearing down a dead session cannot evict a fresh login that
// reused the username.
func (r *Registry) leaveSession(s *Session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.Username]; ok && cur == s {
		delete(r.sessions, s.Username)
	}
	r.mu.Unlock()

	s.close()
}

// Lookup returns the session for a username, or nil.
func (r *Registry) Lookup(username string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[username]
}

// Snapshot returns the online usernames as of a single consistent instant,
// sorted for stable output.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// all returns a snapshot of the live sessions for fan-out.
func (r *Registry) all() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	return sessions
}
