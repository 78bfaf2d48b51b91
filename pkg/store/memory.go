package store

import (
	"sort"
	"sync"

	"github.com/chatterd/chatterd/pkg/model"
)

// Memory provides an in-memory UserStore for tests. It mirrors the other
// backends' error handling.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*model.UserRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]*model.UserRecord)}
}

// Get retrieves a record by username. Returns (nil, nil) if not found.
func (s *Memory) Get(username string) (*model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Put inserts a new record. Returns ErrUserExists if the username is taken.
func (s *Memory) Put(rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[rec.Username]; ok {
		return ErrUserExists
	}
	cp := *rec
	s.users[rec.Username] = &cp
	return nil
}

// All returns every record, ordered by username.
func (s *Memory) All() ([]model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]model.UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Username < recs[j].Username })
	return recs, nil
}

// Close is a no-op for Memory.
func (s *Memory) Close() error {
	return nil
}
