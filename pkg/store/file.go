package store

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/chatterd/chatterd/pkg/model"
)

// fileRecord is the on-disk shape of one user: hex-encoded salt and hash.
type fileRecord struct {
	Salt string `json:"salt"`
	Hash string `json:"hash"`
}

// FileStore persists users in a single JSON file mapping username to
// {salt, hash}. The file is read once at open and rewritten in full after
// every insert. A missing file is an empty store. Crash atomicity of the
// rewrite is out of scope; the file survives clean process restarts.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	users map[string]*model.UserRecord
}

// OpenFile loads (or initializes) a file-backed store at path.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{
		path:  path,
		users: make(map[string]*model.UserRecord),
	}

	data, err := os.ReadFile(path) //nolint:gosec // path from server config
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}

	var raw map[string]fileRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}
	for username, fr := range raw {
		salt, err := hex.DecodeString(fr.Salt)
		if err != nil {
			return nil, fmt.Errorf("store: user %q: decode salt: %w", username, err)
		}
		hash, err := hex.DecodeString(fr.Hash)
		if err != nil {
			return nil, fmt.Errorf("store: user %q: decode hash: %w", username, err)
		}
		s.users[username] = &model.UserRecord{Username: username, Salt: salt, Hash: hash}
	}
	return s, nil
}

// Get retrieves a record by username. Returns (nil, nil) if not found.
func (s *FileStore) Get(username string) (*model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[username]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// Put inserts a new record and rewrites the backing file.
func (s *FileStore) Put(rec *model.UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[rec.Username]; ok {
		return ErrUserExists
	}

	cp := *rec
	s.users[rec.Username] = &cp
	if err := s.save(); err != nil {
		delete(s.users, rec.Username)
		return err
	}
	return nil
}

// All returns every record, ordered by username.
func (s *FileStore) All() ([]model.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]model.UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		recs = append(recs, *rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Username < recs[j].Username })
	return recs, nil
}

// Close is a no-op for FileStore; every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}

// save rewrites the whole file. Caller holds the write lock.
func (s *FileStore) save() error {
	raw := make(map[string]fileRecord, len(s.users))
	for username, rec := range s.users {
		raw[username] = fileRecord{
			Salt: hex.EncodeToString(rec.Salt),
			Hash: hex.EncodeToString(rec.Hash),
		}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal users: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("store: write %s: %w", s.path, err)
	}
	return nil
}
