// Package auth implements credential registration and verification for
// chatterd users.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/chatterd/chatterd/pkg/model"
	"github.com/chatterd/chatterd/pkg/store"
)

const saltLength = 16

var (
	// ErrUsernameTaken reports a registration for an existing username.
	ErrUsernameTaken = errors.New("auth: username taken")

	// ErrInvalidCredentials reports a login with an unknown username or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Authenticator validates and creates credentials against a user store.
// The registration check-and-insert is serialized through one mutex, so two
// concurrent registrations of the same username cannot both succeed.
type Authenticator struct {
	mu    sync.Mutex
	store store.UserStore
}

// New creates an Authenticator over a user store.
func New(st store.UserStore) *Authenticator {
	return &Authenticator{store: st}
}

// HashPassword hashes a password using Argon2id with a per-user salt.
func HashPassword(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
}

// Register creates a new user record. Plaintext passwords are hashed
// immediately and never stored or logged.
func (a *Authenticator) Register(username, password string) (*model.UserRecord, error) {
	if err := model.ValidateUsername(username); err != nil {
		return nil, fmt.Errorf("auth: register: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	existing, err := a.store.Get(username)
	if err != nil {
		return nil, fmt.Errorf("auth: register: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("auth: generate salt: %w", err)
	}

	rec := &model.UserRecord{
		Username:  username,
		Salt:      salt,
		Hash:      HashPassword(password, salt),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.store.Put(rec); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("auth: register: %w", err)
	}
	return rec, nil
}

// Login verifies a username/password pair against the stored record using a
// constant-time hash comparison.
func (a *Authenticator) Login(username, password string) error {
	rec, err := a.store.Get(username)
	if err != nil {
		return fmt.Errorf("auth: login: %w", err)
	}
	if rec == nil {
		return ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare(HashPassword(password, rec.Salt), rec.Hash) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
