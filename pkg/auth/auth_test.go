package auth_test

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/chatterd/chatterd/pkg/auth"
	"github.com/chatterd/chatterd/pkg/store"
)

func TestRegisterLoginScenario(t *testing.T) {
	t.Parallel()

	a := auth.New(store.NewMemory())

	if _, err := a.Register("alice", "pw1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := a.Login("alice", "pw1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if _, err := a.Register("alice", "pw2"); !errors.Is(err, auth.ErrUsernameTaken) {
		t.Fatalf("second Register = %v, want ErrUsernameTaken", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	a := auth.New(store.NewMemory())

	if _, err := a.Register("alice", "pw1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := a.Login("alice", "wrong"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("Login wrong password = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownUser(t *testing.T) {
	t.Parallel()

	a := auth.New(store.NewMemory())

	if err := a.Login("nobody", "pw"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("Login unknown user = %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterInvalidUsername(t *testing.T) {
	t.Parallel()

	a := auth.New(store.NewMemory())

	if _, err := a.Register("bad name", "pw"); err == nil {
		t.Fatal("Register with invalid username succeeded, want error")
	}
}

func TestNoPlaintextStored(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	a := auth.New(st)

	const password = "hunter2-hunter2"
	if _, err := a.Register("alice", password); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec, err := st.Get("alice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if bytes.Contains(rec.Hash, []byte(password)) || bytes.Contains(rec.Salt, []byte(password)) {
		t.Fatal("stored record contains the plaintext password")
	}
	if len(rec.Salt) == 0 {
		t.Fatal("stored record has an empty salt")
	}
}

func TestSaltsDiffer(t *testing.T) {
	t.Parallel()

	st := store.NewMemory()
	a := auth.New(st)

	if _, err := a.Register("alice", "same-password"); err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	if _, err := a.Register("bob", "same-password"); err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	ra, _ := st.Get("alice")
	rb, _ := st.Get("bob")
	if bytes.Equal(ra.Salt, rb.Salt) {
		t.Fatal("two registrations produced the same salt")
	}
	if bytes.Equal(ra.Hash, rb.Hash) {
		t.Fatal("same password hashed to the same value across users")
	}
}

func TestConcurrentRegisterSameUsername(t *testing.T) {
	t.Parallel()

	a := auth.New(store.NewMemory())

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = a.Register("alice", "pw")
		}(i)
	}
	wg.Wait()

	var succeeded, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, auth.ErrUsernameTaken):
			taken++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("successful registrations = %d, want exactly 1", succeeded)
	}
	if taken != attempts-1 {
		t.Fatalf("ErrUsernameTaken count = %d, want %d", taken, attempts-1)
	}
}
