package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTryJoinExactlyOneWinner(t *testing.T) {
	r := NewRegistry()

	const attempts = 16
	var wg sync.WaitGroup
	errs := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- r.TryJoin(newSession("alice", fmt.Sprintf("peer-%d", i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	won := 0
	for err := range errs {
		if err == nil {
			won++
		} else if err != ErrAlreadyOnline {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("got %d successful joins, want exactly 1", won)
	}
	if r.Count() != 1 {
		t.Fatalf("registry count = %d, want 1", r.Count())
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	if err := r.TryJoin(newSession("alice", "a")); err != nil {
		t.Fatal(err)
	}

	r.Leave("alice")
	r.Leave("alice")
	r.Leave("never-joined")

	if r.Count() != 0 {
		t.Fatalf("registry count = %d, want 0", r.Count())
	}
}

func TestRejoinAfterLeave(t *testing.T) {
	r := NewRegistry()
	if err := r.TryJoin(newSession("alice", "a")); err != nil {
		t.Fatal(err)
	}
	r.Leave("alice")
	if err := r.TryJoin(newSession("alice", "a2")); err != nil {
		t.Fatalf("rejoin after leave: %v", err)
	}
}

func TestLeaveSessionComparesIdentity(t *testing.T) {
	r := NewRegistry()
	old := newSession("alice", "a1")
	if err := r.TryJoin(old); err != nil {
		t.Fatal(err)
	}
	r.Leave("alice")

	fresh := newSession("alice", "a2")
	if err := r.TryJoin(fresh); err != nil {
		t.Fatal(err)
	}

	// Late teardown of the dead session must not evict the new login.
	r.leaveSession(old)

	if got := r.Lookup("alice"); got != fresh {
		t.Fatal("fresh session was evicted by stale teardown")
	}
}

func TestSnapshotSorted(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"carol", "alice", "bob"} {
		if err := r.TryJoin(newSession(name, name)); err != nil {
			t.Fatal(err)
		}
	}

	want := []string{"alice", "bob", "carol"}
	if diff := cmp.Diff(want, r.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}
