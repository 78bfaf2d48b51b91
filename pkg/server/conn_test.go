package server

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chatterd/chatterd/pkg/protocol"
	"github.com/chatterd/chatterd/pkg/store"
)

const recvTimeout = 3 * time.Second

func startTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Listen = "127.0.0.1:0"
	srv := New(cfg, store.NewMemory())
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

type testClient struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
}

func dialTest(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testClient{t: t, conn: conn, br: bufio.NewReader(conn)}
}

func (c *testClient) readPayload() []byte {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(recvTimeout))
	payload, err := protocol.ReadFrame(c.br)
	if err != nil {
		c.t.Fatalf("read frame: %v", err)
	}
	return payload
}

func (c *testClient) recv() *protocol.ServerMessage {
	c.t.Helper()
	msg, err := protocol.DecodeServerMessage(c.readPayload())
	if err != nil {
		c.t.Fatalf("decode server message: %v", err)
	}
	return msg
}

func (c *testClient) recvAuth() *protocol.AuthResponse {
	c.t.Helper()
	resp, err := protocol.DecodeAuthResponse(c.readPayload())
	if err != nil {
		c.t.Fatalf("decode auth response: %v", err)
	}
	return resp
}

func (c *testClient) write(v any) {
	c.t.Helper()
	if err := protocol.WriteFrame(c.conn, v); err != nil {
		c.t.Fatalf("write frame: %v", err)
	}
}

// auth reads the welcome notice, sends one auth request, and returns the
// server's verdict.
func (c *testClient) auth(action, username, password string) *protocol.AuthResponse {
	c.t.Helper()
	if msg := c.recv(); msg.Type != protocol.TypeSystem {
		c.t.Fatalf("expected welcome system frame, got %+v", msg)
	}
	c.write(&protocol.AuthRequest{Action: action, Username: username, Password: password})
	return c.recvAuth()
}

// register authenticates and consumes the client's own join notice so tests
// start from a quiet stream.
func (c *testClient) register(username string) {
	c.t.Helper()
	if resp := c.auth(protocol.ActionRegister, username, username+"-pw"); resp.Status != protocol.StatusOK {
		c.t.Fatalf("register %s: %+v", username, resp)
	}
	if msg := c.recv(); msg.From != systemSender {
		c.t.Fatalf("expected join notice, got %+v", msg)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	srv := startTestServer(t)

	c1 := dialTest(t, srv.Addr())
	resp := c1.auth(protocol.ActionRegister, "alice", "pw")
	if resp.Status != protocol.StatusOK || resp.Message != "registered" {
		t.Fatalf("register verdict = %+v", resp)
	}
	c1.conn.Close()

	// Wait for the server to reap the session before logging back in.
	waitFor(t, func() bool { return srv.registry.Count() == 0 })

	c2 := dialTest(t, srv.Addr())
	resp = c2.auth(protocol.ActionLogin, "alice", "pw")
	if resp.Status != protocol.StatusOK || resp.Message != "welcome" {
		t.Fatalf("login verdict = %+v", resp)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	srv := startTestServer(t)

	c := dialTest(t, srv.Addr())
	c.register("alice")
	c.conn.Close()

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong"},
		{"nobody", "pw"},
	} {
		c := dialTest(t, srv.Addr())
		resp := c.auth(protocol.ActionLogin, tc.user, tc.pass)
		if resp.Status != protocol.StatusError || resp.Message != "invalid_credentials" {
			t.Errorf("login %s: %+v", tc.user, resp)
		}
	}
}

func TestDuplicateRegistration(t *testing.T) {
	srv := startTestServer(t)

	c1 := dialTest(t, srv.Addr())
	c1.register("alice")

	c2 := dialTest(t, srv.Addr())
	resp := c2.auth(protocol.ActionRegister, "alice", "other")
	if resp.Status != protocol.StatusError || resp.Message != "username_taken" {
		t.Fatalf("duplicate register verdict = %+v", resp)
	}
}

func TestSecondLoginRefused(t *testing.T) {
	srv := startTestServer(t)

	c1 := dialTest(t, srv.Addr())
	c1.register("alice")

	// Credentials verify, so the ok frame arrives first; the join check then
	// refuses the session with its own error frame.
	c2 := dialTest(t, srv.Addr())
	resp := c2.auth(protocol.ActionLogin, "alice", "alice-pw")
	if resp.Status != protocol.StatusOK {
		t.Fatalf("login verdict = %+v", resp)
	}
	refusal := c2.recvAuth()
	if refusal.Status != protocol.StatusError || refusal.Message != "already_logged_in" {
		t.Fatalf("second login verdict = %+v", refusal)
	}

	// The original session is untouched.
	c1.write(&protocol.ClientMessage{Type: protocol.TypeList})
	if msg := c1.recv(); len(msg.Users) != 1 || msg.Users[0] != "alice" {
		t.Fatalf("list after refused duplicate = %+v", msg)
	}
}

func TestBroadcastReachesEveryoneIncludingSender(t *testing.T) {
	srv := startTestServer(t)

	alice := dialTest(t, srv.Addr())
	alice.register("alice")
	bob := dialTest(t, srv.Addr())
	bob.register("bob")

	// alice still has bob's join notice queued.
	if msg := alice.recv(); msg.From != systemSender {
		t.Fatalf("expected bob's join notice, got %+v", msg)
	}

	alice.write(&protocol.ClientMessage{Type: protocol.TypeMessage, Text: "hello all"})

	for _, c := range []*testClient{alice, bob} {
		msg := c.recv()
		if msg.Type != protocol.TypeBroadcast || msg.From != "alice" || msg.Text != "hello all" {
			t.Errorf("got %+v", msg)
		}
	}
}

func TestPrivateMessage(t *testing.T) {
	srv := startTestServer(t)

	alice := dialTest(t, srv.Addr())
	alice.register("alice")
	bob := dialTest(t, srv.Addr())
	bob.register("bob")
	alice.recv() // bob's join notice

	alice.write(&protocol.ClientMessage{Type: protocol.TypePrivate, To: "bob", Text: "psst"})
	msg := bob.recv()
	if msg.Type != protocol.TypePrivate || msg.From != "alice" || msg.Text != "psst" {
		t.Fatalf("bob got %+v", msg)
	}

	alice.write(&protocol.ClientMessage{Type: protocol.TypePrivate, To: "carol", Text: "psst"})
	msg = alice.recv()
	if msg.Type != protocol.TypeSystem || msg.Text != "user carol not found" {
		t.Fatalf("alice got %+v", msg)
	}
}

func TestListUsers(t *testing.T) {
	srv := startTestServer(t)

	bob := dialTest(t, srv.Addr())
	bob.register("bob")
	alice := dialTest(t, srv.Addr())
	alice.register("alice")
	bob.recv() // alice's join notice

	bob.write(&protocol.ClientMessage{Type: protocol.TypeList})
	msg := bob.recv()
	if msg.Type != protocol.TypeList {
		t.Fatalf("got %+v", msg)
	}
	if diff := cmp.Diff([]string{"alice", "bob"}, msg.Users); diff != "" {
		t.Errorf("user list mismatch (-want +got):\n%s", diff)
	}
}

func TestUnknownTypeIsNonFatal(t *testing.T) {
	srv := startTestServer(t)

	c := dialTest(t, srv.Addr())
	c.register("alice")

	c.write(&protocol.ClientMessage{Type: "dance"})
	if msg := c.recv(); msg.Type != protocol.TypeSystem || msg.Text != "unknown_type" {
		t.Fatalf("got %+v", msg)
	}

	// Connection still works afterwards.
	c.write(&protocol.ClientMessage{Type: protocol.TypeList})
	if msg := c.recv(); msg.Type != protocol.TypeList {
		t.Fatalf("got %+v", msg)
	}
}

func TestQuitBroadcastsDeparture(t *testing.T) {
	srv := startTestServer(t)

	alice := dialTest(t, srv.Addr())
	alice.register("alice")
	bob := dialTest(t, srv.Addr())
	bob.register("bob")

	bob.write(&protocol.ClientMessage{Type: protocol.TypeQuit})

	alice.recv() // bob's join notice
	msg := alice.recv()
	if msg.From != systemSender || msg.Text != "--- bob has left the chat ---" {
		t.Fatalf("got %+v", msg)
	}
	waitFor(t, func() bool { return srv.registry.Count() == 1 })
}

func TestAbruptDisconnectBroadcastsDeparture(t *testing.T) {
	srv := startTestServer(t)

	alice := dialTest(t, srv.Addr())
	alice.register("alice")
	bob := dialTest(t, srv.Addr())
	bob.register("bob")
	alice.recv() // bob's join notice

	bob.conn.Close()

	msg := alice.recv()
	if msg.From != systemSender || msg.Text != "--- bob has left the chat ---" {
		t.Fatalf("got %+v", msg)
	}
}

func TestIncompleteAuthPayload(t *testing.T) {
	srv := startTestServer(t)

	c := dialTest(t, srv.Addr())
	if msg := c.recv(); msg.Type != protocol.TypeSystem {
		t.Fatalf("expected welcome frame, got %+v", msg)
	}
	c.write(&protocol.AuthRequest{Action: protocol.ActionLogin, Username: "alice"})

	if msg := c.recv(); msg.Type != protocol.TypeSystem || msg.Text != "Invalid auth payload" {
		t.Fatalf("got %+v", msg)
	}
	// Server closes the connection after the notice.
	_ = c.conn.SetReadDeadline(time.Now().Add(recvTimeout))
	if _, err := protocol.ReadFrame(c.br); err == nil {
		t.Fatal("expected connection to close")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(recvTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
