package server

import (
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/chatterd/chatterd/pkg/protocol"
)

// outboundBuffer is the per-session outbound queue depth. A peer that falls
// this many frames behind is treated as dead.
const outboundBuffer = 64

// Session is the live, registered state of one authenticated connection.
// The router only ever enqueues onto the outbound channel; a dedicated
// writer goroutine owns the raw connection.
type Session struct {
	ID       string // ulid, for log correlation
	Username string
	Remote   string

	out       chan *protocol.ServerMessage
	closed    atomic.Bool
	closeOnce sync.Once
}

func newSession(username, remote string) *Session {
	return &Session{
		ID:       ulid.Make().String(),
		Username: username,
		Remote:   remote,
		out:      make(chan *protocol.ServerMessage, outboundBuffer),
	}
}

// send enqueues a frame without blocking. False means the session is closed
// or the peer is too far behind; the caller treats both as a dead peer.
func (s *Session) send(msg *protocol.ServerMessage) (ok bool) {
	// The channel may be closed between the flag check and the send.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if s.closed.Load() {
		return false
	}
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

// outbound returns the frame queue consumed by the session's writer.
// Delivery order per session is the order frames were enqueued.
func (s *Session) outbound() <-chan *protocol.ServerMessage {
	return s.out
}

// close marks the session dead and closes the outbound channel, stopping the
// writer. Idempotent.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.out)
	})
}
