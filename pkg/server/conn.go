package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/chatterd/chatterd/pkg/auth"
	"github.com/chatterd/chatterd/pkg/protocol"
)

// systemSender is the sender label on join/leave notices.
const systemSender = "SYS"

// handleConn drives one connection from accept to teardown: welcome frame,
// auth handshake, registry join, then the read loop. Any error here affects
// only this connection.
func (s *Server) handleConn(t frameTransport) {
	s.metrics.ConnectionsTotal.Inc()
	s.metrics.ConnectionsActive.Inc()
	s.trackConn(t)
	defer func() {
		s.untrackConn(t)
		s.metrics.ConnectionsActive.Dec()
		_ = t.Close()
	}()

	username, err := s.authenticate(t)
	if err != nil {
		slog.Debug("auth handshake ended", "remote", t.RemoteAddr(), "error", err)
		return
	}

	sess := newSession(username, t.RemoteAddr())
	if err := s.registry.TryJoin(sess); err != nil {
		_ = writeMessage(t, &protocol.AuthResponse{
			Status: protocol.StatusError, Message: "already_logged_in",
		})
		return
	}
	s.metrics.SessionsActive.Set(float64(s.registry.Count()))

	log := slog.With("session", sess.ID, "user", username, "remote", sess.Remote)
	log.Info("user joined")

	defer func() {
		s.registry.leaveSession(sess)
		s.metrics.SessionsActive.Set(float64(s.registry.Count()))
		s.router.Broadcast(protocol.BroadcastEvent(systemSender,
			fmt.Sprintf("--- %s has left the chat ---", username)))
		log.Info("user left")
	}()

	// Writer owns the transport's write side from here on; everything this
	// connection receives goes through the session queue.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writePump(t, sess)
	}()

	s.router.Broadcast(protocol.BroadcastEvent(systemSender,
		fmt.Sprintf("--- %s has joined the chat ---", username)))

	s.readLoop(t, sess, log)

	// Stop the writer before the deferred close so teardown never races a
	// write in flight.
	s.registry.leaveSession(sess)
	<-writerDone
}

// authenticate runs the handshake: welcome notice, one auth frame, verdict.
// On success the ok response has already been sent and the username is
// returned. Every failure path sends its reply and returns an error.
func (s *Server) authenticate(t frameTransport) (string, error) {
	if err := writeMessage(t, protocol.SystemNotice("WELCOME: send login/register request")); err != nil {
		return "", err
	}

	payload, err := t.ReadPayload()
	if err != nil {
		return "", err
	}
	req, err := protocol.DecodeAuthRequest(payload)
	if err != nil {
		return "", err
	}
	if req.Action == "" || req.Username == "" || req.Password == "" {
		_ = writeMessage(t, protocol.SystemNotice("Invalid auth payload"))
		return "", errors.New("incomplete auth payload")
	}

	switch req.Action {
	case protocol.ActionRegister:
		if _, err := s.auth.Register(req.Username, req.Password); err != nil {
			s.metrics.AuthFailed.Inc()
			msg := "invalid_credentials"
			if errors.Is(err, auth.ErrUsernameTaken) {
				msg = "username_taken"
			}
			_ = writeMessage(t, &protocol.AuthResponse{Status: protocol.StatusError, Message: msg})
			return "", err
		}
		s.metrics.AuthSuccess.Inc()
		if err := writeMessage(t, &protocol.AuthResponse{Status: protocol.StatusOK, Message: "registered"}); err != nil {
			return "", err
		}
	case protocol.ActionLogin:
		if err := s.auth.Login(req.Username, req.Password); err != nil {
			s.metrics.AuthFailed.Inc()
			_ = writeMessage(t, &protocol.AuthResponse{Status: protocol.StatusError, Message: "invalid_credentials"})
			return "", err
		}
		s.metrics.AuthSuccess.Inc()
		if err := writeMessage(t, &protocol.AuthResponse{Status: protocol.StatusOK, Message: "welcome"}); err != nil {
			return "", err
		}
	default:
		_ = writeMessage(t, protocol.SystemNotice("Unknown action"))
		return "", fmt.Errorf("unknown auth action %q", req.Action)
	}

	return req.Username, nil
}

// readLoop dispatches client frames until the peer disconnects, quits, or
// sends something unreadable. There is no read deadline: a peer that stalls
// holds its goroutine until the socket errors.
func (s *Server) readLoop(t frameTransport, sess *Session, log *slog.Logger) {
	for {
		payload, err := t.ReadPayload()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Debug("read ended", "error", err)
			}
			return
		}
		msg, err := protocol.DecodeClientMessage(payload)
		if err != nil {
			log.Warn("malformed frame, closing", "error", err)
			return
		}

		switch msg.Type {
		case protocol.TypeMessage:
			s.router.Broadcast(protocol.BroadcastEvent(sess.Username, msg.Text))
		case protocol.TypePrivate:
			if err := s.router.SendPrivate(msg.To, protocol.PrivateEvent(sess.Username, msg.Text)); err != nil {
				sess.send(protocol.SystemNotice(fmt.Sprintf("user %s not found", msg.To)))
			}
		case protocol.TypeList:
			sess.send(protocol.UserList(s.router.ListUsers()))
		case protocol.TypeQuit:
			return
		default:
			sess.send(protocol.SystemNotice("unknown_type"))
		}
	}
}

// writePump drains the session queue onto the transport in order. A failed
// write tears the session down; frames still queued are dropped.
func (s *Server) writePump(t frameTransport, sess *Session) {
	for msg := range sess.outbound() {
		if err := writeMessage(t, msg); err != nil {
			s.registry.leaveSession(sess)
			s.metrics.SessionsActive.Set(float64(s.registry.Count()))
			return
		}
	}
}

func writeMessage(t frameTransport, v any) error {
	payload, err := protocol.Marshal(v)
	if err != nil {
		return err
	}
	return t.WritePayload(payload)
}
