package server

import (
	"errors"
	"log/slog"

	"github.com/chatterd/chatterd/pkg/protocol"
)

// ErrRecipientNotFound reports a private message whose recipient has no
// deliverable session. A recipient that disconnected but has not yet been
// reaped reports the same error.
var ErrRecipientNotFound = errors.New("server: recipient not found")

// Router fans frames out to sessions. It never blocks on a slow peer: a
// session that refuses a frame is torn down and delivery to the rest
// continues.
type Router struct {
	registry *Registry
	metrics  *Metrics
}

// NewRouter creates a router over the given registry.
func NewRouter(registry *Registry, metrics *Metrics) *Router {
	return &Router{registry: registry, metrics: metrics}
}

// Broadcast delivers msg to every online session, the sender included. Dead
// sessions found along the way are removed from the registry; their
// connections are reaped when their writers exit.
func (rt *Router) Broadcast(msg *protocol.ServerMessage) {
	rt.metrics.BroadcastsTotal.Inc()
	for _, s := range rt.registry.all() {
		if !s.send(msg) {
			rt.dropDead(s)
		}
	}
}

// SendPrivate delivers msg to a single username. An unknown recipient and a
// recipient discovered dead at delivery time both return
// ErrRecipientNotFound; the sender cannot tell the cases apart.
func (rt *Router) SendPrivate(to string, msg *protocol.ServerMessage) error {
	s := rt.registry.Lookup(to)
	if s == nil {
		return ErrRecipientNotFound
	}
	if !s.send(msg) {
		rt.dropDead(s)
		return ErrRecipientNotFound
	}
	rt.metrics.PrivatesTotal.Inc()
	return nil
}

// ListUsers returns the sorted online usernames.
func (rt *Router) ListUsers() []string {
	return rt.registry.Snapshot()
}

func (rt *Router) dropDead(s *Session) {
	rt.metrics.DeliveryFailures.Inc()
	slog.Warn("dropping unresponsive session",
		"session", s.ID, "user", s.Username, "remote", s.Remote)
	rt.registry.leaveSession(s)
	rt.metrics.SessionsActive.Set(float64(rt.registry.Count()))
}
