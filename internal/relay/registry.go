package relay

import (
	"sync"

	"github.com/sirupsen/logrus"

	"veery/internal/metrics"
)

// Session is one open realtime connection. Deliver must not block
// indefinitely; an error marks the session broken and removes it from the
// registry.
type Session interface {
	Deliver(v any) error
}

// Registry tracks the currently open sessions and fans payloads out to them.
// It replaces the hub goroutine with an owned, lockable set so the relay can
// hold it directly and broadcasts can run against a snapshot while sessions
// come and go.
type Registry struct {
	mu       sync.Mutex
	sessions map[Session]struct{}
	log      logrus.FieldLogger
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		sessions: make(map[Session]struct{}),
		log:      log,
	}
}

func (r *Registry) Register(s Session) {
	r.mu.Lock()
	r.sessions[s] = struct{}{}
	r.mu.Unlock()
	metrics.OpenSessions.Inc()
}

func (r *Registry) Unregister(s Session) {
	r.mu.Lock()
	_, ok := r.sessions[s]
	delete(r.sessions, s)
	r.mu.Unlock()
	if ok {
		metrics.OpenSessions.Dec()
	}
}

// Len reports the number of currently open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// BroadcastExcept delivers v to every session registered at the time of the
// call, except origin. A failed delivery drops that session and moves on;
// nothing is retried and no failure reaches the sender.
func (r *Registry) BroadcastExcept(origin Session, v any) {
	r.mu.Lock()
	peers := make([]Session, 0, len(r.sessions))
	for s := range r.sessions {
		if s != origin {
			peers = append(peers, s)
		}
	}
	r.mu.Unlock()

	for _, s := range peers {
		if err := s.Deliver(v); err != nil {
			r.log.WithError(err).Warn("dropping session after failed delivery")
			metrics.DeliveriesDropped.Inc()
			r.Unregister(s)
		}
	}
}
