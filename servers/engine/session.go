package engine

import (
	"context"
	"sync"
	"time"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
	"github.com/netpulse-io/socketio/pkg/types"
)

// Session is the server-side Engine.IO "socket": one logical connection
// that may move across transports via upgrade (spec.md §3 Session).
type Session struct {
	types.EventEmitter

	ID        string
	Handshake Handshake

	mu        sync.RWMutex
	transport Transport
	state     State
	pongTimer *time.Timer
}

// newSession wraps t as a freshly-opened session identified by sid.
func newSession(sid string, hs Handshake, t Transport) *Session {
	return &Session{
		EventEmitter: types.NewEventEmitter(),
		ID:           sid,
		Handshake:    hs,
		transport:    t,
		state:        StateConnected,
	}
}

// Transport returns the session's current byte-carrying transport.
func (s *Session) Transport() Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transport
}

// State reports the session's lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Upgrade swaps the session onto a new transport, e.g. polling→websocket
// (spec.md §3 Session: "transport swap"). The old transport is closed once
// the new one takes over.
func (s *Session) Upgrade(t Transport) error {
	s.mu.Lock()
	old := s.transport
	s.transport = t
	s.state = StateConnected
	s.mu.Unlock()

	if old != nil && old != t {
		_ = old.Close()
	}
	return nil
}

// Send writes packets to whichever transport currently backs the session.
func (s *Session) Send(ctx context.Context, packets ...packet.Packet) error {
	t := s.Transport()
	if t == nil {
		return ErrTransportClosed
	}
	return t.Send(ctx, packets...)
}

// ping sends a PING and arms a pong-timeout timer; if no PONG arrives
// within timeout, the session is closed with ErrPingTimeout (spec.md §3
// Session invariant: "closes after pingTimeout without a pong").
func (s *Session) ping(timeout time.Duration) {
	if s.State() != StateConnected {
		return
	}
	_ = s.Send(context.Background(), packet.New(packet.PING, ""))

	s.mu.Lock()
	if s.pongTimer != nil {
		s.pongTimer.Stop()
	}
	s.pongTimer = time.AfterFunc(timeout, func() {
		s.EventEmitter.Emit("error", ErrPingTimeout)
		_ = s.Close()
	})
	s.mu.Unlock()
}

// OnPong must be called when a PONG packet is received from the peer.
func (s *Session) OnPong() {
	s.mu.Lock()
	if s.pongTimer != nil {
		s.pongTimer.Stop()
		s.pongTimer = nil
	}
	s.mu.Unlock()
}

// Close is idempotent: only the first call actually tears the transport
// down and emits "close" (spec.md §3 Session invariant: "idempotent
// close").
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	t := s.transport
	if s.pongTimer != nil {
		s.pongTimer.Stop()
		s.pongTimer = nil
	}
	s.mu.Unlock()

	var err error
	if t != nil {
		err = t.Close()
	}
	s.EventEmitter.Emit("close", "forced close")
	return err
}
