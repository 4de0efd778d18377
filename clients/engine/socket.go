package engine

import (
	"context"
	"sync"

	"resty.dev/v3"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
)

var engineLog = log.NewLog("client:engine")

// State is the client socket's lifecycle state (spec.md §4.F state
// diagram: IDLE / CONNECTING / CONNECTED / OFFLINE).
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateOffline
)

// Socket is a client-side Engine.IO connection: one transport at a time,
// selected by rotating index through Options.Transports on failure
// (spec.md §4.F "Transport selection").
//
// Socket does not itself reconnect; that policy (backoff, the offline
// queue, "intentional disconnect") lives one layer up in clients/socket,
// the same split the teacher draws between its engine Socket and its
// socket.io Manager.
type Socket struct {
	types.EventEmitter

	uri  string
	opts *Options
	http *resty.Client

	mu             sync.Mutex
	state          State
	transport      Transport
	transportIndex int
	handshake      HandshakeData

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSocket builds a Socket bound to uri, not yet connected.
func NewSocket(uri string, opts *Options) *Socket {
	opts = opts.withDefaults()
	return &Socket{
		EventEmitter: types.NewEventEmitter(),
		uri:          uri,
		opts:         opts,
		http:         resty.New(),
		state:        StateIdle,
	}
}

func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Socket) Handshake() HandshakeData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshake
}

// buildTransport constructs the transport named by Options.Transports at
// the current rotation index.
func (s *Socket) buildTransport(name string) Transport {
	switch name {
	case "websocket":
		return newWebsocketTransport(s.uri, s.opts)
	default:
		return newPollingTransport(s.http, s.uri, s.opts)
	}
}

// Open attempts to connect using transports[transportIndex]; on failure it
// advances the index (spec.md §4.F "transportIndex = (transportIndex + 1)
// mod transports.length before the next attempt") and returns the error
// for the caller's reconnect policy to act on.
func (s *Socket) Open(ctx context.Context) error {
	s.mu.Lock()
	if len(s.opts.Transports) == 0 {
		s.mu.Unlock()
		return ErrNoTransports
	}
	name := s.opts.Transports[s.transportIndex%len(s.opts.Transports)]
	s.state = StateConnecting
	s.mu.Unlock()

	t := s.buildTransport(name)
	hs, err := t.Open(ctx)
	if err != nil {
		s.mu.Lock()
		s.transportIndex = (s.transportIndex + 1) % len(s.opts.Transports)
		s.state = StateIdle
		s.mu.Unlock()
		s.EventEmitter.Emit("error", err)
		return err
	}

	sctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.transport = t
	s.handshake = hs
	s.state = StateConnected
	s.ctx = sctx
	s.cancel = cancel
	s.mu.Unlock()

	go s.readLoop(sctx, t)

	s.EventEmitter.Emit("open", hs)
	return nil
}

func (s *Socket) readLoop(ctx context.Context, t Transport) {
	for {
		p, err := t.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				engineLog.Debugf("client:engine: receive on %s failed: %v", t.Name(), err)
				s.EventEmitter.Emit("error", err)
			}
			s.transitionOffline("transport error")
			return
		}
		switch p.Type {
		case packet.PING:
			_ = t.Send(ctx, packet.New(packet.PONG, ""))
		case packet.CLOSE:
			s.transitionOffline("transport close packet")
			return
		case packet.NOOP:
			continue
		default:
			s.EventEmitter.Emit("packet", p)
		}
	}
}

func (s *Socket) transitionOffline(reason string) {
	s.mu.Lock()
	if s.state == StateOffline || s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	s.state = StateOffline
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	s.EventEmitter.Emit("close", reason)
}

// Send writes packets on the active transport; it is an error to call Send
// while not connected.
func (s *Socket) Send(ctx context.Context, packets ...packet.Packet) error {
	s.mu.Lock()
	t, state := s.transport, s.state
	s.mu.Unlock()
	if state != StateConnected || t == nil {
		return ErrNotOpen
	}
	return t.Send(ctx, packets...)
}

// Close aborts the in-flight transport and moves to OFFLINE without
// emitting (the caller decides whether this was intentional, spec.md §4.F
// "disconnect() sets an intentional flag").
func (s *Socket) Close() error {
	s.mu.Lock()
	t := s.transport
	if s.cancel != nil {
		s.cancel()
	}
	s.state = StateOffline
	s.mu.Unlock()
	if t != nil {
		return t.Close()
	}
	return nil
}

// ResetTransportIndex restarts rotation from transports[0]; called by the
// Manager's onSuccess() (spec.md §4.F "onSuccess() resets counters").
func (s *Socket) ResetTransportIndex() {
	s.mu.Lock()
	s.transportIndex = 0
	s.mu.Unlock()
}
