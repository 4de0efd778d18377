package engine

import (
	"context"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// State is a transport's lifecycle state (spec.md §3 Transport).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Transport is the server-side half of a single Engine.IO connection's
// byte-carrying leg (spec.md §3 Transport: "polling | websocket").
//
// Send enqueues packets for delivery; for polling this means "buffer until
// the next GET", for websocket it writes a frame per packet immediately.
// Receive blocks until a dispatchable packet arrives from the peer, or ctx
// is canceled, or the transport closes.
type Transport interface {
	Name() string
	State() State
	Send(ctx context.Context, packets ...packet.Packet) error
	Receive(ctx context.Context) (packet.Packet, error)
	Close() error
}
