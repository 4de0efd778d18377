package engine

import (
	"context"
	"time"

	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// HandshakeData is the decoded payload of the server's OPEN packet
// (spec.md §6 "handshake ... returning JSON {sid, upgrades, pingInterval,
// pingTimeout}").
type HandshakeData struct {
	Sid          string        `json:"sid"`
	Upgrades     []string      `json:"upgrades"`
	PingInterval time.Duration `json:"-"`
	PingTimeout  time.Duration `json:"-"`
	MaxPayload   int64         `json:"maxPayload"`
}

type handshakeWire struct {
	Sid          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int64    `json:"pingInterval"`
	PingTimeout  int64    `json:"pingTimeout"`
	MaxPayload   int64    `json:"maxPayload"`
}

// Transport is the client-side half of a single Engine.IO connection's
// byte-carrying leg (spec.md §3 Transport: "polling | websocket"), the
// mirror image of servers/engine.Transport.
//
// Open performs the handshake (polling: a GET with no sid; websocket: the
// upgrade dial followed by reading the OPEN frame) and returns the decoded
// handshake payload. Receive blocks until a packet arrives, ctx is
// canceled, or the transport closes; a canceled Receive returns
// ErrTransportClosed, which Socket's read loop does not log or emit as an
// "error" (spec.md §4.F "a cancelled fetch does not log an error").
type Transport interface {
	Name() string
	Open(ctx context.Context) (HandshakeData, error)
	Send(ctx context.Context, packets ...packet.Packet) error
	Receive(ctx context.Context) (packet.Packet, error)
	Close() error
}
