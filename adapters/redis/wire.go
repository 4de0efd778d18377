package redis

import (
	"time"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/servers/socket"
)

// wireFlags mirrors socket.BroadcastFlags in a msgpack-friendly shape
// (socket.BroadcastFlags itself has no pointer-free wire representation
// issue, but wireOptions below needs Rooms/Except as plain slices since
// types.Set's fields are unexported).
type wireFlags struct {
	Volatile             bool
	Local                bool
	Compress             *bool
	TimeoutMs            int64
	HasTimeout           bool
	ExpectSingleResponse bool
}

func encodeFlags(f *socket.BroadcastFlags) wireFlags {
	if f == nil {
		return wireFlags{}
	}
	w := wireFlags{
		Volatile:             f.Volatile,
		Local:                f.Local,
		Compress:             f.Compress,
		ExpectSingleResponse: f.ExpectSingleResponse,
	}
	if f.Timeout != nil {
		w.HasTimeout = true
		w.TimeoutMs = f.Timeout.Milliseconds()
	}
	return w
}

func decodeFlags(w wireFlags) *socket.BroadcastFlags {
	f := &socket.BroadcastFlags{
		Volatile:             w.Volatile,
		Local:                w.Local,
		Compress:             w.Compress,
		ExpectSingleResponse: w.ExpectSingleResponse,
	}
	if w.HasTimeout {
		d := time.Duration(w.TimeoutMs) * time.Millisecond
		f.Timeout = &d
	}
	return f
}

// wireOptions is the wire-safe projection of socket.BroadcastOptions.
type wireOptions struct {
	Rooms  []socket.Room
	Except []socket.Room
	Flags  wireFlags
}

func encodeOptions(opts *socket.BroadcastOptions) wireOptions {
	if opts == nil {
		return wireOptions{}
	}
	w := wireOptions{Flags: encodeFlags(opts.Flags)}
	if opts.Rooms != nil {
		w.Rooms = opts.Rooms.Keys()
	}
	if opts.Except != nil {
		w.Except = opts.Except.Keys()
	}
	return w
}

func decodeOptions(w wireOptions) *socket.BroadcastOptions {
	return &socket.BroadcastOptions{
		Rooms:  setOf(w.Rooms),
		Except: setOf(w.Except),
		Flags:  decodeFlags(w.Flags),
	}
}

// broadcastEnvelope is published on the global and per-room channels
// (spec.md §4.E "Broadcast: publish JSON {serverId, message}..."; this
// repo msgpack-encodes it per SPEC_FULL.md §B domain stack wiring).
type broadcastEnvelope struct {
	ServerId string
	Packet   *socketparser.Packet
	Opts     wireOptions
}

// requestType distinguishes inter-node RPCs sent on the request channel.
type requestType int

const (
	requestServerSideEmit requestType = iota
	requestRemoteDisconnect
)

type request struct {
	ServerId  string
	RequestId string
	Type      requestType
	Data      []any
	Opts      wireOptions
	Close     bool
}

type response struct {
	ServerId  string
	RequestId string
	Data      []any
}
