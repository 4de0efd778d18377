// Package socket implements the Socket.IO protocol layer on top of the
// Engine.IO transport server: namespaces, rooms, acknowledgements, and the
// cluster Adapter contract (spec.md §4.D/§4.E).
package socket

import (
	"time"

	"github.com/netpulse-io/socketio/pkg/types"
)

// Room and SocketId are the string identifiers the adapter layer indexes
// on (spec.md §4.D).
type (
	Room     string
	SocketId string
)

// Ack is invoked with a client's acknowledgement payload, or with err set
// if a timeout wrapper (EmitWithTimeout, BroadcastOperator.Timeout) fires
// first. Acks still pending when the socket disconnects are dropped without
// being called (spec.md §3 "pending ack").
type Ack func(data []any, err error)

// BroadcastFlags carry the per-emit modifiers set by Volatile/Local/
// Timeout/Compress (spec.md §4.D, SPEC_FULL.md §C).
type BroadcastFlags struct {
	Volatile             bool
	Local                bool
	Compress             *bool
	Timeout              *time.Duration
	ExpectSingleResponse bool
}

// BroadcastOptions bundles the room/except sets and flags passed down to
// an Adapter for a single broadcast operation.
type BroadcastOptions struct {
	Rooms  *types.Set[Room]
	Except *types.Set[Room]
	Flags  *BroadcastFlags
}

// PrivateSessionId identifies a persisted session for connection-state
// recovery (SPEC_FULL.md §C).
type PrivateSessionId string

// SessionToPersist is what an Adapter stores so a reconnecting client with
// the same pid can resume its rooms/data.
type SessionToPersist struct {
	Sid  SocketId
	Pid  PrivateSessionId
	Rooms []Room
	Data  any
}

// Session is what RestoreSession hands back to re-admit a reconnecting
// socket.
type Session struct {
	SessionToPersist
	MissedPackets []any
}

// SocketDetails is the minimal surface FetchSockets needs from either a
// local *Socket or a cluster-wide *RemoteSocket.
type SocketDetails interface {
	Id() SocketId
	Rooms() *types.Set[Room]
	Data() any
}
