package socket

import "github.com/netpulse-io/socketio/pkg/types"

// RemoteSocket represents a socket connected to another node in the
// cluster: it supports the same room-membership queries FetchSockets
// exposes for local sockets, but not direct Emit (spec.md §4.E;
// SPEC_FULL.md §C "FetchSockets/RemoteSocket").
type RemoteSocket struct {
	id    SocketId
	rooms *types.Set[Room]
	data  any
}

// NewRemoteSocket wraps adapter-reported socket details for a socket that
// isn't local to this process.
func NewRemoteSocket(adapter Adapter, details SocketDetails) *RemoteSocket {
	return &RemoteSocket{id: details.Id(), rooms: details.Rooms(), data: details.Data()}
}

func (r *RemoteSocket) Id() SocketId            { return r.id }
func (r *RemoteSocket) Rooms() *types.Set[Room] { return r.rooms }
func (r *RemoteSocket) Data() any               { return r.data }
