package socket

import (
	"errors"
	"sync/atomic"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/types"
)

// ErrServerSideEmitUnsupported is returned by adapters that cannot relay a
// packet to the rest of the cluster (spec.md §4.E: "a no-op Memory
// realization" doesn't implement cross-node relay at all).
var ErrServerSideEmitUnsupported = errors.New("socket.io: this adapter does not support ServerSideEmit")

// Adapter is the cluster fan-out contract every realization (Memory,
// Redis, Mongo) must satisfy (spec.md §4.E).
type Adapter interface {
	types.EventEmitter

	Nsp() Namespace
	Rooms() *types.Map[Room, *types.Set[SocketId]]
	Sids() *types.Map[SocketId, *types.Set[Room]]

	Init()
	Close()
	ServerCount() int64

	AddAll(id SocketId, rooms *types.Set[Room])
	Del(id SocketId, room Room)
	DelAll(id SocketId)

	Broadcast(p *socketparser.Packet, opts *BroadcastOptions)
	BroadcastWithAck(p *socketparser.Packet, opts *BroadcastOptions, clientCountCallback func(uint64), ack Ack)

	Sockets(rooms *types.Set[Room]) *types.Set[SocketId]
	SocketRooms(id SocketId) *types.Set[Room]

	FetchSockets(opts *BroadcastOptions) []SocketDetails
	AddSockets(opts *BroadcastOptions, rooms []Room)
	DelSockets(opts *BroadcastOptions, rooms []Room)
	DisconnectSockets(opts *BroadcastOptions, close bool)

	ServerSideEmit(packet []any) error

	PersistSession(session *SessionToPersist)
	RestoreSession(pid PrivateSessionId, offset string) (*Session, error)
}

// memoryAdapter is the single-process Adapter realization: all state lives
// in the two maps below and Broadcast fans out synchronously to local
// sockets only (spec.md §4.E "Memory: no-op for cluster concerns").
type memoryAdapter struct {
	types.EventEmitter

	nsp   Namespace
	rooms *types.Map[Room, *types.Set[SocketId]]
	sids  *types.Map[SocketId, *types.Set[Room]]
}

// NewMemoryAdapter constructs the default, single-process Adapter.
func NewMemoryAdapter(nsp Namespace) Adapter {
	return &memoryAdapter{
		EventEmitter: types.NewEventEmitter(),
		nsp:          nsp,
		rooms:        types.NewMap[Room, *types.Set[SocketId]](),
		sids:         types.NewMap[SocketId, *types.Set[Room]](),
	}
}

func (a *memoryAdapter) Nsp() Namespace                                    { return a.nsp }
func (a *memoryAdapter) Rooms() *types.Map[Room, *types.Set[SocketId]]      { return a.rooms }
func (a *memoryAdapter) Sids() *types.Map[SocketId, *types.Set[Room]]       { return a.sids }
func (a *memoryAdapter) Init()                                             {}
func (a *memoryAdapter) Close()                                            {}
func (a *memoryAdapter) ServerCount() int64                                { return 1 }

func (a *memoryAdapter) AddAll(id SocketId, rooms *types.Set[Room]) {
	joined, _ := a.sids.LoadOrStore(id, types.NewSet[Room]())
	for _, room := range rooms.Keys() {
		joined.Add(room)
		ids, existed := a.rooms.LoadOrStore(room, types.NewSet[SocketId]())
		if !existed {
			a.Emit("create-room", room)
		}
		if !ids.Has(id) {
			ids.Add(id)
			a.Emit("join-room", room, id)
		}
	}
}

func (a *memoryAdapter) Del(id SocketId, room Room) {
	if rooms, ok := a.sids.Load(id); ok {
		rooms.Delete(room)
	}
	a.removeFromRoom(room, id)
}

func (a *memoryAdapter) removeFromRoom(room Room, id SocketId) {
	ids, ok := a.rooms.Load(room)
	if !ok {
		return
	}
	if ids.Has(id) {
		ids.Delete(id)
		a.Emit("leave-room", room, id)
	}
	if ids.Len() == 0 {
		if _, ok := a.rooms.LoadAndDelete(room); ok {
			a.Emit("delete-room", room)
		}
	}
}

func (a *memoryAdapter) DelAll(id SocketId) {
	rooms, ok := a.sids.Load(id)
	if !ok {
		return
	}
	for _, room := range rooms.Keys() {
		a.removeFromRoom(room, id)
	}
	a.sids.Delete(id)
}

func (a *memoryAdapter) Broadcast(p *socketparser.Packet, opts *BroadcastOptions) {
	p.Nsp = a.nsp.Name()
	a.apply(opts, func(s *Socket) {
		s.dispatchOutgoing(p)
	})
}

func (a *memoryAdapter) BroadcastWithAck(p *socketparser.Packet, opts *BroadcastOptions, clientCountCallback func(uint64), ack Ack) {
	p.Nsp = a.nsp.Name()
	id := a.nsp.nextAckId()
	p.Id = &id

	var clientCount atomic.Uint64
	a.apply(opts, func(s *Socket) {
		clientCount.Add(1)
		s.registerAck(id, ack)
		s.dispatchOutgoing(p)
	})
	clientCountCallback(clientCount.Load())
}

func (a *memoryAdapter) Sockets(rooms *types.Set[Room]) *types.Set[SocketId] {
	out := types.NewSet[SocketId]()
	a.apply(&BroadcastOptions{Rooms: rooms}, func(s *Socket) { out.Add(s.ID) })
	return out
}

func (a *memoryAdapter) SocketRooms(id SocketId) *types.Set[Room] {
	rooms, _ := a.sids.Load(id)
	return rooms
}

func (a *memoryAdapter) FetchSockets(opts *BroadcastOptions) []SocketDetails {
	var out []SocketDetails
	a.apply(opts, func(s *Socket) { out = append(out, s) })
	return out
}

func (a *memoryAdapter) AddSockets(opts *BroadcastOptions, rooms []Room) {
	a.apply(opts, func(s *Socket) { s.Join(rooms...) })
}

func (a *memoryAdapter) DelSockets(opts *BroadcastOptions, rooms []Room) {
	a.apply(opts, func(s *Socket) {
		for _, r := range rooms {
			s.Leave(r)
		}
	})
}

func (a *memoryAdapter) DisconnectSockets(opts *BroadcastOptions, closeConn bool) {
	a.apply(opts, func(s *Socket) { s.Disconnect(closeConn) })
}

// apply invokes callback once per socket addressed by opts: the union of
// opts.Rooms' members (or every connected socket when Rooms is empty)
// minus opts.Except's members (spec.md §4.D room-broadcast invariant).
func (a *memoryAdapter) apply(opts *BroadcastOptions, callback func(*Socket)) {
	if opts == nil {
		opts = &BroadcastOptions{}
	}
	except := a.computeExceptSids(opts.Except)

	if opts.Rooms != nil && opts.Rooms.Len() > 0 {
		seen := types.NewSet[SocketId]()
		for _, room := range opts.Rooms.Keys() {
			ids, ok := a.rooms.Load(room)
			if !ok {
				continue
			}
			for _, id := range ids.Keys() {
				if seen.Has(id) || except.Has(id) {
					continue
				}
				if s, ok := a.nsp.socketByID(id); ok {
					callback(s)
					seen.Add(id)
				}
			}
		}
		return
	}

	a.sids.Range(func(id SocketId, _ *types.Set[Room]) bool {
		if except.Has(id) {
			return true
		}
		if s, ok := a.nsp.socketByID(id); ok {
			callback(s)
		}
		return true
	})
}

func (a *memoryAdapter) computeExceptSids(exceptRooms *types.Set[Room]) *types.Set[SocketId] {
	out := types.NewSet[SocketId]()
	if exceptRooms == nil {
		return out
	}
	for _, room := range exceptRooms.Keys() {
		if ids, ok := a.rooms.Load(room); ok {
			out.Add(ids.Keys()...)
		}
	}
	return out
}

func (a *memoryAdapter) ServerSideEmit(packet []any) error {
	return ErrServerSideEmitUnsupported
}

func (a *memoryAdapter) PersistSession(session *SessionToPersist) {}

func (a *memoryAdapter) RestoreSession(pid PrivateSessionId, offset string) (*Session, error) {
	return nil, nil
}
