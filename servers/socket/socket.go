package socket

import (
	"sync"
	"sync/atomic"
	"time"

	engine "github.com/netpulse-io/socketio/servers/engine"
	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
)

var socketLog = log.NewLog("socket.io:socket")

// Socket is a single Socket.IO connection scoped to one Namespace (spec.md
// §3 "Socket.IO socket"). Several Sockets can share the same underlying
// Engine.IO Session when a client connects to more than one namespace.
type Socket struct {
	types.EventEmitter

	ID        SocketId
	nsp       Namespace
	session   *engine.Session
	handshake Handshake

	connected atomic.Bool
	data      atomic.Pointer[any]

	mu    sync.RWMutex
	rooms *types.Set[Room]
	acks  *types.Map[uint64, Ack]

	onAny        *types.Slice[func(string, ...any)]
	onAnyOutgoing *types.Slice[func(string, ...any)]
}

// Handshake is the subset of the Engine.IO handshake exposed at the
// Socket.IO layer, plus the CONNECT packet's auth payload.
type Handshake struct {
	Address string
	Secure  bool
	Issued  int64
	Auth    any
	Query   map[string][]string
}

func newSocket(nsp Namespace, id SocketId, session *engine.Session, hs Handshake) *Socket {
	s := &Socket{
		EventEmitter:  types.NewEventEmitter(),
		ID:            id,
		nsp:           nsp,
		session:       session,
		handshake:     hs,
		rooms:         types.NewSet[Room](),
		acks:          types.NewMap[uint64, Ack](),
		onAny:         types.NewSlice[func(string, ...any)](),
		onAnyOutgoing: types.NewSlice[func(string, ...any)](),
	}
	s.connected.Store(true)
	s.rooms.Add(Room(id))
	return s
}

// Rooms returns a snapshot of the rooms this socket has joined, always
// including its own identity room (spec.md §4.D room-symmetry invariant).
func (s *Socket) Rooms() *types.Set[Room] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.NewSet(s.rooms.Keys()...)
}

// Data returns the free-form per-connection slot applications use to
// stash auth/session state (SPEC_FULL.md §C "socket.Data()").
func (s *Socket) Data() any {
	if p := s.data.Load(); p != nil {
		return *p
	}
	return nil
}

// SetData overwrites the per-connection data slot.
func (s *Socket) SetData(v any) {
	s.data.Store(&v)
}

// Connected reports whether the socket is still admitted to its namespace.
func (s *Socket) Connected() bool { return s.connected.Load() }

// Id satisfies SocketDetails so a local *Socket and a cluster *RemoteSocket
// can both be handed to FetchSockets callers uniformly.
func (s *Socket) Id() SocketId { return s.ID }

// Join adds the socket to rooms, updating the adapter's room/sid indices
// symmetrically (spec.md §4.D: "sid ∈ localRooms[r] ⇔ r ∈ socketToRooms[sid]").
func (s *Socket) Join(rooms ...Room) {
	s.mu.Lock()
	s.rooms.Add(rooms...)
	snapshot := types.NewSet(s.rooms.Keys()...)
	s.mu.Unlock()
	s.nsp.Adapter().AddAll(s.ID, snapshot)
}

// Leave removes the socket from a room.
func (s *Socket) Leave(room Room) {
	s.mu.Lock()
	s.rooms.Delete(room)
	s.mu.Unlock()
	s.nsp.Adapter().Del(s.ID, room)
}

// To targets rooms for the next Emit, excluding this socket by default
// (sockets never receive their own broadcast via To, matching spec.md §4.D
// self-exclusion).
func (s *Socket) To(rooms ...Room) *BroadcastOperator {
	except := types.NewSet(Room(s.ID))
	return newBroadcastOperator(s.nsp.Adapter(), types.NewSet(rooms...), except, &BroadcastFlags{})
}

func (s *Socket) In(rooms ...Room) *BroadcastOperator { return s.To(rooms...) }

// Broadcast targets every other socket in the namespace, excluding this one
// (spec.md §4.D "except-self" broadcast) — equivalent to To() with no rooms,
// named for callers that mean the whole namespace rather than a room subset.
func (s *Socket) Broadcast() *BroadcastOperator { return s.To() }

// Emit sends an event directly to this socket, with an optional trailing
// Ack for a client acknowledgement (spec.md §3 "pending ack").
func (s *Socket) Emit(event string, args ...any) error {
	data := append([]any{event}, args...)
	if ack, ok := lastArgAck(data); ok {
		id := s.nsp.nextAckId()
		s.registerAck(id, ack)
		data = data[:len(data)-1]
		return s.dispatch(&socketparser.Packet{Type: socketparser.EVENT, Data: data, Id: &id})
	}
	return s.dispatch(&socketparser.Packet{Type: socketparser.EVENT, Data: data})
}

// EmitWithTimeout behaves like Emit but wraps a trailing Ack so it fires
// with errTimeout if the client hasn't responded within d (SPEC_FULL.md
// §C "timeout-bounded acks").
func (s *Socket) EmitWithTimeout(d time.Duration, event string, args ...any) error {
	if ack, ok := lastArgAck(args); ok {
		args = append(args[:len(args)-1], timeoutAck(d, ack))
	}
	return s.Emit(event, args...)
}

func lastArgAck(data []any) (Ack, bool) {
	if len(data) == 0 {
		return nil, false
	}
	ack, ok := data[len(data)-1].(Ack)
	return ack, ok
}

func (s *Socket) registerAck(id uint64, ack Ack) {
	s.acks.Store(id, ack)
}

// dispatch is the low-level single-recipient send path shared by Emit and
// the adapter's per-socket broadcast fan-out.
func (s *Socket) dispatch(p *socketparser.Packet) error {
	p.Nsp = s.nsp.Name()
	s.notifyOutgoing(p)
	return s.nsp.Server().writePacket(s, p)
}

// dispatchOutgoing is called by the adapter when this socket is the
// recipient of a broadcast that was already addressed at the namespace
// level (packet.Nsp is already set).
func (s *Socket) dispatchOutgoing(p *socketparser.Packet) {
	s.notifyOutgoing(p)
	_ = s.nsp.Server().writePacket(s, p)
}

func (s *Socket) notifyOutgoing(p *socketparser.Packet) {
	if name, err := socketparser.EventName(p.Data); err == nil {
		for _, fn := range s.onAnyOutgoing.All() {
			fn(name, p.Data)
		}
	}
}

// OnAny registers a catch-all listener invoked for every incoming event,
// in addition to any specific handler (SPEC_FULL.md §C).
func (s *Socket) OnAny(fn func(event string, args ...any)) {
	s.onAny.Push(func(event string, args ...any) { fn(event, args...) })
}

// OnAnyOutgoing registers a catch-all listener invoked for every outgoing
// event this socket emits (SPEC_FULL.md §C).
func (s *Socket) OnAnyOutgoing(fn func(event string, args ...any)) {
	s.onAnyOutgoing.Push(func(event string, args ...any) { fn(event, args...) })
}

// handleAck resolves a pending ack when the client's ACK packet arrives.
func (s *Socket) handleAck(id uint64, data []any) {
	if ack, ok := s.acks.LoadAndDelete(id); ok {
		ack(data, nil)
	}
}

// handleEvent dispatches an incoming EVENT packet to catch-all listeners
// and the specific event handler, wiring up a responder when the packet
// carries an ack id.
func (s *Socket) handleEvent(p *socketparser.Packet) {
	name, err := socketparser.EventName(p.Data)
	if err != nil {
		return
	}
	args, _ := socketEventArgs(p.Data)

	for _, fn := range s.onAny.All() {
		fn(name, args...)
	}

	if p.Id != nil {
		id := *p.Id
		args = append(args, Ack(func(data []any, _ error) {
			s.dispatchAck(id, data)
		}))
	}

	converted := make([]any, len(args))
	copy(converted, args)
	s.EventEmitter.Emit(types.EventName(name), converted...)
}

func socketEventArgs(data any) ([]any, error) {
	arr, ok := data.([]any)
	if !ok || len(arr) == 0 {
		return nil, socketparser.ErrNotAnEvent
	}
	return arr[1:], nil
}

func (s *Socket) dispatchAck(id uint64, data []any) {
	_ = s.dispatch(&socketparser.Packet{Type: socketparser.ACK, Data: data, Id: &id})
}

// Disconnect marks the socket as no longer connected, leaves every room,
// and optionally closes the underlying transport session (spec.md §3
// "disconnect"/"disconnecting").
func (s *Socket) Disconnect(closeConn bool) *Socket {
	if !s.connected.CompareAndSwap(true, false) {
		return s
	}
	s.EventEmitter.Emit("disconnecting", "server namespace disconnect")
	for _, room := range s.Rooms().Keys() {
		s.Leave(room)
	}
	s.nsp.Remove(s)
	s.EventEmitter.Emit("disconnect", "server namespace disconnect")
	if closeConn && s.session != nil {
		_ = s.session.Close()
	}
	return s
}

// timeoutAck wraps ack so it fires with an error if no response arrives
// within d (SPEC_FULL.md §C "timeout-bounded acks").
func timeoutAck(d time.Duration, ack Ack) Ack {
	var once sync.Once
	timer := time.AfterFunc(d, func() {
		once.Do(func() { ack(nil, errTimeout) })
	})
	return func(data []any, err error) {
		once.Do(func() {
			timer.Stop()
			ack(data, err)
		})
	}
}
