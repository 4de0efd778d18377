package socket

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync/atomic"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
	"github.com/netpulse-io/socketio/pkg/utils"
	engine "github.com/netpulse-io/socketio/servers/engine"
)

var nsLog = log.NewLog("socket.io:namespace")

// NamespaceMiddleware runs for every connecting socket before it is
// admitted; calling next with a non-nil error rejects the connection
// (spec.md §4.D "admission middleware chain").
type NamespaceMiddleware func(*Socket, func(error))

// Namespace is a communication channel splitting one Engine.IO connection
// across independently-addressed event spaces (spec.md §3 "Namespace").
type Namespace interface {
	Name() string
	Server() *Server
	Adapter() Adapter
	Sockets() *types.Map[SocketId, *Socket]

	Use(NamespaceMiddleware) Namespace
	On(event string, fn func(...any)) error
	EmitReserved(event string, args ...any)

	To(rooms ...Room) *BroadcastOperator
	In(rooms ...Room) *BroadcastOperator
	Except(rooms ...Room) *BroadcastOperator
	Emit(event string, args ...any) error
	Volatile() *BroadcastOperator
	Local() *BroadcastOperator
	Compress(bool) *BroadcastOperator

	FetchSockets() []SocketDetails
	SocketsJoin(rooms ...Room)
	SocketsLeave(rooms ...Room)
	DisconnectSockets(close bool)

	ServerSideEmit(event string, args ...any) error
	ServerSideEmitWithAck(event string, args ...any) func(Ack) error

	Remove(*Socket)

	nextAckId() uint64
	socketByID(SocketId) (*Socket, bool)
	admit(session *engine.Session, hs Handshake, auth any) (*Socket, error)
	encodeCached(p *socketparser.Packet) (string, error)
}

// namespace is the concrete Namespace realization (spec.md §4.D).
type namespace struct {
	types.EventEmitter

	name     string
	server   *Server
	adapter  Adapter
	sockets  *types.Map[SocketId, *Socket]
	fns      *types.Slice[NamespaceMiddleware]
	nextId   atomic.Uint64
	msgCache *utils.LRU[string, string]
	encoder  socketparser.Encoder
}

// DefaultMessageCacheSize bounds each namespace's outgoing message cache
// (spec.md §4.D).
const DefaultMessageCacheSize = 1000

// DefaultNamespaceName is the root namespace every client connects to
// unless it specifies another (spec.md §4.D).
const DefaultNamespaceName = "/"

func newNamespace(server *Server, name string) *namespace {
	if name == "" {
		name = DefaultNamespaceName
	}
	n := &namespace{
		EventEmitter: types.NewEventEmitter(),
		name:         name,
		server:       server,
		sockets:      types.NewMap[SocketId, *Socket](),
		fns:          types.NewSlice[NamespaceMiddleware](),
		msgCache:     utils.NewLRU[string, string](DefaultMessageCacheSize),
		encoder:      socketparser.NewEncoder(),
	}
	n.adapter = server.newAdapter(n)
	return n
}

func (n *namespace) Name() string                          { return n.name }
func (n *namespace) Server() *Server                        { return n.server }
func (n *namespace) Adapter() Adapter                       { return n.adapter }
func (n *namespace) Sockets() *types.Map[SocketId, *Socket] { return n.sockets }

func (n *namespace) Use(fn NamespaceMiddleware) Namespace {
	n.fns.Push(fn)
	return n
}

func (n *namespace) On(event string, fn func(...any)) error {
	return n.EventEmitter.On(types.EventName(event), types.EventListener(fn))
}

func (n *namespace) EmitReserved(event string, args ...any) {
	n.EventEmitter.Emit(types.EventName(event), args...)
}

func (n *namespace) broadcastOperator() *BroadcastOperator {
	return newBroadcastOperator(n.adapter, types.NewSet[Room](), types.NewSet[Room](), &BroadcastFlags{})
}

func (n *namespace) To(rooms ...Room) *BroadcastOperator     { return n.broadcastOperator().To(rooms...) }
func (n *namespace) In(rooms ...Room) *BroadcastOperator     { return n.broadcastOperator().In(rooms...) }
func (n *namespace) Except(rooms ...Room) *BroadcastOperator { return n.broadcastOperator().Except(rooms...) }
func (n *namespace) Volatile() *BroadcastOperator            { return n.broadcastOperator().Volatile() }
func (n *namespace) Local() *BroadcastOperator               { return n.broadcastOperator().Local() }
func (n *namespace) Compress(c bool) *BroadcastOperator      { return n.broadcastOperator().Compress(c) }

func (n *namespace) Emit(event string, args ...any) error {
	return n.broadcastOperator().Emit(event, args...)
}

func (n *namespace) FetchSockets() []SocketDetails { return n.broadcastOperator().FetchSockets() }
func (n *namespace) SocketsJoin(rooms ...Room)     { n.broadcastOperator().SocketsJoin(rooms...) }
func (n *namespace) SocketsLeave(rooms ...Room)    { n.broadcastOperator().SocketsLeave(rooms...) }
func (n *namespace) DisconnectSockets(close bool)  { n.broadcastOperator().DisconnectSockets(close) }

// ServerSideEmit relays an event to the other Socket.IO servers in the
// cluster (spec.md §4.E; no local delivery happens).
func (n *namespace) ServerSideEmit(event string, args ...any) error {
	if socketparser.ReservedEvents[event] {
		return ErrAdapterError
	}
	return n.adapter.ServerSideEmit(append([]any{event}, args...))
}

// ServerSideEmitWithAck behaves like ServerSideEmit but resolves when every
// other node has acknowledged, or after its own timeout (SPEC_FULL.md §C).
// Adapters without a ServerSideEmitWithAck method yield
// ErrServerSideEmitUnsupported.
func (n *namespace) ServerSideEmitWithAck(event string, args ...any) func(Ack) error {
	return func(ack Ack) error {
		if socketparser.ReservedEvents[event] {
			return ErrAdapterError
		}
		withAck, ok := n.adapter.(interface {
			ServerSideEmitWithAck(packet []any) ([]any, error)
		})
		if !ok {
			return ErrServerSideEmitUnsupported
		}
		replies, err := withAck.ServerSideEmitWithAck(append([]any{event}, args...))
		ack(replies, err)
		return err
	}
}

func (n *namespace) Remove(s *Socket) {
	n.sockets.Delete(s.ID)
	n.adapter.DelAll(s.ID)
}

func (n *namespace) nextAckId() uint64 {
	return n.nextId.Add(1)
}

func (n *namespace) socketByID(id SocketId) (*Socket, bool) {
	return n.sockets.Load(id)
}

// encodeCached encodes p once per distinct (type, nsp, id, attachments, data)
// tuple and reuses the wire string for every recipient of a broadcast
// (spec.md §4.D "message cache"): a room fan-out to N sockets costs one
// json.Marshal instead of N.
func (n *namespace) encodeCached(p *socketparser.Packet) (string, error) {
	key, cacheable := messageCacheKey(p)
	if !cacheable {
		return n.encoder.Encode(p)
	}
	if encoded, ok := n.msgCache.Get(key); ok {
		return encoded, nil
	}
	encoded, err := n.encoder.Encode(p)
	if err != nil {
		return "", err
	}
	n.msgCache.Put(key, encoded)
	return encoded, nil
}

// messageCacheKey builds the spec.md §4.D cache key. Binary packets carry
// attachments that aren't reflected in Data's JSON encoding alone, and acks
// are addressed to a single socket, so neither is cacheable.
func messageCacheKey(p *socketparser.Packet) (string, bool) {
	if p.Type == socketparser.BINARY_EVENT || p.Type == socketparser.BINARY_ACK {
		return "", false
	}
	if p.Type == socketparser.ACK {
		return "", false
	}
	data, err := json.Marshal(p.Data)
	if err != nil {
		return "", false
	}
	var id string
	if p.Id != nil {
		id = strconv.FormatUint(*p.Id, 10)
	}
	var attachments string
	if p.Attachments != nil {
		attachments = strconv.FormatUint(*p.Attachments, 10)
	}
	return strconv.Itoa(int(p.Type)) + "\x00" + p.Nsp + "\x00" + id + "\x00" + attachments + "\x00" + string(data), true
}

// admit runs the middleware chain and, if every link calls next with a nil
// error, creates and registers a Socket for this namespace.
func (n *namespace) admit(session *engine.Session, hs Handshake, auth any) (*Socket, error) {
	id, err := n.server.generateSocketId()
	if err != nil {
		return nil, err
	}

	sock := newSocket(n, SocketId(id), session, hs)
	sock.SetData(auth)

	for _, mw := range n.fns.All() {
		errCh := make(chan error, 1)
		mw(sock, func(e error) { errCh <- e })
		if e := <-errCh; e != nil {
			return nil, e
		}
	}

	n.sockets.Store(sock.ID, sock)
	n.adapter.AddAll(sock.ID, sock.Rooms())
	nsLog.Debugf("socket %s admitted to namespace %s", sock.ID, n.name)
	n.EventEmitter.Emit("connection", sock)
	return sock, nil
}

// matchesDynamic reports whether pattern (a parent namespace name ending in
// "*", e.g. "/dynamic-*") should spawn a child namespace named name: name
// must start with the part of pattern before the "*" (SPEC_FULL.md §C
// "parent/dynamic namespace matching").
func matchesDynamic(pattern, name string) bool {
	prefix := strings.TrimSuffix(pattern, "*")
	return prefix != pattern && strings.HasPrefix(name, prefix)
}
