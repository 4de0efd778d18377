package socket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/log"
	"github.com/netpulse-io/socketio/pkg/types"
)

var socketLog = log.NewLog("client:socket")

// Ack is invoked with the server's acknowledgement data, or err if the
// timeout elapsed first (SPEC_FULL.md §C "timeout-bounded acks").
type Ack func(data []any, err error)

var errAckTimeout = &timeoutError{"client ack timed out"}

type timeoutError struct{ msg string }

func (e *timeoutError) Error() string { return e.msg }

// Socket is a client-side connection scoped to one namespace, multiplexed
// over its Manager's single Engine.IO connection (spec.md §4.F).
type Socket struct {
	types.EventEmitter

	manager *Manager
	nsp     string
	auth    any

	connected   atomic.Bool
	intentional atomic.Bool

	mu     sync.Mutex
	acks   map[uint64]Ack
	nextId uint64
	queue  *offlineQueue
}

func newSocket(m *Manager, nsp string, opts *SocketOptions) *Socket {
	var auth any
	if opts != nil {
		auth = opts.Auth
	}
	return &Socket{
		EventEmitter: types.NewEventEmitter(),
		manager:      m,
		nsp:          nsp,
		auth:         auth,
		acks:         make(map[uint64]Ack),
		queue:        newOfflineQueue(),
	}
}

func (s *Socket) Connected() bool { return s.connected.Load() }

// sendConnect is called by the Manager right after the Engine.IO socket
// opens (spec.md §3 "CONNECT precedes any EVENT for the same socket").
func (s *Socket) sendConnect(ctx context.Context) {
	_ = s.manager.send(ctx, &socketparser.Packet{Type: socketparser.CONNECT, Nsp: s.nsp, Data: s.auth})
}

func (s *Socket) handlePacket(p *socketparser.Packet) {
	switch p.Type {
	case socketparser.CONNECT:
		s.connected.Store(true)
		s.EventEmitter.Emit("connect")
		s.flushQueue()
	case socketparser.CONNECT_ERROR:
		s.EventEmitter.Emit("connect_error", p.Data)
	case socketparser.DISCONNECT:
		s.onDisconnect("io server disconnect")
	case socketparser.EVENT, socketparser.BINARY_EVENT:
		s.handleEvent(p)
	case socketparser.ACK, socketparser.BINARY_ACK:
		if p.Id != nil {
			s.resolveAck(*p.Id, toAnySlice(p.Data))
		}
	}
}

func (s *Socket) handleEvent(p *socketparser.Packet) {
	name, err := socketparser.EventName(p.Data)
	if err != nil {
		return
	}
	args := toAnySlice(p.Data)
	if len(args) > 0 {
		args = args[1:]
	}
	if p.Id != nil {
		id := *p.Id
		args = append(args, Ack(func(data []any, _ error) {
			s.emitAck(id, data)
		}))
	}
	s.EventEmitter.Emit(types.EventName(name), args...)
}

func toAnySlice(data any) []any {
	if arr, ok := data.([]any); ok {
		return arr
	}
	return nil
}

func (s *Socket) emitAck(id uint64, data []any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.manager.send(ctx, &socketparser.Packet{Type: socketparser.ACK, Nsp: s.nsp, Data: data, Id: &id})
}

func (s *Socket) resolveAck(id uint64, data []any) {
	s.mu.Lock()
	ack, ok := s.acks[id]
	if ok {
		delete(s.acks, id)
	}
	s.mu.Unlock()
	if ok {
		ack(data, nil)
	}
}

// Emit sends event to the server, queuing it offline if not connected yet
// (spec.md §4.F "Offline queue"). A trailing Ack argument registers a
// pending acknowledgement the same way the server side does.
func (s *Socket) Emit(event string, args ...any) error {
	var ack Ack
	if len(args) > 0 {
		if a, ok := args[len(args)-1].(Ack); ok {
			ack = a
			args = args[:len(args)-1]
		}
	}

	if !s.connected.Load() {
		s.queue.push(event, args)
		return nil
	}
	return s.emitNow(event, args, ack)
}

func (s *Socket) emitNow(event string, args []any, ack Ack) error {
	data := append([]any{event}, args...)
	p := &socketparser.Packet{Type: socketparser.EVENT, Nsp: s.nsp, Data: data}
	if ack != nil {
		s.mu.Lock()
		s.nextId++
		id := s.nextId
		s.acks[id] = ack
		s.mu.Unlock()
		p.Id = &id
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.manager.send(ctx, p)
}

// EmitWithTimeout behaves like Emit but the trailing Ack fires with
// errAckTimeout if the server hasn't responded within d.
func (s *Socket) EmitWithTimeout(d time.Duration, event string, args ...any) error {
	if len(args) > 0 {
		if ack, ok := args[len(args)-1].(Ack); ok {
			args = append(args[:len(args)-1], s.guardedAck(d, ack))
		}
	}
	return s.Emit(event, args...)
}

func (s *Socket) guardedAck(d time.Duration, ack Ack) Ack {
	var once sync.Once
	timer := time.AfterFunc(d, func() {
		once.Do(func() { ack(nil, errAckTimeout) })
	})
	return func(data []any, err error) {
		timer.Stop()
		once.Do(func() { ack(data, err) })
	}
}

// flushQueue drains the offline queue in order on connect, dropping
// entries that aged out past offlineQueueMaxAge (spec.md §4.F "On
// connect the queue is drained in order").
func (s *Socket) flushQueue() {
	for _, item := range s.queue.drain() {
		if err := s.emitNow(item.event, item.args, nil); err != nil {
			socketLog.Debugf("client:socket: flushing queued emit %q: %v", item.event, err)
		}
	}
}

func (s *Socket) onDisconnect(reason string) {
	if !s.connected.CompareAndSwap(true, false) {
		return
	}
	s.EventEmitter.Emit("disconnect", reason)
}

// Disconnect is the user-initiated close (spec.md §4.F "User-initiated
// disconnect() sets an intentional flag — the subsequent "disconnect"
// event must not schedule a reconnect").
func (s *Socket) Disconnect() {
	s.intentional.Store(true)
	if s.connected.CompareAndSwap(true, false) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.manager.send(ctx, &socketparser.Packet{Type: socketparser.DISCONNECT, Nsp: s.nsp})
		s.EventEmitter.Emit("disconnect", "io client disconnect")
	}
	s.manager.Disconnect()
}
