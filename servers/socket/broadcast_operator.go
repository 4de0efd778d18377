package socket

import (
	"errors"
	"sync/atomic"
	"time"

	socketparser "github.com/netpulse-io/socketio/parsers/socket/parser"
	"github.com/netpulse-io/socketio/pkg/types"
)

// BroadcastOperator is the fluent To/Except/Volatile/Local/Timeout/Compress
// chain returned by Namespace.To and Socket.To (spec.md §4.D).
type BroadcastOperator struct {
	adapter Adapter
	rooms   *types.Set[Room]
	except  *types.Set[Room]
	flags   *BroadcastFlags
}

func newBroadcastOperator(adapter Adapter, rooms, except *types.Set[Room], flags *BroadcastFlags) *BroadcastOperator {
	if rooms == nil {
		rooms = types.NewSet[Room]()
	}
	if except == nil {
		except = types.NewSet[Room]()
	}
	if flags == nil {
		flags = &BroadcastFlags{}
	}
	return &BroadcastOperator{adapter: adapter, rooms: rooms, except: except, flags: flags}
}

func (b *BroadcastOperator) To(rooms ...Room) *BroadcastOperator {
	next := types.NewSet(b.rooms.Keys()...)
	next.Add(rooms...)
	return newBroadcastOperator(b.adapter, next, b.except, b.flags)
}

func (b *BroadcastOperator) In(rooms ...Room) *BroadcastOperator { return b.To(rooms...) }

func (b *BroadcastOperator) Except(rooms ...Room) *BroadcastOperator {
	next := types.NewSet(b.except.Keys()...)
	next.Add(rooms...)
	return newBroadcastOperator(b.adapter, b.rooms, next, b.flags)
}

func (b *BroadcastOperator) Compress(compress bool) *BroadcastOperator {
	flags := *b.flags
	flags.Compress = &compress
	return newBroadcastOperator(b.adapter, b.rooms, b.except, &flags)
}

// Volatile sets the Volatile flag on the returned operator (SPEC_FULL.md
// §C). The flag travels in BroadcastOptions, but no adapter reads it: a
// volatile emit is delivered like any other.
func (b *BroadcastOperator) Volatile() *BroadcastOperator {
	flags := *b.flags
	flags.Volatile = true
	return newBroadcastOperator(b.adapter, b.rooms, b.except, &flags)
}

// Local restricts the emit to sockets connected to this process, even
// under a cluster Adapter (SPEC_FULL.md §C).
func (b *BroadcastOperator) Local() *BroadcastOperator {
	flags := *b.flags
	flags.Local = true
	return newBroadcastOperator(b.adapter, b.rooms, b.except, &flags)
}

// Timeout bounds how long Emit waits for acks before invoking the
// callback with a timeout error (SPEC_FULL.md §C).
func (b *BroadcastOperator) Timeout(d time.Duration) *BroadcastOperator {
	flags := *b.flags
	flags.Timeout = &d
	return newBroadcastOperator(b.adapter, b.rooms, b.except, &flags)
}

// Emit fans args out to every socket the operator addresses. If the last
// argument is an Ack, it behaves like EmitWithAck: the adapter gathers
// responses and the broadcast blocks only long enough to kick off waiting,
// invoking ack asynchronously as responses (or the timeout) arrive.
func (b *BroadcastOperator) Emit(event string, args ...any) error {
	if socketparser.ReservedEvents[event] {
		return errors.New("socket.io: \"" + event + "\" is a reserved event name")
	}

	data := append([]any{event}, args...)
	if len(data) == 0 {
		return nil
	}
	ack, withAck := data[len(data)-1].(Ack)
	if !withAck {
		b.adapter.Broadcast(&socketparser.Packet{Type: socketparser.EVENT, Data: data}, &BroadcastOptions{
			Rooms: b.rooms, Except: b.except, Flags: b.flags,
		})
		return nil
	}

	packet := &socketparser.Packet{Type: socketparser.EVENT, Data: data[:len(data)-1]}

	var timedOut atomic.Bool
	responses := types.NewSlice[[]any]()
	timeout := 5 * time.Second
	if b.flags.Timeout != nil {
		timeout = *b.flags.Timeout
	}
	timer := time.AfterFunc(timeout, func() {
		timedOut.Store(true)
		ack(flatten(responses.All()), errors.New("socket.io: operation has timed out"))
	})

	var expectedClients atomic.Uint64
	var receivedClients atomic.Uint64
	checkDone := func() {
		if !timedOut.Load() && receivedClients.Load() >= expectedClients.Load() {
			timer.Stop()
			ack(flatten(responses.All()), nil)
		}
	}

	b.adapter.BroadcastWithAck(packet, &BroadcastOptions{Rooms: b.rooms, Except: b.except, Flags: b.flags},
		func(clientCount uint64) {
			expectedClients.Add(clientCount)
			checkDone()
		},
		func(data []any, _ error) {
			responses.Push(data)
			receivedClients.Add(1)
			checkDone()
		},
	)
	return nil
}

func flatten(rows [][]any) []any {
	var out []any
	for _, r := range rows {
		out = append(out, r)
	}
	return out
}

// FetchSockets resolves the sockets the operator currently addresses.
func (b *BroadcastOperator) FetchSockets() []SocketDetails {
	return b.adapter.FetchSockets(&BroadcastOptions{Rooms: b.rooms, Except: b.except, Flags: b.flags})
}

func (b *BroadcastOperator) SocketsJoin(rooms ...Room) {
	b.adapter.AddSockets(&BroadcastOptions{Rooms: b.rooms, Except: b.except, Flags: b.flags}, rooms)
}

func (b *BroadcastOperator) SocketsLeave(rooms ...Room) {
	b.adapter.DelSockets(&BroadcastOptions{Rooms: b.rooms, Except: b.except, Flags: b.flags}, rooms)
}

func (b *BroadcastOperator) DisconnectSockets(closeConn bool) {
	b.adapter.DisconnectSockets(&BroadcastOptions{Rooms: b.rooms, Except: b.except, Flags: b.flags}, closeConn)
}
