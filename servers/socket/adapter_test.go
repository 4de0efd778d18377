package socket

import (
	"testing"

	"github.com/netpulse-io/socketio/pkg/types"
)

func newTestNamespace() *namespace {
	server := &Server{
		EventEmitter:   types.NewEventEmitter(),
		adapterFactory: func(n Namespace) Adapter { return NewMemoryAdapter(n) },
		nsps:           types.NewMap[string, Namespace](),
		parentPatterns: types.NewSlice[string](),
		clients:        types.NewMap[string, *client](),
	}
	ns := newNamespace(server, "/test")
	server.nsps.Store(ns.Name(), ns)
	return ns
}

func registerBareSocket(ns *namespace, id SocketId) *Socket {
	s := newSocket(ns, id, nil, Handshake{})
	ns.sockets.Store(id, s)
	return s
}

func TestAdapterAddAllCreatesRoomAndJoinEvents(t *testing.T) {
	ns := newTestNamespace()
	var created, joined []any
	ns.adapter.On("create-room", func(args ...any) { created = args })
	ns.adapter.On("join-room", func(args ...any) { joined = args })

	ns.adapter.AddAll(SocketId("s1"), types.NewSet[Room]("lobby"))

	if len(created) == 0 || created[0] != Room("lobby") {
		t.Fatalf("expected create-room event for first joiner, got %v", created)
	}
	if len(joined) == 0 || joined[1] != SocketId("s1") {
		t.Fatalf("expected join-room event, got %v", joined)
	}
	if !ns.adapter.Rooms().Has("lobby") {
		t.Fatal("expected room to be tracked")
	}
}

func TestAdapterDelAllRemovesFromEveryRoomAndDeletesEmptyRooms(t *testing.T) {
	ns := newTestNamespace()
	var deletedRoom Room
	ns.adapter.On("delete-room", func(args ...any) { deletedRoom = args[0].(Room) })

	ns.adapter.AddAll(SocketId("s1"), types.NewSet[Room]("lobby", "game"))
	ns.adapter.DelAll(SocketId("s1"))

	if ns.adapter.Rooms().Has("lobby") || ns.adapter.Rooms().Has("game") {
		t.Fatal("expected both rooms to be removed once empty")
	}
	if deletedRoom == "" {
		t.Fatal("expected a delete-room event")
	}
	if rooms := ns.adapter.SocketRooms(SocketId("s1")); rooms != nil && rooms.Len() != 0 {
		t.Fatalf("expected no rooms left for s1, got %v", rooms.Keys())
	}
}

func TestAdapterSocketsUnionAcrossRoomsWithoutDuplicates(t *testing.T) {
	ns := newTestNamespace()
	registerBareSocket(ns, "s1")
	registerBareSocket(ns, "s2")
	registerBareSocket(ns, "s3")

	ns.adapter.AddAll("s1", types.NewSet[Room]("a", "b"))
	ns.adapter.AddAll("s2", types.NewSet[Room]("b"))
	ns.adapter.AddAll("s3", types.NewSet[Room]("c"))

	result := ns.adapter.Sockets(types.NewSet[Room]("a", "b"))
	if result.Len() != 2 || !result.Has("s1") || !result.Has("s2") {
		t.Fatalf("expected union of rooms a+b to be {s1, s2}, got %v", result.Keys())
	}
	if result.Has("s3") {
		t.Fatal("socket only in room c must not appear in a+b union")
	}
}

func TestAdapterSocketsAllWhenNoRoomsGiven(t *testing.T) {
	ns := newTestNamespace()
	registerBareSocket(ns, "s1")
	registerBareSocket(ns, "s2")
	ns.adapter.AddAll("s1", types.NewSet[Room]("a"))
	ns.adapter.AddAll("s2", types.NewSet[Room]("b"))

	result := ns.adapter.Sockets(types.NewSet[Room]())
	if result.Len() != 2 {
		t.Fatalf("expected every connected socket when no room filter given, got %v", result.Keys())
	}
}

func TestAdapterMemoryServerSideEmitUnsupported(t *testing.T) {
	ns := newTestNamespace()
	if err := ns.adapter.ServerSideEmit([]any{"event"}); err != ErrServerSideEmitUnsupported {
		t.Fatalf("expected ErrServerSideEmitUnsupported, got %v", err)
	}
}
