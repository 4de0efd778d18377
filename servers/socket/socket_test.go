package socket

import "testing"

func TestSocketJoinLeaveKeepsAdapterSymmetric(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")

	sock.Join("lobby")
	if !sock.Rooms().Has("lobby") {
		t.Fatal("expected socket to report the joined room")
	}
	if !ns.adapter.Rooms().Has("lobby") {
		t.Fatal("expected adapter to track the new room")
	}
	members, _ := ns.adapter.Rooms().Load("lobby")
	if !members.Has(sock.ID) {
		t.Fatal("expected adapter room membership to include the socket")
	}

	sock.Leave("lobby")
	if sock.Rooms().Has("lobby") {
		t.Fatal("expected socket to no longer report the left room")
	}
	if ns.adapter.Rooms().Has("lobby") {
		t.Fatal("expected an emptied room to be removed from the adapter")
	}
}

func TestSocketAlwaysMemberOfOwnIdentityRoom(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")
	if !sock.Rooms().Has(Room(sock.ID)) {
		t.Fatal("expected every socket to start in its own identity room")
	}
}

func TestSocketDataSlot(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")
	if sock.Data() != nil {
		t.Fatal("expected data slot to start nil")
	}
	sock.SetData(map[string]string{"userId": "42"})
	data, ok := sock.Data().(map[string]string)
	if !ok || data["userId"] != "42" {
		t.Fatalf("expected data slot round trip, got %v", sock.Data())
	}
}

func TestSocketHandleAckResolvesPendingAck(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")

	var gotData []any
	var gotErr error
	sock.registerAck(1, func(data []any, err error) {
		gotData = data
		gotErr = err
	})

	sock.handleAck(1, []any{"ok"})

	if gotErr != nil {
		t.Fatalf("expected no error, got %v", gotErr)
	}
	if len(gotData) != 1 || gotData[0] != "ok" {
		t.Fatalf("expected ack data to round trip, got %v", gotData)
	}

	// A second resolution for the same id is a no-op: the ack was consumed.
	called := false
	sock.registerAck(2, func([]any, error) { called = true })
	sock.handleAck(1, []any{"stale"})
	if called {
		t.Fatal("handleAck(1, ...) must not trigger an unrelated ack registered under id 2")
	}
}

func TestSocketDisconnectLeavesAllRoomsAndIsIdempotent(t *testing.T) {
	ns := newTestNamespace()
	sock := registerBareSocket(ns, "s1")
	sock.Join("lobby")

	var disconnectCount int
	sock.EventEmitter.On("disconnect", func(...any) { disconnectCount++ })

	sock.Disconnect(false)
	if sock.Connected() {
		t.Fatal("expected socket to be marked disconnected")
	}
	if ns.adapter.Rooms().Has("lobby") {
		t.Fatal("expected disconnect to leave every room")
	}

	sock.Disconnect(false)
	if disconnectCount != 1 {
		t.Fatalf("expected exactly one disconnect event, got %d", disconnectCount)
	}
}
