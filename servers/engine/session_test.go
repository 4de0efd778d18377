package engine

import (
	"testing"
	"time"
)

func TestSessionPingTimeoutClosesSession(t *testing.T) {
	sess := newSession("sid1", Handshake{}, newPollingTransport())
	closed := make(chan struct{})
	_ = sess.EventEmitter.On("close", func(...any) { close(closed) })

	sess.ping(30 * time.Millisecond)

	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("expected session to close after ping timeout")
	}
	if sess.State() != StateClosed {
		t.Fatalf("expected StateClosed, got %v", sess.State())
	}
}

func TestSessionOnPongCancelsTimeout(t *testing.T) {
	sess := newSession("sid2", Handshake{}, newPollingTransport())
	closed := make(chan struct{})
	_ = sess.EventEmitter.On("close", func(...any) { close(closed) })

	sess.ping(50 * time.Millisecond)
	sess.OnPong()

	select {
	case <-closed:
		t.Fatal("session closed despite a pong arriving before the timeout")
	case <-time.After(150 * time.Millisecond):
	}
	if sess.State() != StateConnected {
		t.Fatalf("expected StateConnected after pong, got %v", sess.State())
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	sess := newSession("sid3", Handshake{}, newPollingTransport())
	calls := 0
	_ = sess.EventEmitter.On("close", func(...any) { calls++ })

	if err := sess.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one close event, got %d", calls)
	}
}

func TestSessionUpgradeClosesOldTransport(t *testing.T) {
	sess := newSession("sid4", Handshake{}, newPollingTransport())
	oldTransport := sess.Transport()

	newTransport := newPollingTransport()
	if err := sess.Upgrade(newTransport); err != nil {
		t.Fatalf("Upgrade error: %v", err)
	}
	if sess.Transport() != Transport(newTransport) {
		t.Fatal("expected session to report the upgraded transport")
	}
	if oldTransport.State() != StateClosed {
		t.Fatal("expected old transport to be closed after upgrade")
	}
}
