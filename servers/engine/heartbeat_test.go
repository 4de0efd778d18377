package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestHeartbeatPingsSnapshotOnEachTick(t *testing.T) {
	sess := newSession("sid1", Handshake{}, newPollingTransport())
	var pings atomic.Int32
	pt := sess.Transport().(*pollingTransport)

	go func() {
		for pings.Load() < 2 {
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			_, err := pt.Drain(ctx)
			cancel()
			if err == nil {
				pings.Add(1)
			}
		}
	}()

	hb := newHeartbeat(20*time.Millisecond, 200*time.Millisecond)
	go hb.run(func() []*Session { return []*Session{sess} })
	defer hb.Close()

	deadline := time.After(time.Second)
	for pings.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("expected at least two PING deliveries before timing out")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHeartbeatCloseStopsLoop(t *testing.T) {
	hb := newHeartbeat(10*time.Millisecond, 100*time.Millisecond)
	called := make(chan struct{}, 100)
	go hb.run(func() []*Session {
		select {
		case called <- struct{}{}:
		default:
		}
		return nil
	})

	time.Sleep(30 * time.Millisecond)
	hb.Close()
	time.Sleep(20 * time.Millisecond)

	drained := len(called)
	time.Sleep(50 * time.Millisecond)
	if len(called) > drained+1 {
		t.Fatal("expected heartbeat loop to stop ticking after Close")
	}
}
