package socket

import (
	"testing"
	"time"
)

func TestOfflineQueueDrainsInFIFOOrder(t *testing.T) {
	q := newOfflineQueue()
	q.push("a", nil)
	q.push("b", nil)
	q.push("c", nil)

	items := q.drain()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].event != "a" || items[1].event != "b" || items[2].event != "c" {
		t.Fatalf("expected FIFO order a,b,c, got %v,%v,%v", items[0].event, items[1].event, items[2].event)
	}
	if q.len() != 0 {
		t.Fatal("expected queue to be empty after drain")
	}
}

func TestOfflineQueueDropsOldestPastCapacity(t *testing.T) {
	q := newOfflineQueue()
	for i := 0; i < offlineQueueCapacity+10; i++ {
		q.push("e", nil)
	}
	if q.len() != offlineQueueCapacity {
		t.Fatalf("expected queue capped at %d, got %d", offlineQueueCapacity, q.len())
	}
}

func TestOfflineQueueDropsExpiredEntries(t *testing.T) {
	q := newOfflineQueue()
	q.mu.Lock()
	q.items = append(q.items, queuedEmit{event: "stale", timestamp: time.Now().Add(-2 * offlineQueueMaxAge)})
	q.items = append(q.items, queuedEmit{event: "fresh", timestamp: time.Now()})
	q.mu.Unlock()

	items := q.drain()
	if len(items) != 1 || items[0].event != "fresh" {
		t.Fatalf("expected only the fresh entry to survive, got %v", items)
	}
}
