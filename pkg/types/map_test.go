package types

import "testing"

func TestMapLoadStoreDelete(t *testing.T) {
	m := NewMap[string, int]()
	m.Store("a", 1)
	if v, ok := m.Load("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}
	if v, loaded := m.LoadOrStore("a", 99); !loaded || v != 1 {
		t.Fatalf("expected LoadOrStore to return existing value 1, got %v %v", v, loaded)
	}
	if v, loaded := m.LoadOrStore("b", 2); loaded || v != 2 {
		t.Fatalf("expected LoadOrStore to store new value 2, got %v %v", v, loaded)
	}
	if v, ok := m.LoadAndDelete("a"); !ok || v != 1 {
		t.Fatalf("expected LoadAndDelete a=1, got %v %v", v, ok)
	}
	if m.Has("a") {
		t.Fatalf("expected a to be gone")
	}
	if m.Len() != 1 {
		t.Fatalf("expected len 1, got %d", m.Len())
	}
}

func TestMapRange(t *testing.T) {
	m := NewMap[int, string]()
	for i := 0; i < 5; i++ {
		m.Store(i, "x")
	}
	count := 0
	m.Range(func(int, string) bool {
		count++
		return true
	})
	if count != 5 {
		t.Fatalf("expected to visit 5 entries, saw %d", count)
	}
}
