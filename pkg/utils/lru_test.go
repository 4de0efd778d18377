package utils

import "testing"

func TestLRUEvictsOldestOnOverflow(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3) // evicts "a", the least recently used

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b to survive, got %v %v", v, ok)
	}
	if v, ok := c.Get("c"); !ok || v != 3 {
		t.Fatalf("expected c to survive, got %v %v", v, ok)
	}
}

func TestLRUMoveToFrontOnHit(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a") // touch a, making b the least recently used
	c.Put("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted after a was touched")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to survive")
	}
}

func TestLRUGetOrCompute(t *testing.T) {
	c := NewLRU[string, int](10)
	calls := 0
	compute := func() int {
		calls++
		return 42
	}
	if v := c.GetOrCompute("k", compute); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
	if v := c.GetOrCompute("k", compute); v != 42 {
		t.Fatalf("expected cached 42, got %d", v)
	}
	if calls != 1 {
		t.Fatalf("expected compute to run once, ran %d times", calls)
	}
}
