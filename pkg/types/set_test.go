package types

import "testing"

func TestSetAddHasDelete(t *testing.T) {
	s := NewSet[string]("a", "b")
	if !s.Has("a") || !s.Has("b") {
		t.Fatalf("expected a and b to be members")
	}
	s.Add("c")
	if s.Len() != 3 {
		t.Fatalf("expected len 3, got %d", s.Len())
	}
	s.Delete("b")
	if s.Has("b") {
		t.Fatalf("expected b to be removed")
	}
	if s.Len() != 2 {
		t.Fatalf("expected len 2, got %d", s.Len())
	}
}

func TestSetUnion(t *testing.T) {
	a := NewSet[string]("r1", "r2")
	b := NewSet[string]("r2", "r3")
	u := a.Union(b)
	for _, want := range []string{"r1", "r2", "r3"} {
		if !u.Has(want) {
			t.Fatalf("expected union to contain %q", want)
		}
	}
	if u.Len() != 3 {
		t.Fatalf("expected union len 3, got %d", u.Len())
	}
}

func TestSetClearAndRange(t *testing.T) {
	s := NewSet[int](1, 2, 3)
	seen := map[int]bool{}
	s.Range(func(k int) bool {
		seen[k] = true
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("expected to visit 3 members, saw %d", len(seen))
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected empty set after Clear")
	}
}
