package utils

import "testing"

func TestBackoffGrowsExponentially(t *testing.T) {
	b := NewBackoff(WithMin(100), WithMax(10000), WithFactor(2))
	d1 := b.Duration()
	d2 := b.Duration()
	d3 := b.Duration()
	if d1 != 100 {
		t.Fatalf("expected first duration to equal min (100), got %d", d1)
	}
	if d2 != 200 {
		t.Fatalf("expected second duration to be 200, got %d", d2)
	}
	if d3 != 400 {
		t.Fatalf("expected third duration to be 400, got %d", d3)
	}
}

func TestBackoffClampsToMax(t *testing.T) {
	b := NewBackoff(WithMin(100), WithMax(300), WithFactor(2))
	for i := 0; i < 10; i++ {
		if d := b.Duration(); d > 300 {
			t.Fatalf("duration exceeded max: %d", d)
		}
	}
}

func TestBackoffResetRestartsSequence(t *testing.T) {
	b := NewBackoff(WithMin(100), WithMax(10000), WithFactor(2))
	b.Duration()
	b.Duration()
	b.Reset()
	if d := b.Duration(); d != 100 {
		t.Fatalf("expected duration to restart at min after Reset, got %d", d)
	}
}

func TestBackoffJitterStaysInBounds(t *testing.T) {
	b := NewBackoff(WithMin(100), WithMax(1000), WithFactor(2), WithJitter(0.5))
	for i := 0; i < 50; i++ {
		if d := b.Duration(); d < 100 || d > 1000 {
			t.Fatalf("jittered duration out of bounds: %d", d)
		}
	}
}
