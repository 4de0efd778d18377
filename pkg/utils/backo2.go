package utils

import (
	"math"
	"math/rand/v2"
	"sync/atomic"
)

// Backoff is a thread-safe exponential backoff timer with jitter, used by
// the client Manager's smart-reconnection state machine (spec.md §4.F).
type Backoff struct {
	min      atomic.Uint64
	max      atomic.Uint64
	factor   atomic.Uint64
	jitter   atomic.Uint64
	attempts atomic.Uint64
}

type BackoffOption func(*Backoff)

const (
	defaultMin    = 100.0
	defaultMax    = 10_000.0
	defaultFactor = 2.0
	maxAttempts   = 63
)

func WithMin(min float64) BackoffOption {
	return func(b *Backoff) {
		if isValid(min) && min > 0 {
			storeFloat(&b.min, min)
		}
	}
}

func WithMax(max float64) BackoffOption {
	return func(b *Backoff) {
		if isValid(max) && max > 0 {
			storeFloat(&b.max, max)
		}
	}
}

func WithFactor(factor float64) BackoffOption {
	return func(b *Backoff) {
		if isValid(factor) && factor > 1 {
			storeFloat(&b.factor, factor)
		}
	}
}

func WithJitter(jitter float64) BackoffOption {
	return func(b *Backoff) {
		if isValid(jitter) && jitter >= 0 && jitter <= 1 {
			storeFloat(&b.jitter, jitter)
		}
	}
}

// NewBackoff builds a Backoff with the given options applied over the
// defaults (min 100ms, max 10s, factor 2).
func NewBackoff(opts ...BackoffOption) *Backoff {
	b := &Backoff{}
	storeFloat(&b.min, defaultMin)
	storeFloat(&b.max, defaultMax)
	storeFloat(&b.factor, defaultFactor)
	for _, opt := range opts {
		opt(b)
	}
	if b.GetMin() > b.GetMax() {
		storeFloat(&b.min, b.GetMax())
	}
	return b
}

func (b *Backoff) Attempts() uint64 { return b.attempts.Load() }

// Duration returns the next backoff duration in milliseconds and advances
// the attempt counter.
func (b *Backoff) Duration() int64 {
	attempt := min(b.attempts.Add(1)-1, maxAttempts)

	minVal := loadFloat(&b.min)
	maxVal := loadFloat(&b.max)
	factor := loadFloat(&b.factor)
	jitter := loadFloat(&b.jitter)

	duration := clamp(minVal*math.Pow(factor, float64(attempt)), minVal, maxVal)
	if jitter > 0 {
		offset := jitter * duration * (rand.Float64()*2 - 1)
		duration = clamp(duration+offset, minVal, maxVal)
	}
	return int64(duration)
}

func (b *Backoff) Reset() { b.attempts.Store(0) }

func (b *Backoff) SetMin(val float64) {
	if isValid(val) && val > 0 {
		storeFloat(&b.min, min(val, b.GetMax()))
	}
}

func (b *Backoff) SetMax(val float64) {
	if isValid(val) && val > 0 {
		storeFloat(&b.max, max(val, b.GetMin()))
	}
}

func (b *Backoff) SetJitter(val float64) {
	if isValid(val) && val >= 0 && val <= 1 {
		storeFloat(&b.jitter, val)
	}
}

func (b *Backoff) GetMin() float64    { return loadFloat(&b.min) }
func (b *Backoff) GetMax() float64    { return loadFloat(&b.max) }
func (b *Backoff) GetFactor() float64 { return loadFloat(&b.factor) }
func (b *Backoff) GetJitter() float64 { return loadFloat(&b.jitter) }

func storeFloat(target *atomic.Uint64, val float64) { target.Store(math.Float64bits(val)) }
func loadFloat(source *atomic.Uint64) float64        { return math.Float64frombits(source.Load()) }

func isValid(val float64) bool { return !math.IsNaN(val) && !math.IsInf(val, 0) }

func clamp(val, minVal, maxVal float64) float64 {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return maxVal
	}
	return max(minVal, min(val, maxVal))
}
