package types

import (
	"reflect"
	"sync"
)

type (
	// EventName identifies a registered event.
	EventName string
	// EventListener receives the arguments passed to Emit.
	EventListener func(...any)
)

// EventEmitter is a synchronous, multi-listener event bus: Emit calls every
// registered listener, in registration order, on the caller's goroutine.
type EventEmitter interface {
	AddListener(EventName, ...EventListener) error
	On(EventName, ...EventListener) error
	Once(EventName, ...EventListener) error
	Emit(EventName, ...any)
	EventNames() []EventName
	ListenerCount(EventName) int
	Listeners(EventName) []EventListener
	RemoveListener(EventName, EventListener) bool
	RemoveAllListeners(EventName) bool
	Clear()
	Len() int
}

type listenerEntry struct {
	fn  EventListener
	ptr uintptr
}

type emitter struct {
	listeners Map[EventName, *Slice[*listenerEntry]]
}

// NewEventEmitter returns an empty EventEmitter.
func NewEventEmitter() EventEmitter {
	return &emitter{listeners: *NewMap[EventName, *Slice[*listenerEntry]]()}
}

func (e *emitter) addEntries(evt EventName, entries []*listenerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	bucket, _ := e.listeners.LoadOrStore(evt, NewSlice[*listenerEntry]())
	bucket.Push(entries...)
	return nil
}

func (e *emitter) AddListener(evt EventName, listeners ...EventListener) error {
	if len(listeners) == 0 {
		return nil
	}
	entries := make([]*listenerEntry, 0, len(listeners))
	for _, l := range listeners {
		if l == nil {
			continue
		}
		entries = append(entries, &listenerEntry{fn: l, ptr: reflect.ValueOf(l).Pointer()})
	}
	return e.addEntries(evt, entries)
}

func (e *emitter) On(evt EventName, listeners ...EventListener) error {
	return e.AddListener(evt, listeners...)
}

func (e *emitter) Once(evt EventName, listeners ...EventListener) error {
	entries := make([]*listenerEntry, 0, len(listeners))
	for _, l := range listeners {
		if l == nil {
			continue
		}
		l := l
		var once sync.Once
		var wrapped EventListener
		wrapped = func(args ...any) {
			once.Do(func() {
				defer e.RemoveListener(evt, l)
				l(args...)
			})
		}
		entries = append(entries, &listenerEntry{fn: wrapped, ptr: reflect.ValueOf(l).Pointer()})
	}
	return e.addEntries(evt, entries)
}

func (e *emitter) Emit(evt EventName, args ...any) {
	bucket, ok := e.listeners.Load(evt)
	if !ok {
		return
	}
	for _, entry := range bucket.All() {
		if entry != nil {
			entry.fn(args...)
		}
	}
}

func (e *emitter) EventNames() []EventName {
	return e.listeners.Keys()
}

func (e *emitter) ListenerCount(evt EventName) int {
	bucket, ok := e.listeners.Load(evt)
	if !ok {
		return 0
	}
	return bucket.Len()
}

func (e *emitter) Listeners(evt EventName) []EventListener {
	bucket, ok := e.listeners.Load(evt)
	if !ok {
		return nil
	}
	entries := bucket.All()
	out := make([]EventListener, len(entries))
	for i, entry := range entries {
		out[i] = entry.fn
	}
	return out
}

func (e *emitter) RemoveListener(evt EventName, listener EventListener) bool {
	if listener == nil {
		return false
	}
	bucket, ok := e.listeners.Load(evt)
	if !ok {
		return false
	}
	target := reflect.ValueOf(listener).Pointer()
	removed := bucket.RemoveFunc(func(entry *listenerEntry) bool {
		return entry.ptr == target
	})
	return removed > 0
}

func (e *emitter) RemoveAllListeners(evt EventName) bool {
	_, ok := e.listeners.LoadAndDelete(evt)
	return ok
}

func (e *emitter) Clear() {
	e.listeners.Clear()
}

func (e *emitter) Len() int {
	return e.listeners.Len()
}
