// Package events re-exports the types.EventEmitter under the short names
// used across the transport and protocol layers, mirroring the teacher's
// pkg/events package (itself adapted from kataras/go-events).
package events

import "github.com/netpulse-io/socketio/pkg/types"

type (
	EventName    = types.EventName
	Listener     = types.EventListener
	EventEmitter = types.EventEmitter
)

// New returns a new, empty EventEmitter.
func New() EventEmitter {
	return types.NewEventEmitter()
}
