package socket

import "errors"

// Sentinel errors surfaced by the Socket.IO protocol layer (spec.md §7).
var (
	errTimeout            = errors.New("socket.io: ack timed out")
	ErrMiddlewareRejected = errors.New("socket.io: connection rejected by middleware")
	ErrUnknownNamespace   = errors.New("socket.io: unknown namespace")
	ErrAdapterError       = errors.New("socket.io: adapter error")
)
