package engine

import "errors"

var (
	ErrTransportClosed  = errors.New("clients/engine: transport closed")
	ErrNoTransports     = errors.New("clients/engine: no transports configured")
	ErrHandshakeFailed  = errors.New("clients/engine: handshake failed")
	ErrNotOpen          = errors.New("clients/engine: socket is not open")
)
