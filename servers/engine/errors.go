package engine

import "errors"

// Sentinel errors surfaced by the Engine.IO transport/session/server layer
// (spec.md §7 "Error Handling Design").
var (
	ErrInvalidFraming    = errors.New("engine.io: invalid payload framing")
	ErrInvalidPacket     = errors.New("engine.io: invalid packet")
	ErrUnknownSession    = errors.New("engine.io: unknown session")
	ErrTransportClosed   = errors.New("engine.io: transport closed")
	ErrTransportError    = errors.New("engine.io: transport error")
	ErrPingTimeout       = errors.New("engine.io: ping timeout")
	ErrDecryptionFailed  = errors.New("engine.io: decryption failed")
	ErrPacketTooLarge    = errors.New("engine.io: packet exceeds maximum size")
	ErrUnsupportedUpgrade = errors.New("engine.io: unsupported transport upgrade")
)
