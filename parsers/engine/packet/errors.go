package packet

import (
	"encoding/base64"
	"errors"
)

var (
	ErrInvalidType   = errors.New("engine.io: invalid packet type")
	ErrEmptyPacket   = errors.New("engine.io: empty packet")
	ErrInvalidBinary = errors.New("engine.io: invalid base64 payload")
)

func encodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
