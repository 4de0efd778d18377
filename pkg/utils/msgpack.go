package utils

import "github.com/vmihailenco/msgpack/v5"

// msgPack wraps vmihailenco/msgpack for the binary cluster-envelope
// encoding used by the Redis and Mongo adapters (spec.md §4.E).
type msgPack struct{}

var defaultMsgpack = &msgPack{}

func MsgPack() *msgPack { return defaultMsgpack }

func (m *msgPack) Encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (m *msgPack) Decode(data []byte, value any) error {
	return msgpack.Unmarshal(data, value)
}
