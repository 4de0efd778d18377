package utils

import (
	"crypto/rand"
	"encoding/base64"
	"sync/atomic"
)

// base64Id generates process-unique, URL-safe opaque identifiers: 15 random
// bytes plus a monotonic sequence counter, base64url-encoded. Used for the
// Engine.IO "sid" (spec.md §4.B) and for Socket.IO protocol-v4 socket ids
// that must not reuse the underlying sid (spec.md §3, Socket.IO socket).
type base64Id struct {
	sequence atomic.Uint64
}

var defaultBase64Id = &base64Id{}

// Base64Id returns the shared generator.
func Base64Id() *base64Id {
	return defaultBase64Id
}

// GenerateId returns a new opaque identifier.
func (b *base64Id) GenerateId() (string, error) {
	buf := make([]byte, 15)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	id := base64.RawURLEncoding.EncodeToString(buf)
	seq := b.sequence.Add(1) - 1
	if seq == 0 {
		return id, nil
	}
	return id + encodeSequence(seq), nil
}

// encodeSequence renders n in a base64url-safe alphabet so the sequence
// suffix never introduces characters callers need to re-escape.
func encodeSequence(n uint64) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	if n == 0 {
		return string(alphabet[0])
	}
	var out []byte
	base := uint64(len(alphabet))
	for n > 0 {
		out = append([]byte{alphabet[n%base]}, out...)
		n /= base
	}
	return string(out)
}
