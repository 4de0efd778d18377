package engine

import (
	"net/http"
	"net/url"
	"time"
)

const (
	defaultPath             = "/socket.io/"
	defaultHandshakeTimeout = 10 * time.Second
)

// Options configures a client-side Engine.IO Socket (spec.md §4.F).
type Options struct {
	// Path mirrors the server's configured path (default "/socket.io/").
	Path string
	// Transports lists the names tried in order, rotated on failure
	// ("websocket", "polling" per spec.md §4.F).
	Transports []string
	// Query is appended to every handshake/poll/websocket URL.
	Query url.Values
	// ExtraHeaders is sent with every polling request and the WebSocket
	// upgrade.
	ExtraHeaders http.Header
	// HandshakeTimeout bounds the initial OPEN handshake.
	HandshakeTimeout time.Duration
}

// DefaultOptions mirrors the teacher's client defaults.
func DefaultOptions() *Options {
	return &Options{
		Path:             defaultPath,
		Transports:       []string{"websocket", "polling"},
		HandshakeTimeout: defaultHandshakeTimeout,
	}
}

func (o *Options) withDefaults() *Options {
	if o == nil {
		return DefaultOptions()
	}
	out := *o
	if out.Path == "" {
		out.Path = defaultPath
	}
	if len(out.Transports) == 0 {
		out.Transports = []string{"websocket", "polling"}
	}
	if out.HandshakeTimeout <= 0 {
		out.HandshakeTimeout = defaultHandshakeTimeout
	}
	if out.Query == nil {
		out.Query = url.Values{}
	}
	if out.ExtraHeaders == nil {
		out.ExtraHeaders = http.Header{}
	}
	return &out
}
