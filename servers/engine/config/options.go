// Package config holds the Engine.IO server configuration record
// (spec.md §6 "CLI / server options").
package config

import (
	"net/http"
	"regexp"
	"time"
)

// CompressionKind selects the transparent compression filter applied to
// WebSocket frames and long-poll bodies (SPEC_FULL.md §B.1).
type CompressionKind string

const (
	CompressionNone    CompressionKind = ""
	CompressionGzip    CompressionKind = "gzip"
	CompressionDeflate CompressionKind = "deflate"
	CompressionBrotli  CompressionKind = "brotli"
)

// EncryptionAlgorithm selects the AES mode for the MESSAGE-packet
// encryption filter (SPEC_FULL.md §B.1).
type EncryptionAlgorithm string

const (
	EncryptionNone       EncryptionAlgorithm = ""
	EncryptionAES128GCM  EncryptionAlgorithm = "AES-128-GCM"
	EncryptionAES256GCM  EncryptionAlgorithm = "AES-256-GCM"
	EncryptionAES128CBC  EncryptionAlgorithm = "AES-128-CBC"
	EncryptionAES256CBC  EncryptionAlgorithm = "AES-256-CBC"
)

// Encryption configures the optional transport-level AES filter.
type Encryption struct {
	Key       string
	Algorithm EncryptionAlgorithm
}

// Cors mirrors the origin/methods/credentials policy from spec.md §6.
// Origin accepts string, []string, *regexp.Regexp, bool, or
// func(origin string) bool.
type Cors struct {
	Origin      any
	Methods     []string
	Headers     []string
	Credentials bool
}

// Options is the Engine.IO server configuration record (spec.md §6).
type Options struct {
	Host           string
	Port           int
	Path           string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	PollingTimeout time.Duration
	Transports     []string
	AllowPolling   bool
	AllowCORS      bool
	Cors           *Cors
	MaxConnections int
	Compression    CompressionKind
	Encryption     *Encryption
	MaxPacketSize  int64
	CheckOrigin    func(*http.Request) bool
}

// DefaultOptions returns the spec.md §6 defaults.
func DefaultOptions() *Options {
	return &Options{
		Host:           "0.0.0.0",
		Path:           "/socket.io/",
		PingInterval:   25 * time.Second,
		PingTimeout:    20 * time.Second,
		PollingTimeout: 60 * time.Second,
		Transports:     []string{"websocket", "polling"},
		AllowPolling:   true,
		AllowCORS:      true,
		MaxPacketSize:  10 << 20, // 10 MiB
	}
}

func (o *Options) WithHost(host string) *Options                     { o.Host = host; return o }
func (o *Options) WithPort(port int) *Options                        { o.Port = port; return o }
func (o *Options) WithPath(path string) *Options                     { o.Path = path; return o }
func (o *Options) WithPingInterval(d time.Duration) *Options         { o.PingInterval = d; return o }
func (o *Options) WithPingTimeout(d time.Duration) *Options          { o.PingTimeout = d; return o }
func (o *Options) WithPollingTimeout(d time.Duration) *Options       { o.PollingTimeout = d; return o }
func (o *Options) WithTransports(t []string) *Options                { o.Transports = t; return o }
func (o *Options) WithAllowPolling(v bool) *Options                  { o.AllowPolling = v; return o }
func (o *Options) WithCors(c *Cors) *Options                         { o.AllowCORS = true; o.Cors = c; return o }
func (o *Options) WithMaxConnections(n int) *Options                 { o.MaxConnections = n; return o }
func (o *Options) WithCompression(c CompressionKind) *Options        { o.Compression = c; return o }
func (o *Options) WithEncryption(e *Encryption) *Options             { o.Encryption = e; return o }
func (o *Options) WithMaxPacketSize(n int64) *Options                { o.MaxPacketSize = n; return o }

// AllowsTransport reports whether name is in the configured transport list.
func (o *Options) AllowsTransport(name string) bool {
	for _, t := range o.Transports {
		if t == name {
			return true
		}
	}
	return false
}

// OriginAllowed evaluates the Cors.Origin policy against a request Origin
// header value (spec.md §6 "the server echoes Origin when it satisfies the
// configured policy (string, array, or predicate)").
func (c *Cors) OriginAllowed(origin string) bool {
	if c == nil || origin == "" {
		return false
	}
	return originMatches(c.Origin, origin)
}

func originMatches(policy any, origin string) bool {
	switch v := policy.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v == "*" || v == origin
	case []string:
		for _, candidate := range v {
			if originMatches(candidate, origin) {
				return true
			}
		}
		return false
	case *regexp.Regexp:
		return v.MatchString(origin)
	case func(string) bool:
		return v(origin)
	default:
		return false
	}
}

// AdaptivePollingTimeout implements spec.md §4.B's load-based shortening of
// the parked long-poll GET timeout.
func AdaptivePollingTimeout(base time.Duration, liveSessions int) time.Duration {
	switch {
	case liveSessions <= 1000:
		return base
	case liveSessions <= 5000:
		return 54 * time.Second
	case liveSessions <= 10000:
		return 45 * time.Second
	default:
		return 30 * time.Second
	}
}
