package engine

import (
	"net/http"
	"net/url"
	"time"
)

// Handshake captures the request metadata recorded at session creation
// (spec.md §3 Session: "handshake").
type Handshake struct {
	Headers   http.Header
	Time      time.Time
	Address   string
	XDomain   bool
	Secure    bool
	Issued    int64
	URL       string
	Query     url.Values
}

func newHandshake(r *http.Request) Handshake {
	origin := r.Header.Get("Origin")
	return Handshake{
		Headers: r.Header.Clone(),
		Time:    time.Now(),
		Address: r.RemoteAddr,
		XDomain: origin != "",
		Secure:  r.TLS != nil,
		Issued:  time.Now().UnixMilli(),
		URL:     r.URL.String(),
		Query:   r.URL.Query(),
	}
}
