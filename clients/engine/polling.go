package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"resty.dev/v3"

	engineparser "github.com/netpulse-io/socketio/parsers/engine/parser"
	"github.com/netpulse-io/socketio/parsers/engine/packet"
)

// pollRequestTimeout bounds each individual long-poll GET; it is not the
// connection's lifetime, only a single request's (spec.md §4.F "an
// in-flight long-poll GET is cancelled on close()").
const pollRequestTimeout = 30 * time.Second

// pollQuietInterval is the pause between two successive GETs once one
// returns without blocking, so an eagerly-responding server (or a NOOP
// reply) does not turn the receive loop into a busy spin (spec.md §8
// "polling fairness").
const pollQuietInterval = 50 * time.Millisecond

// pollingTransport is the client-side HTTP long-polling leg (spec.md §3
// Transport "polling"), built on resty the way the rest of this module
// reaches for an HTTP client rather than hand-rolling one over net/http.
type pollingTransport struct {
	http *resty.Client
	uri  string
	opts *Options

	mu      sync.Mutex
	sid     string
	closed  bool
	cancel  context.CancelFunc
	pending []packet.Packet
}

func newPollingTransport(httpClient *resty.Client, uri string, opts *Options) *pollingTransport {
	return &pollingTransport{http: httpClient, uri: uri, opts: opts}
}

func (t *pollingTransport) Name() string { return "polling" }

func (t *pollingTransport) query(extra url.Values) url.Values {
	q := url.Values{}
	for k, v := range t.opts.Query {
		q[k] = v
	}
	q.Set("EIO", "4")
	q.Set("transport", "polling")
	for k, v := range extra {
		q[k] = v
	}
	return q
}

// Open performs the no-sid handshake GET and decodes the OPEN packet that
// comes back (spec.md §6 "GET <path>?transport=polling ... handshake").
func (t *pollingTransport) Open(ctx context.Context) (HandshakeData, error) {
	hctx, cancel := context.WithTimeout(ctx, t.opts.HandshakeTimeout)
	defer cancel()

	resp, err := t.http.R().
		SetContext(hctx).
		SetHeaderMultiValues(t.opts.ExtraHeaders).
		SetQueryParamsFromValues(t.query(nil)).
		Get(t.uri)
	if err != nil {
		return HandshakeData{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}
	packets, err := engineparser.DecodePayload(resp.String())
	if err != nil || len(packets) == 0 || packets[0].Type != packet.OPEN {
		return HandshakeData{}, ErrHandshakeFailed
	}

	var wire handshakeWire
	if err := json.Unmarshal([]byte(packets[0].Data), &wire); err != nil {
		return HandshakeData{}, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	t.mu.Lock()
	t.sid = wire.Sid
	t.mu.Unlock()

	return HandshakeData{
		Sid:          wire.Sid,
		Upgrades:     wire.Upgrades,
		PingInterval: time.Duration(wire.PingInterval) * time.Millisecond,
		PingTimeout:  time.Duration(wire.PingTimeout) * time.Millisecond,
		MaxPayload:   wire.MaxPayload,
	}, nil
}

// Send POSTs the packets as one framed payload body (spec.md §6 "POST
// <path>?sid=... long-poll send").
func (t *pollingTransport) Send(ctx context.Context, packets ...packet.Packet) error {
	t.mu.Lock()
	sid, closed := t.sid, t.closed
	t.mu.Unlock()
	if closed {
		return ErrTransportClosed
	}

	body, err := engineparser.EncodePayload(packets)
	if err != nil {
		return err
	}

	resp, err := t.http.R().
		SetContext(ctx).
		SetHeaderMultiValues(t.opts.ExtraHeaders).
		SetQueryParamsFromValues(t.query(url.Values{"sid": []string{sid}})).
		SetBody(body).
		Post(t.uri)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("clients/engine: poll send got status %d", resp.StatusCode())
	}
	return nil
}

// Receive issues one cancellable long-poll GET, decodes whatever payload
// comes back, and returns the first packet. The caller is expected to call
// Receive in a loop; the pollQuietInterval pause Receive takes after each
// GET keeps a fast-returning server from spinning the loop.
func (t *pollingTransport) Receive(ctx context.Context) (packet.Packet, error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		p := t.pending[0]
		t.pending = t.pending[1:]
		t.mu.Unlock()
		return p, nil
	}
	sid, closed := t.sid, t.closed
	t.mu.Unlock()
	if closed {
		return packet.Packet{}, ErrTransportClosed
	}

	pctx, cancel := context.WithTimeout(ctx, pollRequestTimeout)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	resp, err := t.http.R().
		SetContext(pctx).
		SetHeaderMultiValues(t.opts.ExtraHeaders).
		SetQueryParamsFromValues(t.query(url.Values{"sid": []string{sid}})).
		Get(t.uri)
	if err != nil {
		if ctx.Err() != nil {
			return packet.Packet{}, ErrTransportClosed
		}
		return packet.Packet{}, err
	}

	packets, err := engineparser.DecodePayload(resp.String())
	if err != nil || len(packets) == 0 {
		time.Sleep(pollQuietInterval)
		return packet.New(packet.NOOP, ""), nil
	}

	time.Sleep(pollQuietInterval)
	t.mu.Lock()
	t.pending = append(t.pending, packets[1:]...)
	t.mu.Unlock()
	return packets[0], nil
}

func (t *pollingTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}
