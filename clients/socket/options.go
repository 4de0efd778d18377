package socket

import (
	"time"

	clientengine "github.com/netpulse-io/socketio/clients/engine"
)

const (
	defaultReconnectionDelay    = 1 * time.Second
	defaultReconnectionDelayMax = 5 * time.Second
	defaultRandomizationFactor  = 0.5
	// consecutiveErrorsBeforeCooldown is the spec.md §4.F "more than 10
	// consecutive errors" threshold that forces a full-minute wait.
	consecutiveErrorsBeforeCooldown = 10
	cooldownPeriod                  = 1 * time.Minute
)

// ManagerOptions configures reconnection policy and the underlying
// Engine.IO transport (spec.md §4.F "Smart reconnection").
type ManagerOptions struct {
	Reconnection         bool
	ReconnectionAttempts  int // 0 means unlimited
	ReconnectionDelay     time.Duration
	ReconnectionDelayMax  time.Duration
	RandomizationFactor   float64
	Engine                *clientengine.Options
}

func DefaultManagerOptions() *ManagerOptions {
	return &ManagerOptions{
		Reconnection:        true,
		ReconnectionDelay:    defaultReconnectionDelay,
		ReconnectionDelayMax: defaultReconnectionDelayMax,
		RandomizationFactor:  defaultRandomizationFactor,
		Engine:               clientengine.DefaultOptions(),
	}
}

func (o *ManagerOptions) withDefaults() *ManagerOptions {
	if o == nil {
		return DefaultManagerOptions()
	}
	out := *o
	if out.ReconnectionDelay <= 0 {
		out.ReconnectionDelay = defaultReconnectionDelay
	}
	if out.ReconnectionDelayMax <= 0 {
		out.ReconnectionDelayMax = defaultReconnectionDelayMax
	}
	if out.RandomizationFactor == 0 {
		out.RandomizationFactor = defaultRandomizationFactor
	}
	if out.Engine == nil {
		out.Engine = clientengine.DefaultOptions()
	}
	return &out
}

// SocketOptions configures a single namespace connection.
type SocketOptions struct {
	// Auth is sent as the CONNECT packet's payload.
	Auth any
}
