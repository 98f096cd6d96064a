package relay

import (
	"context"
	"fmt"
)

// Sender delivers a payload to a single peer, reporting whether it was queued.
type Sender interface {
	Send(id ConnectionID, payload string) bool
}

// Policy decides where a message drained from the inbound queue goes.
type Policy interface {
	Route(ctx context.Context, msg Message) error
}

// EchoPolicy sends every message back to the peer that produced it.
type EchoPolicy struct {
	Sender Sender
}

// Route implements Policy.
func (p EchoPolicy) Route(_ context.Context, msg Message) error {
	if !p.Sender.Send(msg.Source, msg.Payload) {
		return fmt.Errorf("%w: %d", ErrPeerNotFound, msg.Source)
	}
	return nil
}

// BroadcastPolicy sends every message to all registered peers other than the
// source. Peers that disappear mid-broadcast are skipped.
type BroadcastPolicy struct {
	Bus *Bus
}

// Route implements Policy.
func (p BroadcastPolicy) Route(_ context.Context, msg Message) error {
	for _, id := range p.Bus.Peers() {
		if id == msg.Source {
			continue
		}
		p.Bus.Send(id, msg.Payload)
	}
	return nil
}

// NewPolicy returns the named routing policy bound to bus.
func NewPolicy(name string, bus *Bus) (Policy, error) {
	switch name {
	case "", PolicyEcho:
		return EchoPolicy{Sender: bus}, nil
	case PolicyBroadcast:
		return BroadcastPolicy{Bus: bus}, nil
	default:
		return nil, fmt.Errorf("unknown relay policy %q", name)
	}
}

// Routing policy names accepted by NewPolicy.
const (
	PolicyEcho      = "echo"
	PolicyBroadcast = "broadcast"
)
