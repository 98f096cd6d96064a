package relay

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/settlers/internal/telemetry"
)

var (
	// ErrInboundClosed means every producer of the shared inbound queue is
	// gone, which only happens when the Bus itself was closed.
	ErrInboundClosed = errors.New("relay inbound queue closed")

	// ErrPeerNotFound is returned by policies when the destination peer is
	// no longer registered.
	ErrPeerNotFound = errors.New("relay peer not found")
)

// Loop is the single consumer of a Bus's inbound queue.
type Loop struct {
	bus    *Bus
	policy Policy
}

// NewLoop creates a loop draining bus and routing through policy. A nil policy
// echoes messages back to their source.
func NewLoop(bus *Bus, policy Policy) *Loop {
	if policy == nil {
		policy = EchoPolicy{Sender: bus}
	}
	return &Loop{bus: bus, policy: policy}
}

// Run processes messages until ctx is done, returning nil, or until the
// inbound queue is closed, returning ErrInboundClosed. Routing failures are
// logged and do not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	inbound := l.bus.Inbound()
	metrics := telemetry.GetMetrics()

	for {
		if ctx.Err() != nil {
			log.Debug().Msg("Graceful relay loop shutdown")
			return nil
		}

		msg, err := inbound.Receive(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrQueueClosed):
			return ErrInboundClosed
		case ctx.Err() != nil:
			continue
		default:
			log.Error().Err(err).Msg("Relay receive failed")
			continue
		}

		metrics.RelayMessagesTotal.Add(ctx, 1)

		if err := l.policy.Route(ctx, msg); err != nil {
			metrics.RelayRouteErrorsTotal.Add(ctx, 1)
			log.Warn().Err(err).Uint32("connection_id", uint32(msg.Source)).Msg("Relay route failed")
			continue
		}

		log.Debug().
			Uint32("connection_id", uint32(msg.Source)).
			Int("bytes", len(msg.Payload)).
			Msg("Relayed message")
	}
}
