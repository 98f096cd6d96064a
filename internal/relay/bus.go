package relay

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	mrand "math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/settlers/internal/telemetry"
)

// maxIDAttempts bounds the rejection sampling loop in Register. With 32-bit
// identifiers a collision is vanishingly rare at realistic peer counts, so
// hitting this limit means the id source is broken.
const maxIDAttempts = 64

// ErrIDSpaceExhausted is returned by Register when no unused identifier could
// be found within maxIDAttempts draws.
var ErrIDSpaceExhausted = errors.New("unable to allocate connection id")

// ConnectionID identifies a live relay peer. It is unique among currently
// registered peers only.
type ConnectionID uint32

// Message is a text payload received from a peer.
type Message struct {
	Source  ConnectionID
	Payload string
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithIDSource overrides the random source used to draw connection ids.
func WithIDSource(next func() uint32) BusOption {
	return func(b *Bus) {
		b.nextID = next
	}
}

// Bus is the registry of connected relay peers. Every peer owns an outbound
// queue; all peers share one inbound queue drained by a Loop.
type Bus struct {
	mu      sync.Mutex
	peers   map[ConnectionID]*Queue[string]
	nextID  func() uint32
	inbound *Queue[Message]
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		peers:   make(map[ConnectionID]*Queue[string]),
		inbound: NewQueue[Message](),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.nextID == nil {
		b.nextID = newIDSource()
	}
	return b
}

// Register allocates a fresh connection id and outbound queue for a new peer.
// It returns the id, the shared inbound queue the peer publishes to, and the
// peer's own outbound queue.
func (b *Bus) Register() (ConnectionID, *Queue[Message], *Queue[string], error) {
	outbound := NewQueue[string]()

	b.mu.Lock()
	id, err := b.allocateLocked()
	if err != nil {
		b.mu.Unlock()
		return 0, nil, nil, err
	}
	b.peers[id] = outbound
	b.mu.Unlock()

	telemetry.GetMetrics().RelayPeersActive.Add(context.Background(), 1)
	log.Debug().Uint32("connection_id", uint32(id)).Msg("Registered relay peer")

	return id, b.inbound, outbound, nil
}

// Deregister removes the peer and closes its outbound queue. Removing an
// unknown id is a no-op.
func (b *Bus) Deregister(id ConnectionID) {
	b.mu.Lock()
	outbound, ok := b.peers[id]
	if ok {
		delete(b.peers, id)
	}
	b.mu.Unlock()

	if !ok {
		return
	}

	outbound.Close()
	telemetry.GetMetrics().RelayPeersActive.Add(context.Background(), -1)
	log.Debug().Uint32("connection_id", uint32(id)).Msg("Deregistered relay peer")
}

// Send queues payload for delivery to the peer id. It reports false when the
// peer is unknown or its outbound queue has been closed.
func (b *Bus) Send(id ConnectionID, payload string) bool {
	b.mu.Lock()
	outbound, ok := b.peers[id]
	b.mu.Unlock()

	if !ok {
		return false
	}

	if err := outbound.Push(payload); err != nil {
		log.Debug().Err(err).Uint32("connection_id", uint32(id)).Msg("Send to relay peer failed")
		return false
	}
	return true
}

// Peers returns a snapshot of the registered connection ids in no particular
// order.
func (b *Bus) Peers() []ConnectionID {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]ConnectionID, 0, len(b.peers))
	for id := range b.peers {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered peers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.peers)
}

// Inbound returns the shared queue every peer publishes to.
func (b *Bus) Inbound() *Queue[Message] {
	return b.inbound
}

// Close closes the shared inbound queue. A Loop draining it will return
// ErrInboundClosed once the remaining messages are consumed.
func (b *Bus) Close() {
	b.inbound.Close()
}

func (b *Bus) allocateLocked() (ConnectionID, error) {
	for range maxIDAttempts {
		id := ConnectionID(b.nextID())
		if _, taken := b.peers[id]; !taken {
			return id, nil
		}
	}
	return 0, ErrIDSpaceExhausted
}

// newIDSource returns a ChaCha8 generator seeded from the OS entropy source so
// ids are not trivially enumerable by clients.
func newIDSource() func() uint32 {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand.Read never returns an error on supported platforms
		binary.LittleEndian.PutUint64(seed[:], mrand.Uint64())
	}

	var mu sync.Mutex
	rng := mrand.NewChaCha8(seed)
	return func() uint32 {
		mu.Lock()
		defer mu.Unlock()
		return uint32(rng.Uint64())
	}
}
