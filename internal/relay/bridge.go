package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	httpx "github.com/wolfeidau/settlers/internal/http"
	"github.com/wolfeidau/settlers/internal/telemetry"
)

// BridgeConfig tunes the per-connection relay bridge.
type BridgeConfig struct {
	// MaxMessageSize caps a single incoming frame/message in bytes.
	MaxMessageSize int64
	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
	// PingInterval is how often keepalive pings are sent. Peers that stay
	// silent (no frames, no pongs) for twice this long are dropped.
	// Zero disables keepalives.
	PingInterval time.Duration
	// CheckOrigin validates the Origin header. Nil applies the websocket
	// package's same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// DefaultBridgeConfig returns the settings used when none are configured.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		MaxMessageSize: 64 * 1024, // 64KiB
		WriteTimeout:   10 * time.Second,
		PingInterval:   30 * time.Second,
	}
}

// Bridge upgrades relay requests and shuttles frames between the socket and
// the Bus.
type Bridge struct {
	bus      *Bus
	cfg      BridgeConfig
	upgrader websocket.Upgrader
}

// NewBridge creates a bridge registering peers on bus.
func NewBridge(bus *Bus, cfg BridgeConfig) *Bridge {
	return &Bridge{
		bus: bus,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// ServeHTTP validates the handshake, upgrades the connection and bridges it
// until either side fails.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	accept, err := ValidateHandshake(r)
	if err != nil {
		logger.Debug().Err(err).Msg("Rejected relay upgrade")
		httpx.StatusResponse(http.StatusBadRequest).Write(w)
		return
	}

	// Upgrade derives the same Sec-WebSocket-Accept token from the key and
	// writes it on the 101 response, so accept is only logged here.
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written an error response
		logger.Debug().Err(err).Msg("Upgrade relay connection failed")
		return
	}

	id, inbound, outbound, err := b.bus.Register()
	if err != nil {
		logger.Error().Err(err).Msg("Register relay peer failed")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, ""),
			time.Now().Add(b.cfg.WriteTimeout))
		_ = conn.Close()
		return
	}

	telemetry.GetMetrics().RelayUpgradesTotal.Add(r.Context(), 1)

	peerLog := logger.With().Uint32("connection_id", uint32(id)).Logger()
	peerLog.Debug().Str("accept", accept).Msg("Relay connection upgraded")

	b.serve(peerLog.WithContext(r.Context()), conn, id, inbound, outbound)
}

func (b *Bridge) serve(ctx context.Context, conn *websocket.Conn, id ConnectionID, inbound *Queue[Message], outbound *Queue[string]) {
	logger := zerolog.Ctx(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		b.bus.Deregister(id)
		if err := b.close(conn); err != nil {
			logger.Debug().Err(err).Msg("Close relay connection failed")
		}
	}()

	conn.SetReadLimit(b.cfg.MaxMessageSize)

	// buffered so the pump that loses the race never blocks after we return
	errc := make(chan error, 2)
	go func() { errc <- b.readPump(conn, id, inbound) }()
	go func() { errc <- b.writePump(ctx, conn, outbound) }()

	if b.cfg.PingInterval > 0 {
		go b.keepalive(ctx, conn)
	}

	err := <-errc
	switch {
	case errors.Is(err, ErrQueueClosed):
		logger.Warn().Msg("Relay queue closed unexpectedly")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		logger.Debug().Err(err).Msg("Relay connection lost")
	default:
		logger.Debug().Err(err).Msg("Relay connection finished")
	}
}

func (b *Bridge) readPump(conn *websocket.Conn, id ConnectionID, inbound *Queue[Message]) error {
	if b.cfg.PingInterval > 0 {
		deadline := 2 * b.cfg.PingInterval
		_ = conn.SetReadDeadline(time.Now().Add(deadline))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(deadline))
		})
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if b.cfg.PingInterval > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * b.cfg.PingInterval))
		}

		if messageType != websocket.TextMessage {
			continue
		}

		if err := inbound.Push(Message{Source: id, Payload: string(data)}); err != nil {
			return err
		}
	}
}

func (b *Bridge) writePump(ctx context.Context, conn *websocket.Conn, outbound *Queue[string]) error {
	for {
		payload, err := outbound.Receive(ctx)
		if err != nil {
			return err
		}

		_ = conn.SetWriteDeadline(time.Now().Add(b.cfg.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
			return err
		}
	}
}

func (b *Bridge) keepalive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.cfg.WriteTimeout)); err != nil {
				return
			}
		}
	}
}

// close sends a normal closure frame and releases the socket. A connection
// that is already closing is not an error.
func (b *Bridge) close(conn *websocket.Conn) error {
	err := conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(b.cfg.WriteTimeout))
	if errors.Is(err, websocket.ErrCloseSent) || errors.Is(err, net.ErrClosed) {
		err = nil
	}

	if closeErr := conn.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) && err == nil {
		err = closeErr
	}
	return err
}
