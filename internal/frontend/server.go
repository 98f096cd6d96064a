package frontend

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/wolfeidau/settlers/internal/api"
	"github.com/wolfeidau/settlers/internal/logger"
	"github.com/wolfeidau/settlers/internal/resources"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/netutil"
)

// Config holds the listener and request limits of the front end.
type Config struct {
	// Addr is the host:port bound by ListenAndServe.
	Addr string
	// MaxBodySize rejects requests declaring a larger body. Zero disables
	// the check.
	MaxBodySize int64
	// MaxConnections caps concurrently accepted connections. Zero means
	// unlimited.
	MaxConnections int
	// ShutdownTimeout bounds the graceful drain once the context is done.
	ShutdownTimeout time.Duration
	// CertFile and KeyFile enable TLS when both are set.
	CertFile string
	KeyFile  string
	// CORSOrigins are allowed to call the API cross-origin.
	CORSOrigins []string
}

// Deps are the request handlers the front end dispatches to.
type Deps struct {
	Resources *resources.Cache
	Router    *api.Router
	Relay     http.Handler
	Logger    zerolog.Logger
}

// Server accepts connections and routes each request to the resource cache,
// the API router or the relay.
type Server struct {
	cfg       Config
	resources *resources.Cache
	router    *api.Router
	relay     http.Handler
	api       http.Handler
	log       zerolog.Logger
	tls       *tls.Config
	srv       *http.Server
}

// New builds a server. TLS material is loaded here so a bad certificate
// fails startup rather than the first handshake.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Resources == nil {
		return nil, errors.New("resource cache is required")
	}
	if deps.Router == nil {
		return nil, errors.New("api router is required")
	}
	if deps.Relay == nil {
		return nil, errors.New("relay handler is required")
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		cfg:       cfg,
		resources: deps.Resources,
		router:    deps.Router,
		relay:     deps.Relay,
		log:       deps.Logger,
	}

	apiHandler, err := newAPIHandler(cfg.CORSOrigins, http.HandlerFunc(s.serveAPI))
	if err != nil {
		return nil, err
	}
	s.api = apiHandler

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS key pair: %w", err)
		}
		s.tls = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
			NextProtos:   []string{"http/1.1"},
		}
	}

	handler := logger.NewRequests(s.log).Wrap(otelhttp.NewHandler(instrument(s), "settlers"))
	s.srv = newHTTPServer(cfg.Addr, handler, s.log)

	return s, nil
}

// Handler returns the complete request handler including access logging and
// instrumentation.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then stops accepting and
// waits up to ShutdownTimeout for in-flight requests. Upgraded relay
// connections are not tracked by the shutdown and run until their peers go.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	if s.tls != nil {
		ln = tls.NewListener(ln, s.tls)
	}

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.tls != nil).
		Int("max_connections", s.cfg.MaxConnections).
		Msg("Listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	s.log.Debug().Msg("Graceful http shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func newHTTPServer(addr string, handler http.Handler, log zerolog.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
		ErrorLog:          logger.StdLogger(log, zerolog.DebugLevel),
		// relay upgrades need HTTP/1.1
		TLSNextProto: map[string]func(*http.Server, *tls.Conn, http.Handler){},
	}
}
