package frontend

import (
	"fmt"
	"net/http"
	"strings"

	"filippo.io/csrf"
	"github.com/felixge/httpsnoop"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	httpx "github.com/wolfeidau/settlers/internal/http"
	"github.com/wolfeidau/settlers/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Path sections, the first segment of the request path.
const (
	SectionPublic = "public"
	SectionAPI    = "api"
	SectionRelay  = "ws"

	indexPath  = "index.html"
	healthPath = "/health"
)

// Classify splits a request path into its section and the remainder. The
// root path maps to the static index page. hasSub reports whether a slash
// followed the section.
func Classify(p string) (section, sub string, hasSub bool) {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return SectionPublic, indexPath, true
	}
	return strings.Cut(p, "/")
}

// ServeHTTP enforces the body limits and dispatches by section.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == healthPath {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
		return
	}

	logger := zerolog.Ctx(r.Context())

	if r.ContentLength < 0 {
		s.reject(w, r, http.StatusLengthRequired)
		return
	}
	if s.cfg.MaxBodySize > 0 {
		if r.ContentLength > s.cfg.MaxBodySize {
			logger.Debug().Int64("size", r.ContentLength).Msg("request body exceeds limit")
			s.reject(w, r, http.StatusRequestEntityTooLarge)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodySize)
	}

	section, sub, hasSub := Classify(r.URL.Path)

	switch {
	case section == SectionPublic:
		s.servePublic(w, r, sub)
	case section == SectionAPI:
		s.api.ServeHTTP(w, r)
	case section == SectionRelay && !hasSub:
		s.relay.ServeHTTP(w, r)
	default:
		httpx.StatusResponse(http.StatusNotFound).Write(w)
	}
}

func (s *Server) servePublic(w http.ResponseWriter, r *http.Request, sub string) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	s.resources.Serve(r, sub).Write(w)
}

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	_, name, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	s.router.Dispatch(r.Context(), name, r).Write(w)
}

func (s *Server) reject(w http.ResponseWriter, r *http.Request, status int) {
	telemetry.GetMetrics().HTTPRejectedTotal.Add(r.Context(), 1,
		metric.WithAttributes(attribute.Int("status", status)))
	resp := httpx.StatusResponse(status)
	// the unread body makes the connection unusable for further requests
	resp.Header.Set("Connection", "close")
	resp.Write(w)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	resp := httpx.StatusResponse(http.StatusMethodNotAllowed)
	resp.Header.Set("Allow", strings.Join(allowed, ", "))
	resp.Write(w)
}

// newAPIHandler wraps the API section with cache prevention, CORS and
// cross-origin request protection. CORS origins are also trusted by the
// cross-origin check.
func newAPIHandler(origins []string, next http.Handler) (http.Handler, error) {
	protection := csrf.New()
	for _, origin := range origins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("failed to trust origin %q: %w", origin, err)
		}
	}

	h := protection.Handler(next)
	if len(origins) > 0 {
		h = withCORS(origins, h)
	}
	return httpx.NoStore()(h), nil
}

// withCORS adds CORS support to the API handler. An empty origin list would
// allow every origin, so callers only wrap when origins are configured.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return middleware.Handler(h)
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		attrs := metric.WithAttributes(
			attribute.String("section", sectionLabel(r.URL.Path)),
			attribute.Int("status", m.Code),
		)
		metrics := telemetry.GetMetrics()
		metrics.HTTPRequestsTotal.Add(r.Context(), 1, attrs)
		metrics.HTTPRequestDuration.Record(r.Context(), float64(m.Duration.Microseconds())/1000, attrs)
	})
}

func sectionLabel(p string) string {
	if p == healthPath {
		return "health"
	}
	switch section, _, _ := Classify(p); section {
	case SectionPublic, SectionAPI, SectionRelay:
		return section
	default:
		return "other"
	}
}
