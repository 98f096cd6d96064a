package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/rs/zerolog"
	httpx "github.com/wolfeidau/settlers/internal/http"
	"github.com/wolfeidau/settlers/internal/store"
	"github.com/wolfeidau/settlers/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// MaxAPIBodySize is the default request ceiling for every route except
// upload_picture, which is bounded by the front end's overall limit instead.
const MaxAPIBodySize = 1024

// Route names.
const (
	RouteCheckToken     = "check_token"
	RouteCheckTokenTest = "check_token_test"
	RouteUploadPicture  = "upload_picture"
)

// ContentType is the media type of every encoded API body.
const ContentType = "application/x-protobuf"

// Handler answers one API call. body is the complete request body.
type Handler func(ctx context.Context, body []byte) *httpx.Response

// Deps are the collaborators API handlers use.
type Deps struct {
	Sessions store.SessionStore
	Users    store.UserStore
}

type route struct {
	handler Handler
	// exempt routes skip the API body ceiling
	exempt bool
}

// Router maps API names to handlers. The table is fixed at construction.
type Router struct {
	routes      map[string]route
	maxBodySize int64
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithMaxBodySize overrides MaxAPIBodySize.
func WithMaxBodySize(n int64) RouterOption {
	return func(rt *Router) {
		if n > 0 {
			rt.maxBodySize = n
		}
	}
}

// NewRouter builds the route table.
func NewRouter(deps Deps, opts ...RouterOption) *Router {
	h := &handlers{deps: deps}

	rt := &Router{
		routes: map[string]route{
			RouteCheckToken:     {handler: call(h.checkToken)},
			RouteCheckTokenTest: {handler: call(h.checkTokenTest)},
			RouteUploadPicture:  {handler: call(h.uploadPicture), exempt: true},
		},
		maxBodySize: MaxAPIBodySize,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Routes returns the sorted route names.
func (rt *Router) Routes() []string {
	names := make([]string, 0, len(rt.routes))
	for name := range rt.routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the named route against r. The declared body size is checked
// before any of the body is read.
func (rt *Router) Dispatch(ctx context.Context, name string, r *http.Request) *httpx.Response {
	rte, ok := rt.routes[name]
	if !ok {
		return httpx.StatusResponse(http.StatusNotFound)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "api."+name, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	resp := rt.dispatch(ctx, name, rte, r)

	attrs := metric.WithAttributes(attribute.String("route", name), attribute.Int("status", resp.Status))
	metrics := telemetry.GetMetrics()
	metrics.APICallsTotal.Add(ctx, 1, attrs)
	if resp.Status != http.StatusOK {
		metrics.APIErrorsTotal.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, http.StatusText(resp.Status))
	}

	return resp
}

func (rt *Router) dispatch(ctx context.Context, name string, rte route, r *http.Request) *httpx.Response {
	logger := zerolog.Ctx(ctx)

	if !rte.exempt && r.ContentLength > rt.maxBodySize {
		logger.Debug().
			Str("route", name).
			Int64("size", r.ContentLength).
			Int64("limit", rt.maxBodySize).
			Msg("API body too large")
		return httpx.StatusResponse(http.StatusRequestEntityTooLarge)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httpx.StatusResponse(http.StatusRequestEntityTooLarge)
		}
		logger.Warn().Err(err).Str("route", name).Msg("Failed to read API body")
		return httpx.StatusResponse(http.StatusInternalServerError)
	}

	return rte.handler(ctx, body)
}

// message is implemented by every request and result type.
type message interface {
	Marshal() []byte
	Unmarshal([]byte) error
}

// call adapts a typed handler to Handler: the body is decoded into P, a decode
// failure is a 400, a handler error is a 500, and the result is encoded into
// a 200 response.
func call[P any, R message, PP interface {
	*P
	message
}](fn func(ctx context.Context, params *P) (R, error)) Handler {
	return func(ctx context.Context, body []byte) *httpx.Response {
		params := PP(new(P))
		if err := params.Unmarshal(body); err != nil {
			zerolog.Ctx(ctx).Debug().Err(err).Msg("Read API params failed")
			return httpx.StatusResponse(http.StatusBadRequest)
		}

		result, err := fn(ctx, (*P)(params))
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("API handler failed")
			return httpx.StatusResponse(http.StatusInternalServerError)
		}

		resp := httpx.NewResponse(http.StatusOK, result.Marshal())
		resp.Header.Set("Content-Type", ContentType)
		return resp
	}
}
