package logger

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	httpx "github.com/wolfeidau/settlers/internal/http"
)

// Requests is an access logging middleware. Each request gets a child logger
// carrying a request id and the client address, reachable via zerolog.Ctx.
type Requests struct {
	logger zerolog.Logger
}

func NewRequests(logger zerolog.Logger) *Requests {
	return &Requests{logger: logger}
}

func (rq *Requests) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		requestID, err := uuid.NewV7()
		if err != nil {
			requestID = uuid.New()
		}

		ctx := rq.logger.With().
			Str("request_id", requestID.String()).
			Str("addr", httpx.ExtractClientIP(r)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger().WithContext(r.Context())

		var (
			status      = http.StatusOK
			written     int64
			wroteHeader bool
			hijacked    bool
		)

		hooked := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					if !wroteHeader {
						status = code
						wroteHeader = true
					}
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					wroteHeader = true
					n, err := next(b)
					written += int64(n)
					return n, err
				}
			},
			ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
				return func(src io.Reader) (int64, error) {
					wroteHeader = true
					n, err := next(src)
					written += n
					return n, err
				}
			},
			Hijack: func(next httpsnoop.HijackFunc) httpsnoop.HijackFunc {
				return func() (net.Conn, *bufio.ReadWriter, error) {
					conn, rw, err := next()
					if err == nil {
						hijacked = true
						status = http.StatusSwitchingProtocols
					}
					return conn, rw, err
				}
			},
		})

		next.ServeHTTP(hooked, r.WithContext(ctx))

		evt := zerolog.Ctx(ctx).Info()
		if status >= http.StatusInternalServerError {
			evt = zerolog.Ctx(ctx).Error()
		}

		evt.Int("status", status).
			Int64("bytes", written).
			Bool("hijacked", hijacked).
			Dur("duration", time.Since(started)).
			Msg("http request")
	})
}
