package http

import (
	"net/http"
	"strconv"
)

// expiredTimestamp is an HTTP date already in the past.
const expiredTimestamp = "Thu, 01 Jan 1970 00:00:00 GMT"

// Response is the status, headers and body every subsystem produces before
// the front end writes it to the wire.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// NewResponse creates a response with an empty header set.
func NewResponse(status int, body []byte) *Response {
	return &Response{
		Status: status,
		Header: make(http.Header),
		Body:   body,
	}
}

// StatusResponse creates a plain text response whose body is the status text.
func StatusResponse(status int) *Response {
	resp := NewResponse(status, []byte(http.StatusText(status)))
	resp.Header.Set("Content-Type", "text/plain; charset=utf-8")
	return resp
}

// Write copies the response onto w. Content-Length is always set from the
// body so keep-alive connections stay framed.
func (r *Response) Write(w http.ResponseWriter) {
	h := w.Header()
	for k, v := range r.Header {
		h[k] = v
	}
	h.Set("Content-Length", strconv.Itoa(len(r.Body)))

	w.WriteHeader(r.Status)
	if len(r.Body) > 0 {
		_, _ = w.Write(r.Body)
	}
}

// SetNoStore marks the response as uncacheable by any intermediary.
func SetNoStore(h http.Header) {
	h.Set("Cache-Control", "no-store")
	h.Set("Expires", expiredTimestamp)
}
