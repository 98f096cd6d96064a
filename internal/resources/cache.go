package resources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	httpx "github.com/wolfeidau/settlers/internal/http"
	"github.com/wolfeidau/settlers/internal/telemetry"
)

// ErrInvalidPath is returned by CleanPath for keys that could escape the
// resource root or are not in canonical form.
var ErrInvalidPath = errors.New("invalid resource path")

// Cache is a read-only, in-memory map of resources built once at startup.
// It has no lock because it is never written after Load returns.
type Cache struct {
	entries map[string]*Entry
}

// Load populates a cache. Any error is fatal to startup.
func Load(p Populator) (*Cache, error) {
	entries, err := p.Populate()
	if err != nil {
		return nil, fmt.Errorf("failed to populate resource cache: %w", err)
	}

	var raw, encoded int
	for _, e := range entries {
		raw += len(e.Body)
		encoded += len(e.Gzip)
	}

	telemetry.GetMetrics().CacheEntries.Record(context.Background(), int64(len(entries)))
	log.Info().
		Int("entries", len(entries)).
		Int("bytes", raw).
		Int("gzip_bytes", encoded).
		Msg("Resource cache loaded")

	return &Cache{entries: entries}, nil
}

// Len returns the number of cached resources.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Paths returns the sorted cache keys.
func (c *Cache) Paths() []string {
	paths := make([]string, 0, len(c.entries))
	for p := range c.entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Lookup returns the entry for the relative path p.
func (c *Cache) Lookup(p string) (*Entry, bool) {
	key, err := CleanPath(p)
	if err != nil {
		return nil, false
	}
	e, ok := c.entries[key]
	return e, ok
}

// Serve answers a request for the resource at p.
func (c *Cache) Serve(r *http.Request, p string) *httpx.Response {
	ctx := r.Context()
	metrics := telemetry.GetMetrics()

	entry, ok := c.Lookup(p)
	if !ok {
		metrics.CacheMissesTotal.Add(ctx, 1)
		return httpx.StatusResponse(http.StatusNotFound)
	}
	metrics.CacheHitsTotal.Add(ctx, 1)

	gzipped := entry.Gzip != nil && acceptsGzip(r.Header.Values("Accept-Encoding"))
	etag := entry.ETag
	if gzipped {
		etag = entry.GzipETag()
	}

	if inm := r.Header.Get("If-None-Match"); etagMatches(inm, entry.ETag) || etagMatches(inm, entry.GzipETag()) {
		metrics.CacheNotModified.Add(ctx, 1)
		resp := httpx.NewResponse(http.StatusNotModified, nil)
		resp.Header.Set("ETag", etag)
		resp.Header.Set("Vary", "Accept-Encoding")
		return resp
	}

	resp := httpx.NewResponse(http.StatusOK, entry.Body)
	resp.Header.Set("Content-Type", entry.ContentType)
	resp.Header.Set("ETag", etag)
	resp.Header.Set("Vary", "Accept-Encoding")

	if gzipped {
		metrics.CacheGzipServed.Add(ctx, 1)
		resp.Body = entry.Gzip
		resp.Header.Set("Content-Encoding", "gzip")
	}

	return resp
}

// CleanPath validates a relative resource path and returns its cache key.
// Parent references, dot segments, absolute paths, backslashes, NUL bytes and
// volume names are all rejected.
func CleanPath(p string) (string, error) {
	switch {
	case strings.ContainsAny(p, "\\\x00"):
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	case len(p) >= 2 && p[1] == ':':
		return "", fmt.Errorf("%w: volume name in %q", ErrInvalidPath, p)
	case p == "." || !fs.ValidPath(p):
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return p, nil
}

// etagMatches implements the weak comparison If-None-Match uses.
func etagMatches(header, etag string) bool {
	if header == "" || etag == "" {
		return false
	}
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

func acceptsGzip(values []string) bool {
	for _, v := range values {
		for coding := range strings.SplitSeq(v, ",") {
			name, params, _ := strings.Cut(coding, ";")
			name = strings.TrimSpace(name)
			if !strings.EqualFold(name, "gzip") && name != "*" {
				continue
			}
			if qualityZero(params) {
				continue
			}
			return true
		}
	}
	return false
}

func qualityZero(params string) bool {
	for param := range strings.SplitSeq(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return err == nil && q == 0
	}
	return false
}
