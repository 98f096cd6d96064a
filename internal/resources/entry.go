package resources

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/mr-tron/base58"
	"github.com/zeebo/blake3"
)

// Entry is one immutable cached resource.
type Entry struct {
	// Path is the slash separated key relative to the resource root.
	Path        string
	ContentType string
	// ETag is the quoted fingerprint of Body. The gzip representation uses
	// GzipETag instead.
	ETag string
	Body []byte
	// Gzip holds the gzip encoded Body, or nil when compression does not
	// apply or does not shrink the payload.
	Gzip []byte
}

// NewEntry fingerprints and pre-compresses raw.
func NewEntry(name string, raw []byte) (*Entry, error) {
	e := &Entry{
		Path:        name,
		ContentType: ContentType(name),
		ETag:        Fingerprint(raw),
		Body:        raw,
	}

	if len(raw) == 0 || !compressible(name) {
		return e, nil
	}

	encoded, err := gzipBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to compress %s: %w", name, err)
	}
	if len(encoded) < len(raw) {
		e.Gzip = encoded
	}

	return e, nil
}

// GzipETag returns the strong validator of the gzip representation, or an
// empty string when there is none.
func (e *Entry) GzipETag() string {
	if e.Gzip == nil {
		return ""
	}
	return strings.TrimSuffix(e.ETag, `"`) + `-gzip"`
}

// Fingerprint returns the quoted base58 BLAKE3 digest of raw, suitable for
// use as a strong ETag.
func Fingerprint(raw []byte) string {
	sum := blake3.Sum256(raw)
	return `"` + base58.Encode(sum[:]) + `"`
}

func gzipBytes(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
