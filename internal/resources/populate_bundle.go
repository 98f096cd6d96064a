//go:build bundle

package resources

import (
	_ "embed"
)

// bundleData is not checked in. Produce it before building with the tag:
//
//	go generate ./internal/resources
//	go build -tags bundle ./cmd/settlers
//
//go:embed bundle/public.tar.zst
var bundleData []byte

// Bundled reports whether resources are compiled into the binary.
const Bundled = true

// DefaultPopulator ignores root and reads the archive embedded at build time.
func DefaultPopulator(string) Populator {
	return BundlePopulator{Data: bundleData}
}
