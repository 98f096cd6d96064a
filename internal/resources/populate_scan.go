//go:build !bundle

package resources

// Bundled reports whether resources are compiled into the binary.
const Bundled = false

// DefaultPopulator scans root on disk at startup. Builds tagged bundle embed
// the archive written by go generate instead.
func DefaultPopulator(root string) Populator {
	return DirPopulator{Root: root}
}
