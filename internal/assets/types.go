package assets

import (
	"sort"
	"sync"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int          `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// Pipeline compiles the browser client into the resource root before the
// resource cache scans it.
type Pipeline struct {
	config   Config
	metadata *BuildMetadata
	mu       sync.RWMutex
}

// New creates a new asset pipeline with the given configuration
func New(config Config) *Pipeline {
	return &Pipeline{
		config: config,
	}
}

// Outputs returns the sorted paths of every file written by the last build.
func (p *Pipeline) Outputs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil
	}

	paths := make([]string, 0, len(p.metadata.Outputs))
	for path := range p.metadata.Outputs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
