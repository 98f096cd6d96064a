package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// ErrNoEntryPoints is returned when the entry point glob matches nothing.
var ErrNoEntryPoints = errors.New("no entry points found")

// Build runs esbuild with the configured settings and loads metadata
func (p *Pipeline) Build() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entryPoints, err := filepath.Glob(p.config.EntryPointGlob)
	if err != nil {
		return fmt.Errorf("failed to match entry points: %w", err)
	}

	if len(entryPoints) == 0 {
		return fmt.Errorf("%w: %s", ErrNoEntryPoints, p.config.EntryPointGlob)
	}

	log.Info().Strs("entrypoints", entryPoints).Msg("Building client assets")

	result := api.Build(api.BuildOptions{
		EntryPoints:       entryPoints,
		Bundle:            true,
		Write:             true,
		Outdir:            p.config.OutputDir,
		Format:            api.FormatESModule,
		Target:            api.ES2020,
		Loader:            map[string]api.Loader{".wasm": api.LoaderFile},
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.config.SourceMap, api.SourceMapLinked, api.SourceMapNone),
		Metafile:          true,
	})

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			evt := log.Error().Str("error", msg.Text)
			if msg.Location != nil {
				evt = evt.Str("file", msg.Location.File).Int("line", msg.Location.Line)
			}
			evt.Msg("Build error")
		}
		return fmt.Errorf("esbuild failed with %d errors", len(result.Errors))
	}

	for _, file := range result.OutputFiles {
		log.Debug().Str("file", file.Path).Int("bytes", len(file.Contents)).Msg("Built file")
	}

	if p.config.MetafilePath != "" {
		if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0600); err != nil {
			return fmt.Errorf("failed to write metafile: %w", err)
		}
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return fmt.Errorf("failed to parse metafile: %w", err)
	}

	p.metadata = &metadata
	return nil
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
