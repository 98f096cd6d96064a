package assets

type Config struct {
	// Entry point glob pattern (e.g., "client/src/*.ts")
	EntryPointGlob string
	// Output directory for built files, normally the resource root's js folder
	OutputDir string
	// Path to metafile written next to the build output
	MetafilePath string
	// Whether to minify output
	Minify bool
	// Whether to enable source maps
	SourceMap bool
}

// DefaultConfig returns the layout used by the client tree: sources under
// client/src compiled into the served public/js folder.
func DefaultConfig() Config {
	return Config{
		EntryPointGlob: "client/src/*.ts",
		OutputDir:      "public/js",
		MetafilePath:   "public/js/meta.json",
		Minify:         true,
		SourceMap:      false,
	}
}
