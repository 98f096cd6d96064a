package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/settlers/internal/logger"
	"github.com/wolfeidau/settlers/internal/resources"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode."`
		Version kong.VersionFlag
		Root    string `help:"directory of public resources to pack" default:"public" type:"existingdir"`
		Out     string `help:"archive to write" default:"internal/resources/bundle/public.tar.zst"`
	}
)

func main() {
	cmd := kong.Parse(&cli,
		kong.Description("Pack public resources into the archive embedded by bundle builds."),
		kong.Vars{
			"version": version,
		})
	cmd.FatalIfErrorf(run())
}

func run() error {
	log := logger.Setup(cli.Debug)

	if err := os.MkdirAll(filepath.Dir(cli.Out), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// a failed run must not leave a truncated archive at cli.Out
	tmp, err := os.CreateTemp(filepath.Dir(cli.Out), ".bundle-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := resources.WriteBundle(tmp, cli.Root); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to set archive mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), cli.Out); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	// verify the archive round-trips before anything embeds it
	data, err := os.ReadFile(cli.Out)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	entries, err := resources.BundlePopulator{Data: data}.Populate()
	if err != nil {
		return fmt.Errorf("failed to verify archive: %w", err)
	}

	log.Info().
		Str("root", cli.Root).
		Str("out", cli.Out).
		Int("entries", len(entries)).
		Int("bytes", len(data)).
		Msg("Resource bundle written")
	return nil
}
