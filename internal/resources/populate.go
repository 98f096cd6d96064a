package resources

//go:generate go run ../../cmd/settlers-bundle --root ../../public --out bundle/public.tar.zst

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// bundleArchive is written by go generate and embedded by the bundle build.
const bundleArchive = "bundle/public.tar.zst"

// Populator produces the full set of cache entries.
type Populator interface {
	Populate() (map[string]*Entry, error)
}

// DirPopulator reads every regular file below Root.
type DirPopulator struct {
	Root string
}

// Populate implements Populator.
func (d DirPopulator) Populate() (map[string]*Entry, error) {
	info, err := os.Stat(d.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat resource root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource root %s is not a directory", d.Root)
	}

	entries := make(map[string]*Entry)

	err = filepath.WalkDir(d.Root, func(name string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		if !de.Type().IsRegular() {
			log.Debug().Str("path", name).Msg("Skipping non regular resource")
			return nil
		}

		rel, err := filepath.Rel(d.Root, name)
		if err != nil {
			return err
		}

		key, err := CleanPath(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		entry, err := NewEntry(key, raw)
		if err != nil {
			return err
		}
		entries[key] = entry
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", d.Root, err)
	}

	return entries, nil
}

// BundlePopulator reads a zstd compressed tar archive written by WriteBundle.
type BundlePopulator struct {
	Data []byte
}

// Populate implements Populator.
func (b BundlePopulator) Populate() (map[string]*Entry, error) {
	if len(b.Data) == 0 {
		return nil, fmt.Errorf("resource bundle is empty, run go generate to write %s", bundleArchive)
	}

	zr, err := zstd.NewReader(bytes.NewReader(b.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to open resource bundle: %w", err)
	}
	defer zr.Close()

	entries := make(map[string]*Entry)
	tr := tar.NewReader(zr)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read resource bundle: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		key, err := CleanPath(path.Clean(filepath.ToSlash(hdr.Name)))
		if err != nil {
			return nil, fmt.Errorf("resource bundle: %w", err)
		}

		raw, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from resource bundle: %w", key, err)
		}

		entry, err := NewEntry(key, raw)
		if err != nil {
			return nil, err
		}
		entries[key] = entry
	}

	return entries, nil
}
