// Package icons converts source icon containers (ICO, ICNS, standalone PNG)
// into the per-size PNG set consumed by desktop integration, plus a
// size-list manifest.
package icons

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// IconError reports a failure while reading or converting a source image.
// Icon failures are fatal for the build but independent of archive
// correctness.
type IconError struct {
	Path string
	Err  error
}

func (e *IconError) Error() string {
	return fmt.Sprintf("icon %q: %v", e.Path, e.Err)
}

func (e *IconError) Unwrap() error { return e.Err }

// Size is one emitted icon resolution.
type Size struct {
	Width  uint32
	Height uint32
}

// String returns the "WxH" form used in file names and the size list.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// SizeListName is the manifest file enumerating the emitted resolutions.
const SizeListName = "size-list"

// Report lists what a generation pass produced.
type Report struct {
	// Sizes are the distinct emitted resolutions, sorted ascending.
	Sizes []Size
	// Files are the emitted PNG paths, matching Sizes order.
	Files []string
}

// Generator extracts PNG images from source icon locations. The first
// source providing a given size wins; later duplicates are skipped.
type Generator struct {
	seen map[Size]bool
}

// NewGenerator returns an empty generator.
func NewGenerator() *Generator {
	return &Generator{seen: map[Size]bool{}}
}

// Generate converts every location (a file, or a directory of PNGs) and
// writes one optimized WxH.png per distinct size into destDir, plus a
// size-list file enumerating the sizes. Unrecognized file contents are
// skipped; unreadable or undecodable recognized containers fail the pass.
func (g *Generator) Generate(locations []string, destDir string) (*Report, error) {
	for _, location := range locations {
		info, err := os.Stat(location)
		if err != nil {
			return nil, &IconError{Path: location, Err: err}
		}
		if info.IsDir() {
			dirents, err := os.ReadDir(location)
			if err != nil {
				return nil, &IconError{Path: location, Err: err}
			}
			for _, d := range dirents {
				if d.IsDir() {
					continue
				}
				if err := g.handleFile(filepath.Join(location, d.Name()), destDir); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := g.handleFile(location, destDir); err != nil {
			return nil, err
		}
	}

	sizes := make([]Size, 0, len(g.seen))
	for s := range g.seen {
		sizes = append(sizes, s)
	}
	sort.Slice(sizes, func(i, j int) bool {
		if sizes[i].Width != sizes[j].Width {
			return sizes[i].Width < sizes[j].Width
		}
		return sizes[i].Height < sizes[j].Height
	})

	report := &Report{Sizes: sizes}
	lines := make([]string, 0, len(sizes))
	for _, s := range sizes {
		report.Files = append(report.Files, filepath.Join(destDir, s.String()+".png"))
		lines = append(lines, s.String())
	}
	listPath := filepath.Join(destDir, SizeListName)
	if err := os.WriteFile(listPath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return nil, &IconError{Path: listPath, Err: err}
	}
	return report, nil
}

// handleFile sniffs the container format by magic and dispatches. Files
// with an unknown magic are ignored, matching the tolerant ecosystem
// convention for icon directories.
func (g *Generator) handleFile(path, destDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &IconError{Path: path, Err: err}
	}

	switch {
	case bytes.HasPrefix(data, icnsMagic):
		return g.extractICNS(path, data, destDir)
	case bytes.HasPrefix(data, icoMagic):
		return g.extractICO(path, data, destDir)
	case bytes.HasPrefix(data, pngMagic):
		return g.emitPNG(path, data, destDir)
	default:
		return nil
	}
}

// emit writes one extracted PNG if its size has not been produced yet.
func (g *Generator) emit(sourcePath string, png []byte, destDir string) error {
	size, err := pngSize(png)
	if err != nil {
		return &IconError{Path: sourcePath, Err: err}
	}
	if g.seen[size] {
		return nil
	}
	g.seen[size] = true

	optimized, err := optimizePNG(png)
	if err != nil {
		return &IconError{Path: sourcePath, Err: err}
	}

	target := filepath.Join(destDir, size.String()+".png")
	if err := os.WriteFile(target, optimized, 0o644); err != nil {
		return &IconError{Path: target, Err: err}
	}
	return nil
}
