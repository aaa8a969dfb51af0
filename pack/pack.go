// Package pack assembles a ready-to-install resource directory from a
// loaded application: the app.asar archive, unpacked files, extra
// resources, generated icons and a desktop entry.
package pack

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/epack/epack/app"
	"github.com/epack/epack/asar"
	"github.com/epack/epack/desktop"
	"github.com/epack/epack/icons"
	"github.com/epack/epack/internal/env"
	"github.com/epack/epack/selector"
)

// Output layout produced by a packing run.
const (
	ArchiveName     = "app.asar"
	UnpackedDirName = "app.asar.unpacked"
	IconsDirName    = "icons"
	ManifestName    = "package.json"
)

// Option configures a packing process.
type Option func(*Process)

// WithLogger sets the logger used for progress reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Process) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithEnvironment sets the target platform and architecture. Defaults to
// the host environment.
func WithEnvironment(e env.Environment) Option {
	return func(p *Process) { p.env = e }
}

// WithOutputDir overrides the configured output directory.
func WithOutputDir(dir string) Option {
	return func(p *Process) { p.outputDir = dir }
}

// WithAdditionalFiles appends file selection rules after the configured
// ones.
func WithAdditionalFiles(globs ...string) Option {
	return func(p *Process) { p.additionalFiles = append(p.additionalFiles, globs...) }
}

// WithAdditionalUnpack appends asar-unpack rules after the configured ones.
func WithAdditionalUnpack(globs ...string) Option {
	return func(p *Process) { p.additionalUnpack = append(p.additionalUnpack, globs...) }
}

// WithAdditionalExtraResources appends extra-resource rules after the
// configured ones.
func WithAdditionalExtraResources(globs ...string) Option {
	return func(p *Process) { p.additionalExtra = append(p.additionalExtra, globs...) }
}

// Process packs one application into one output directory.
type Process struct {
	app    *app.App
	env    env.Environment
	logger *slog.Logger

	outputDir        string
	additionalFiles  []string
	additionalUnpack []string
	additionalExtra  []string
}

// New builds a process for the given application.
func New(a *app.App, opts ...Option) *Process {
	p := &Process{
		app:    a,
		env:    env.Host(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes the artifacts written by a successful run.
type Result struct {
	OutputDir   string
	ArchiveSize int64
	Packed      int
	Unpacked    int
	Extras      int
	IconSizes   []icons.Size
}

// Run performs the full packing pipeline. Selection and artifact
// construction happen before anything is written, so a failing run leaves
// no partial output directory behind.
func (p *Process) Run(ctx context.Context) (*Result, error) {
	outputDir := p.outputDir
	if outputDir == "" {
		dir, err := p.app.OutputDir(p.env)
		if err != nil {
			return nil, err
		}
		outputDir = dir
	}
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(p.app.Root, outputDir)
	}

	selOpts, err := p.archiveSelection(outputDir)
	if err != nil {
		return nil, err
	}
	sel, err := selector.Select(p.app.Root, selOpts)
	if err != nil {
		return nil, fmt.Errorf("select application files: %w", err)
	}
	if main := p.app.Manifest.Main; main != "" && !sel.Contains(main) {
		return nil, fmt.Errorf("entry script %q not found under %s", main, p.app.Root)
	}
	p.logger.Info("selected application files",
		"packed", len(sel.Packed()),
		"unpacked", len(sel.Unpacked()))

	extras := &selector.Set{}
	extraOpts := p.extraSelection()
	if len(extraOpts.Rules) > 0 || len(extraOpts.Sets) > 0 {
		extras, err = selector.Select(p.app.Root, extraOpts)
		if err != nil {
			return nil, fmt.Errorf("select extra resources: %w", err)
		}
	}

	iconStage, err := os.MkdirTemp("", "epack-icons-*")
	if err != nil {
		return nil, fmt.Errorf("create icon staging directory: %w", err)
	}
	defer os.RemoveAll(iconStage)

	var (
		archive    *asar.Archive
		iconReport *icons.Report
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		a, err := asar.Build(groupCtx, sel.Packed(), asar.BuildWithLogger(p.logger))
		if err != nil {
			return fmt.Errorf("build archive: %w", err)
		}
		archive = a
		return nil
	})
	group.Go(func() error {
		locations, err := p.app.IconLocations(p.env)
		if err != nil {
			return err
		}
		if len(locations) == 0 {
			return nil
		}
		report, err := icons.NewGenerator().Generate(locations, iconStage)
		if err != nil {
			return fmt.Errorf("generate icons: %w", err)
		}
		iconReport = report
		return nil
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	manifest, err := p.app.PatchedManifest(p.env.Platform)
	if err != nil {
		return nil, err
	}
	entry, err := p.desktopEntry()
	if err != nil {
		return nil, err
	}

	if err := p.commit(outputDir, archive, sel, extras, iconStage, iconReport, manifest, entry); err != nil {
		return nil, err
	}

	result := &Result{
		OutputDir:   outputDir,
		ArchiveSize: archive.Size(),
		Packed:      len(sel.Packed()),
		Unpacked:    len(sel.Unpacked()),
		Extras:      extras.Len(),
	}
	if iconReport != nil {
		result.IconSizes = iconReport.Sizes
	}
	p.logger.Info("packing complete", "output", outputDir, "archive_bytes", archive.Size())
	return result, nil
}

func (p *Process) desktopEntry() (desktop.Entry, error) {
	cfg := p.app.Config
	executable, err := p.app.ExecutableName(p.env.Platform)
	if err != nil {
		return desktop.Entry{}, err
	}
	entry := desktop.Entry{
		ProductName:    p.app.ProductName(p.env.Platform),
		ExecutableName: executable,
		Description:    p.app.Description(p.env.Platform),
	}
	if category := p.app.Category(p.env.Platform); category != "" {
		entry.Categories = []string{category}
	}
	entry.Properties = p.app.SectionFor(p.env.Platform).DesktopProperties
	if len(entry.Properties) == 0 {
		entry.Properties = cfg.Base.DesktopProperties
	}
	for _, proto := range cfg.Protocols {
		entry.Protocols = append(entry.Protocols, desktop.ProtocolAssociation{
			Name:    proto.Name,
			Schemes: proto.Schemes,
		})
	}
	for _, assoc := range cfg.FileAssociations {
		entry.FileAssociations = append(entry.FileAssociations, desktop.FileAssociation{
			Ext:      assoc.Ext,
			MimeType: assoc.MimeType,
		})
	}
	return entry, nil
}

// commit writes every artifact into the output directory. The archive is
// already fully built in memory at this point.
func (p *Process) commit(
	outputDir string,
	archive *asar.Archive,
	sel, extras *selector.Set,
	iconStage string,
	iconReport *icons.Report,
	manifest []byte,
	entry desktop.Entry,
) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	archivePath := filepath.Join(outputDir, ArchiveName)
	f, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("create %s: %w", ArchiveName, err)
	}
	if _, err := archive.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", ArchiveName, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", ArchiveName, err)
	}
	p.logger.Debug("wrote archive", "path", archivePath, "bytes", archive.Size())

	unpackedRoot := filepath.Join(outputDir, UnpackedDirName)
	for _, e := range sel.Unpacked() {
		if err := copyEntry(e, filepath.Join(unpackedRoot, filepath.FromSlash(e.ArchivePath))); err != nil {
			return err
		}
	}
	for _, e := range extras.Entries() {
		if err := copyEntry(e, filepath.Join(outputDir, filepath.FromSlash(e.ArchivePath))); err != nil {
			return err
		}
	}

	if iconReport != nil {
		iconsDir := filepath.Join(outputDir, IconsDirName)
		staged := append(append([]string{}, iconReport.Files...), filepath.Join(iconStage, icons.SizeListName))
		for _, src := range staged {
			if err := copyFile(src, filepath.Join(iconsDir, filepath.Base(src)), 0o644); err != nil {
				return err
			}
		}
		p.logger.Debug("wrote icons", "count", len(iconReport.Sizes))
	}

	if err := os.WriteFile(filepath.Join(outputDir, ManifestName), manifest, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", ManifestName, err)
	}

	desktopName, err := p.app.DesktopName(p.env.Platform)
	if err != nil {
		return err
	}
	content := desktop.Generate(entry)
	if err := os.WriteFile(filepath.Join(outputDir, desktopName), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write desktop entry: %w", err)
	}
	p.logger.Debug("wrote desktop entry", "name", desktopName)
	return nil
}

func copyEntry(e selector.Entry, dst string) error {
	mode := fs.FileMode(0o644)
	if e.Executable {
		mode = 0o755
	}
	return copyFile(e.SourcePath, dst, mode)
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return nil
}
