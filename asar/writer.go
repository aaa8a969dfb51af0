package asar

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/errgroup"

	"github.com/epack/epack/selector"
)

// IntegrityBlockSize is the span covered by each block hash in a file's
// integrity record.
const IntegrityBlockSize = 4 * 1024 * 1024

// buildConfig holds configuration for archive building.
type buildConfig struct {
	logger          *slog.Logger
	readConcurrency int
	integrity       bool
}

// BuildOption configures archive building.
type BuildOption func(*buildConfig)

// BuildWithLogger sets a logger for build progress. Nil (the default)
// discards all output.
func BuildWithLogger(l *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = l
	}
}

// BuildWithReadConcurrency bounds the number of parallel file reads during
// data-section emission. Zero uses GOMAXPROCS; 1 forces serial reads.
func BuildWithReadConcurrency(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.readConcurrency = n
	}
}

// BuildWithIntegrity controls whether per-file SHA256 integrity records are
// written into the header. Enabled by default.
func BuildWithIntegrity(enabled bool) BuildOption {
	return func(cfg *buildConfig) {
		cfg.integrity = enabled
	}
}

// Archive is a fully built container, ready to persist. Building performs
// no filesystem writes; the output assembler decides where the bytes go.
type Archive struct {
	header []byte
	data   []byte
}

// Build serializes the packed entries into a container. Entries must be the
// Packed subset of one selection; offsets are assigned in deterministic
// header traversal order, so building the same selection twice yields
// byte-identical output.
//
// File contents are read with bounded I/O parallelism into per-entry slots,
// which cannot reorder the already-assigned offsets. Any read failure
// aborts the whole build.
func Build(ctx context.Context, entries []selector.Entry, opts ...BuildOption) (*Archive, error) {
	cfg := buildConfig{integrity: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	t := newTree()
	sources := make(map[string]string, len(entries))
	for _, e := range entries {
		n := &node{size: e.Size, executable: e.Executable}
		if err := t.insert(e.ArchivePath, n); err != nil {
			return nil, err
		}
		sources[e.ArchivePath] = e.SourcePath
	}

	// Offsets first, in traversal order, so reads can land in any order
	// without touching them.
	type slot struct {
		path   string
		source string
		node   *node
	}
	var slots []slot
	var total int64
	t.walkFiles(func(path string, n *node) {
		n.offset = total
		total += n.size
		slots = append(slots, slot{path: path, source: sources[path], node: n})
	})

	log.Debug("archive layout assigned", "files", len(slots), "data_size", total)

	contents := make([][]byte, len(slots))
	g, gctx := errgroup.WithContext(ctx)
	limit := cfg.readConcurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(limit)
	for i, s := range slots {
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(s.source)
			if err != nil {
				return fmt.Errorf("read %q: %w", s.source, err)
			}
			// A size change since selection would corrupt every
			// following offset.
			if int64(len(data)) != s.node.size {
				return fmt.Errorf("read %q: file changed during build (selected %d bytes, read %d)",
					s.source, s.node.size, len(data))
			}
			if cfg.integrity {
				s.node.integrity = computeIntegrity(data)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	header, err := json.Marshal(t.root)
	if err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}

	data := make([]byte, 0, total)
	for _, c := range contents {
		data = append(data, c...)
	}

	log.Info("archive built", "files", len(slots), "header_size", len(header), "data_size", len(data))
	return &Archive{header: header, data: data}, nil
}

// computeIntegrity hashes the whole file and each IntegrityBlockSize span.
func computeIntegrity(data []byte) *Integrity {
	integ := &Integrity{
		Algorithm: "SHA256",
		Hash:      digest.SHA256.FromBytes(data).Encoded(),
		BlockSize: IntegrityBlockSize,
	}
	for off := 0; ; off += IntegrityBlockSize {
		end := off + IntegrityBlockSize
		if end > len(data) {
			end = len(data)
		}
		integ.Blocks = append(integ.Blocks, digest.SHA256.FromBytes(data[off:end]).Encoded())
		if end == len(data) {
			break
		}
	}
	return integ
}

// Header returns the serialized JSON header.
func (a *Archive) Header() []byte { return a.header }

// DataSize returns the byte length of the data section.
func (a *Archive) DataSize() int64 { return int64(len(a.data)) }

// Size returns the total container size in bytes.
func (a *Archive) Size() int64 {
	return int64(4 + len(a.header) + len(a.data))
}

// Bytes returns the complete container: u32 little-endian header length,
// header JSON, data section.
func (a *Archive) Bytes() []byte {
	var buf bytes.Buffer
	buf.Grow(int(a.Size()))
	_, _ = a.WriteTo(&buf)
	return buf.Bytes()
}

// WriteTo writes the complete container to w.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(a.header)))

	var written int64
	for _, chunk := range [][]byte{prefix[:], a.header, a.data} {
		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
