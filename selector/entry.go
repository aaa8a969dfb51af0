// Package selector resolves include/exclude rules against a source tree and
// produces the ordered set of files to pack or copy.
//
// Selection runs once per build. The resulting Set is immutable and is the
// sole input to both the archive builder and the unpacked-file copier, so
// both always see the same file list regardless of concurrent filesystem
// changes after selection.
package selector

import "sort"

// Kind says where a selected file ends up.
type Kind uint8

const (
	// Packed files are stored inside the archive container.
	Packed Kind = iota
	// Unpacked files are copied verbatim beside the archive.
	Unpacked
)

// String returns the kind name.
func (k Kind) String() string {
	if k == Unpacked {
		return "unpacked"
	}
	return "packed"
}

// Entry is one selected file. ArchivePath is always a forward-slash
// relative path, independent of the host separator; the container format
// is consumed by a fixed external reader.
type Entry struct {
	SourcePath  string
	ArchivePath string
	Kind        Kind
	Size        int64
	Executable  bool
}

// Set is the ordered selection produced for one build, sorted by
// ArchivePath using byte-wise comparison.
type Set struct {
	entries []Entry
}

// newSet deduplicates by archive path (later entries override earlier
// ones, so file-set mappings outrank global globs) and sorts byte-wise.
func newSet(entries []Entry) *Set {
	byPath := make(map[string]int, len(entries))
	deduped := entries[:0]
	for _, e := range entries {
		if i, ok := byPath[e.ArchivePath]; ok {
			deduped[i] = e
			continue
		}
		byPath[e.ArchivePath] = len(deduped)
		deduped = append(deduped, e)
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].ArchivePath < deduped[j].ArchivePath
	})
	return &Set{entries: deduped}
}

// Entries returns all entries in deterministic order.
func (s *Set) Entries() []Entry { return s.entries }

// Len returns the number of selected files.
func (s *Set) Len() int { return len(s.entries) }

// Contains reports whether an entry with the given archive path was
// selected.
func (s *Set) Contains(archivePath string) bool {
	for _, e := range s.entries {
		if e.ArchivePath == archivePath {
			return true
		}
	}
	return false
}

// Packed returns the entries destined for the archive container, in order.
func (s *Set) Packed() []Entry {
	return s.filter(Packed)
}

// Unpacked returns the entries copied verbatim beside the archive, in order.
func (s *Set) Unpacked() []Entry {
	return s.filter(Unpacked)
}

func (s *Set) filter(kind Kind) []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
