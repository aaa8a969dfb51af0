package selector

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/epack/epack/pattern"
)

// ErrSymlinkCycle is returned when a symlink loop is found during the walk.
var ErrSymlinkCycle = errors.New("selector: symlink cycle")

// ErrEscapesRoot is returned when a copy definition points outside the
// declared source tree.
var ErrEscapesRoot = errors.New("selector: path escapes source root")

// SelectionError reports a failure while scanning the source tree. Partial
// selections are never returned; the first failure aborts the whole walk.
type SelectionError struct {
	Path string
	Op   string
	Err  error
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("select %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// FileSet re-roots a source subtree at a different archive path, with its
// own filter rules. A set whose filters contain no positive pattern gets an
// implicit "**/*".
type FileSet struct {
	From    string
	To      string
	Filters []string
}

// Options configure one selection pass.
type Options struct {
	// Rules are the ordered global include/exclude rules.
	Rules []pattern.Rule
	// AlwaysInclude lists roots kept when no rule matches (entry script,
	// manifest). Explicit excludes still veto them.
	AlwaysInclude []string
	// Sets are {from, to, filter} copy definitions evaluated after Rules.
	Sets []FileSet
	// Unpack classifies surviving files as Unpacked when it decides
	// Included. Nil means everything is Packed.
	Unpack *pattern.Matcher
}

// Select scans the tree under root and returns the deterministic selection.
// Symlinks are resolved; a symlink cycle, an unreadable file or a set
// escaping root aborts with a *SelectionError.
func Select(root string, opts Options) (*Set, error) {
	matcher, err := pattern.Compile(opts.Rules)
	if err != nil {
		return nil, err
	}
	policy := pattern.NewPolicy(matcher, opts.AlwaysInclude...)

	w := &walker{root: root, unpack: opts.Unpack}

	if err := w.walkDir(root, "", func(rel string) bool { return policy.Keep(rel) }, nil, nil); err != nil {
		return nil, err
	}

	for _, set := range opts.Sets {
		if err := w.walkSet(set); err != nil {
			return nil, err
		}
	}

	return newSet(w.entries), nil
}

// walker accumulates entries over one or more tree walks.
type walker struct {
	root    string
	unpack  *pattern.Matcher
	entries []Entry
}

// remap rewrites an archive path for file-set selection, nil for the
// global walk.
type remap func(rel string) string

func (w *walker) walkSet(set FileSet) error {
	from := filepath.FromSlash(strings.TrimPrefix(set.From, "/"))
	setRoot := filepath.Join(w.root, from)

	rel, err := filepath.Rel(w.root, setRoot)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return &SelectionError{Path: set.From, Op: "resolve", Err: ErrEscapesRoot}
	}

	filters := set.Filters
	if !hasPositiveFilter(filters) {
		filters = append([]string{"**/*"}, filters...)
	}
	m, err := pattern.Compile(pattern.ParseRules(filters))
	if err != nil {
		return err
	}

	var mapTo remap
	if set.To != "" {
		to := strings.Trim(set.To, "/")
		mapTo = func(rel string) string { return path.Join(to, rel) }
	} else if rel != "." {
		prefix := filepath.ToSlash(rel)
		mapTo = func(rel string) string { return path.Join(prefix, rel) }
	}

	return w.walkDir(setRoot, "", func(rel string) bool {
		return m.Decide(rel) == pattern.Included
	}, mapTo, nil)
}

// walkDir recursively enumerates regular files under dir, resolving
// symlinks and failing on cycles. rel is the slash-separated path of dir
// relative to the walk root; chain carries the resolved ancestor
// directories of the current descent.
func (w *walker) walkDir(dir, rel string, keep func(string) bool, mapTo remap, chain []string) error {
	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		return &SelectionError{Path: dir, Op: "resolve", Err: err}
	}
	for _, ancestor := range chain {
		if ancestor == resolved {
			return &SelectionError{Path: dir, Op: "walk", Err: ErrSymlinkCycle}
		}
	}
	chain = append(chain, resolved)

	dirents, err := os.ReadDir(dir)
	if err != nil {
		return &SelectionError{Path: dir, Op: "read dir", Err: err}
	}

	for _, d := range dirents {
		name := d.Name()
		childPath := filepath.Join(dir, name)
		childRel := name
		if rel != "" {
			childRel = rel + "/" + name
		}

		// Stat follows symlinks so linked files and directories are
		// selectable like regular ones. A broken link is a hard error.
		info, err := os.Stat(childPath)
		if err != nil {
			return &SelectionError{Path: childPath, Op: "stat", Err: err}
		}

		switch {
		case info.IsDir():
			if err := w.walkDir(childPath, childRel, keep, mapTo, chain); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if !keep(childRel) {
				continue
			}
			w.add(childPath, childRel, info, mapTo)
		default:
			// Sockets, devices and the like are never packable.
		}
	}
	return nil
}

func (w *walker) add(source, rel string, info fs.FileInfo, mapTo remap) {
	archivePath := rel
	if mapTo != nil {
		archivePath = mapTo(rel)
	}

	kind := Packed
	if w.unpack != nil && w.unpack.Decide(archivePath) == pattern.Included {
		kind = Unpacked
	}

	w.entries = append(w.entries, Entry{
		SourcePath:  source,
		ArchivePath: archivePath,
		Kind:        kind,
		Size:        info.Size(),
		Executable:  info.Mode().Perm()&0o111 != 0,
	})
}

func hasPositiveFilter(filters []string) bool {
	for _, f := range filters {
		if !strings.HasPrefix(f, "!") {
			return true
		}
	}
	return false
}
