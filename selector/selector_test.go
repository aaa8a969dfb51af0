package selector

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epack/epack/internal/testutil"
	"github.com/epack/epack/pattern"
)

func archivePaths(entries []Entry) []string {
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.ArchivePath)
	}
	return paths
}

func TestSelectScenario(t *testing.T) {
	t.Parallel()

	// Tree {a.js, b.txt, node_modules/x/index.js} with rules
	// [include **/*.js, exclude node_modules/**] selects only a.js.
	root := testutil.WriteTree(t, map[string]string{
		"a.js":                    "var a;",
		"b.txt":                   "text",
		"node_modules/x/index.js": "module.exports = {};",
	})

	set, err := Select(root, Options{
		Rules: pattern.ParseRules([]string{"**/*.js", "!node_modules/**"}),
	})
	require.NoError(t, err)

	require.Equal(t, []string{"a.js"}, archivePaths(set.Entries()))
	assert.Equal(t, Packed, set.Entries()[0].Kind)
	assert.Equal(t, int64(6), set.Entries()[0].Size)
}

func TestSelectUnpackScenario(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"a.js":                    "var a;",
		"b.txt":                   "text",
		"node_modules/x/index.js": "module.exports = {};",
	})

	unpack, err := pattern.Compile(pattern.ParseRules([]string{"a.js"}))
	require.NoError(t, err)

	set, err := Select(root, Options{
		Rules:  pattern.ParseRules([]string{"**/*.js", "!node_modules/**"}),
		Unpack: unpack,
	})
	require.NoError(t, err)

	require.Equal(t, 1, set.Len())
	assert.Equal(t, Unpacked, set.Entries()[0].Kind)
	assert.Empty(t, set.Packed())
	assert.Equal(t, []string{"a.js"}, archivePaths(set.Unpacked()))
}

func TestSelectDeterministicOrder(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"z.js":       "z",
		"a.js":       "a",
		"lib/m.js":   "m",
		"Zed.js":     "Z",
		"lib/a/x.js": "x",
	})

	set, err := Select(root, Options{Rules: pattern.ParseRules([]string{"**/*.js"})})
	require.NoError(t, err)

	// Byte-wise order: uppercase sorts before lowercase.
	assert.Equal(t, []string{"Zed.js", "a.js", "lib/a/x.js", "lib/m.js", "z.js"},
		archivePaths(set.Entries()))
}

func TestSelectAlwaysIncludedRoots(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"main.js":      "entry",
		"package.json": "{}",
		"stray.txt":    "stray",
	})

	set, err := Select(root, Options{
		Rules:         pattern.ParseRules([]string{"!**/*.txt"}),
		AlwaysInclude: []string{"main.js", "package.json"},
	})
	require.NoError(t, err)

	// Only exclude rules listed: the roots stay, everything else is
	// exclude-by-default.
	assert.Equal(t, []string{"main.js", "package.json"}, archivePaths(set.Entries()))
}

func TestSelectExecutableBit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no executable bit on windows")
	}
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"bin/tool": "#!/bin/sh\n",
		"plain.js": "x",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "bin", "tool"), 0o755))

	set, err := Select(root, Options{Rules: pattern.ParseRules([]string{"**/*"})})
	require.NoError(t, err)

	byPath := map[string]Entry{}
	for _, e := range set.Entries() {
		byPath[e.ArchivePath] = e
	}
	assert.True(t, byPath["bin/tool"].Executable)
	assert.False(t, byPath["plain.js"].Executable)
}

func TestSelectFileSets(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"build/bundle.js": "b",
		"build/junk.map":  "j",
		"assets/logo.png": "p",
	})

	set, err := Select(root, Options{
		Sets: []FileSet{
			{From: "build", To: "app", Filters: []string{"**/*.js"}},
			{From: "assets"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"app/bundle.js", "assets/logo.png"},
		archivePaths(set.Entries()))
}

func TestSelectFileSetImplicitFilter(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{
		"res/keep.dat": "k",
		"res/skip.log": "s",
	})

	// Only negative filters: an implicit **/* include is prepended.
	set, err := Select(root, Options{
		Sets: []FileSet{{From: "res", Filters: []string{"!**/*.log"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"res/keep.dat"}, archivePaths(set.Entries()))
}

func TestSelectFileSetEscapesRoot(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{"a.js": "a"})

	_, err := Select(root, Options{Sets: []FileSet{{From: "../outside"}}})
	var serr *SelectionError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrEscapesRoot)
}

func TestSelectSymlinkCycle(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation is restricted on windows")
	}
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{"dir/a.js": "a"})
	require.NoError(t, os.Symlink(root, filepath.Join(root, "dir", "loop")))

	_, err := Select(root, Options{Rules: pattern.ParseRules([]string{"**/*"})})
	var serr *SelectionError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrSymlinkCycle)
}

func TestSelectBrokenSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation is restricted on windows")
	}
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{"a.js": "a"})
	require.NoError(t, os.Symlink(filepath.Join(root, "gone"), filepath.Join(root, "dangling")))

	_, err := Select(root, Options{Rules: pattern.ParseRules([]string{"**/*"})})
	var serr *SelectionError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "stat", serr.Op)
}

func TestSelectResolvedSymlinkFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation is restricted on windows")
	}
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{"real.js": "content"})
	require.NoError(t, os.Symlink(filepath.Join(root, "real.js"), filepath.Join(root, "link.js")))

	set, err := Select(root, Options{Rules: pattern.ParseRules([]string{"**/*.js"})})
	require.NoError(t, err)

	// The link resolves to a regular file and is selected under its own name.
	assert.Equal(t, []string{"link.js", "real.js"}, archivePaths(set.Entries()))
}

func TestSelectMalformedRule(t *testing.T) {
	t.Parallel()

	root := testutil.WriteTree(t, map[string]string{"a.js": "a"})

	_, err := Select(root, Options{Rules: []pattern.Rule{{Glob: "[bad"}}})
	var perr *pattern.PatternError
	require.ErrorAs(t, err, &perr)
}

func TestSetDeduplicates(t *testing.T) {
	t.Parallel()

	s := newSet([]Entry{
		{ArchivePath: "a.js", SourcePath: "first"},
		{ArchivePath: "b.js", SourcePath: "only"},
		{ArchivePath: "a.js", SourcePath: "second"},
	})
	require.Equal(t, 2, s.Len())
	assert.Equal(t, "second", s.Entries()[0].SourcePath)
}
