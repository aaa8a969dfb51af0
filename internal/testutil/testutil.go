// Package testutil provides shared helpers for building temporary source
// trees in tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteTree materializes files (slash-separated relative path to content)
// under a fresh temp directory and returns its path. Parent directories are
// created as needed.
func WriteTree(tb testing.TB, files map[string]string) string {
	tb.Helper()
	root := tb.TempDir()
	for rel, content := range files {
		WriteFile(tb, root, rel, content)
	}
	return root
}

// WriteFile writes one file under root, creating parent directories.
func WriteFile(tb testing.TB, root, rel, content string) {
	tb.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(tb, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(tb, os.WriteFile(full, []byte(content), 0o644))
}
