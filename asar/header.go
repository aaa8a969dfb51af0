// Package asar implements the archive container format: a u32 little-endian
// length-prefixed compact JSON header describing a file tree with byte
// offsets and sizes, followed by the concatenated file contents.
//
// The format is consumed by a fixed external reader, so the prefix width,
// endianness, compactness, forward-slash paths and string-encoded offsets
// must match exactly.
package asar

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ConflictError reports two entries claiming incompatible header positions:
// one wants a file where the other already created a directory, or the
// reverse.
type ConflictError struct {
	Path     string
	Existing string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("asar: entry %q conflicts with existing entry %q", e.Path, e.Existing)
}

// Integrity carries the checksum block recorded per file in the header.
type Integrity struct {
	Algorithm string   `json:"algorithm"`
	Hash      string   `json:"hash"`
	BlockSize int      `json:"blockSize"`
	Blocks    []string `json:"blocks"`
}

// node is one header tree position, either a directory (children non-nil)
// or a file.
type node struct {
	children map[string]*node

	size       int64
	offset     int64
	executable bool
	integrity  *Integrity
}

func newDir() *node {
	return &node{children: map[string]*node{}}
}

func (n *node) isDir() bool { return n.children != nil }

// sortedNames returns the child names in byte-wise order; this is the
// deterministic traversal order used for offsets and the data section.
func (n *node) sortedNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// tree builds the header incrementally from flat archive paths.
type tree struct {
	root *node
}

func newTree() *tree {
	return &tree{root: newDir()}
}

// insert adds a file node at the slash-separated path, creating directory
// nodes as needed. A file/directory mismatch anywhere along the path is a
// *ConflictError naming both entries.
func (t *tree) insert(path string, file *node) error {
	segments := strings.Split(path, "/")
	cur := t.root
	for i, seg := range segments[:len(segments)-1] {
		child, ok := cur.children[seg]
		if !ok {
			child = newDir()
			cur.children[seg] = child
		} else if !child.isDir() {
			return &ConflictError{Path: path, Existing: strings.Join(segments[:i+1], "/")}
		}
		cur = child
	}

	name := segments[len(segments)-1]
	if existing, ok := cur.children[name]; ok && existing.isDir() {
		return &ConflictError{Path: path, Existing: path}
	}
	cur.children[name] = file
	return nil
}

// walkFiles visits every file node in deterministic traversal order:
// directories before their children, children in sorted name order.
func (t *tree) walkFiles(visit func(path string, n *node)) {
	var walk func(prefix string, n *node)
	walk = func(prefix string, n *node) {
		for _, name := range n.sortedNames() {
			child := n.children[name]
			path := name
			if prefix != "" {
				path = prefix + "/" + name
			}
			if child.isDir() {
				walk(path, child)
			} else {
				visit(path, child)
			}
		}
	}
	walk("", t.root)
}

// jsonFile is the on-wire shape of a packed file node.
type jsonFile struct {
	Size       int64      `json:"size"`
	Offset     string     `json:"offset"`
	Executable bool       `json:"executable,omitempty"`
	Integrity  *Integrity `json:"integrity,omitempty"`
}

// MarshalJSON emits either the directory or the file wire shape. Map keys
// are serialized in sorted order by encoding/json, which matches the
// deterministic traversal order.
func (n *node) MarshalJSON() ([]byte, error) {
	if n.isDir() {
		return json.Marshal(struct {
			Files map[string]*node `json:"files"`
		}{Files: n.children})
	}
	return json.Marshal(jsonFile{
		Size:       n.size,
		Offset:     strconv.FormatInt(n.offset, 10),
		Executable: n.executable,
		Integrity:  n.integrity,
	})
}
