package asar

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for container reading.
var (
	// ErrFormat is returned when the container bytes are malformed.
	ErrFormat = errors.New("asar: invalid container")

	// ErrNotFound is returned when a path is not present in the header.
	ErrNotFound = errors.New("asar: entry not found")
)

// Reader provides access to a parsed container. It is primarily used to
// verify round-trips; runtime consumption of the format happens in the
// external application loader.
type Reader struct {
	root *node
	data []byte
}

// Open parses a complete container.
func Open(container []byte) (*Reader, error) {
	if len(container) < 4 {
		return nil, fmt.Errorf("%w: short length prefix", ErrFormat)
	}
	headerLen := binary.LittleEndian.Uint32(container[:4])
	if uint64(headerLen)+4 > uint64(len(container)) {
		return nil, fmt.Errorf("%w: header length %d exceeds container", ErrFormat, headerLen)
	}

	headerJSON := container[4 : 4+headerLen]
	root, err := parseNode(headerJSON)
	if err != nil {
		return nil, err
	}
	if !root.isDir() {
		return nil, fmt.Errorf("%w: header root is not a directory", ErrFormat)
	}
	return &Reader{root: root, data: container[4+headerLen:]}, nil
}

// rawNode mirrors both wire shapes; Files is non-nil only for directories.
type rawNode struct {
	Files      map[string]json.RawMessage `json:"files"`
	Size       int64                      `json:"size"`
	Offset     *string                    `json:"offset"`
	Executable bool                       `json:"executable"`
	Integrity  *Integrity                 `json:"integrity"`
}

func parseNode(raw []byte) (*node, error) {
	var rn rawNode
	if err := json.Unmarshal(raw, &rn); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}

	if rn.Files != nil {
		n := newDir()
		for name, child := range rn.Files {
			parsed, err := parseNode(child)
			if err != nil {
				return nil, err
			}
			n.children[name] = parsed
		}
		return n, nil
	}

	if rn.Offset == nil {
		return nil, fmt.Errorf("%w: file node without offset", ErrFormat)
	}
	offset, err := strconv.ParseInt(*rn.Offset, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad offset %q", ErrFormat, *rn.Offset)
	}
	return &node{
		size:       rn.Size,
		offset:     offset,
		executable: rn.Executable,
		integrity:  rn.Integrity,
	}, nil
}

// lookup finds the node at a slash-separated path.
func (r *Reader) lookup(path string) (*node, error) {
	cur := r.root
	for _, seg := range strings.Split(path, "/") {
		if !cur.isDir() {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		next, ok := cur.children[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
		}
		cur = next
	}
	return cur, nil
}

// Info describes one packed file.
type Info struct {
	Size       int64
	Offset     int64
	Executable bool
	Integrity  *Integrity
}

// Stat returns the metadata recorded for a packed file.
func (r *Reader) Stat(path string) (Info, error) {
	n, err := r.lookup(path)
	if err != nil {
		return Info{}, err
	}
	if n.isDir() {
		return Info{}, fmt.Errorf("%w: %q is a directory", ErrNotFound, path)
	}
	return Info{Size: n.size, Offset: n.offset, Executable: n.executable, Integrity: n.integrity}, nil
}

// ReadFile returns the exact bytes of a packed file, sliced out of the data
// section by the header's offset and size.
func (r *Reader) ReadFile(path string) ([]byte, error) {
	info, err := r.Stat(path)
	if err != nil {
		return nil, err
	}
	end := info.Offset + info.Size
	if info.Offset < 0 || info.Size < 0 || end > int64(len(r.data)) {
		return nil, fmt.Errorf("%w: %q range [%d,%d) outside data section", ErrFormat, path, info.Offset, end)
	}
	return r.data[info.Offset:end], nil
}

// Paths lists every packed file in deterministic traversal order.
func (r *Reader) Paths() []string {
	t := &tree{root: r.root}
	var paths []string
	t.walkFiles(func(path string, _ *node) {
		paths = append(paths, path)
	})
	return paths
}
