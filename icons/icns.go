package icons

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ICNS: "icns" magic, u32 big-endian total length, then chunks of
// [4-byte type][u32 BE length including this 8-byte header][payload].
var icnsMagic = []byte("icns")

const icnsChunkHeader = 8

var errBadICNS = errors.New("malformed icns container")

// extractICNS pulls every PNG-encoded icon chunk out of an ICNS family.
// Legacy ARGB/RLE chunk types and mask chunks carry no PNG payload and are
// skipped.
func (g *Generator) extractICNS(path string, data []byte, destDir string) error {
	if len(data) < icnsChunkHeader {
		return &IconError{Path: path, Err: errBadICNS}
	}
	total := binary.BigEndian.Uint32(data[4:8])
	if uint64(total) > uint64(len(data)) {
		return &IconError{Path: path, Err: errBadICNS}
	}

	for off := icnsChunkHeader; off < int(total); {
		if off+icnsChunkHeader > int(total) {
			return &IconError{Path: path, Err: errBadICNS}
		}
		chunkType := string(data[off : off+4])
		chunkLen := int(binary.BigEndian.Uint32(data[off+4 : off+8]))
		if chunkLen < icnsChunkHeader || off+chunkLen > int(total) {
			return &IconError{Path: path, Err: fmt.Errorf("%w: chunk %q", errBadICNS, chunkType)}
		}

		payload := data[off+icnsChunkHeader : off+chunkLen]
		if bytes.HasPrefix(payload, pngMagic) {
			if err := g.emit(path, payload, destDir); err != nil {
				return err
			}
		}
		off += chunkLen
	}
	return nil
}
