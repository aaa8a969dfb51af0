package icons

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ICONDIR: reserved=0, type=1, then count 16-byte directory entries.
var icoMagic = []byte{0x00, 0x00, 0x01, 0x00}

const (
	icoHeaderSize = 6
	icoEntrySize  = 16
)

var errBadICO = errors.New("malformed ico container")

// extractICO pulls every PNG-payload entry out of an ICO container. Entries
// with BMP payloads cannot be converted and fail the pass; the source
// ecosystem ships PNG-payload icons exclusively.
func (g *Generator) extractICO(path string, data []byte, destDir string) error {
	if len(data) < icoHeaderSize {
		return &IconError{Path: path, Err: errBadICO}
	}
	count := int(binary.LittleEndian.Uint16(data[4:6]))
	if len(data) < icoHeaderSize+count*icoEntrySize {
		return &IconError{Path: path, Err: errBadICO}
	}

	for i := 0; i < count; i++ {
		entry := data[icoHeaderSize+i*icoEntrySize:]
		payloadSize := binary.LittleEndian.Uint32(entry[8:12])
		payloadOff := binary.LittleEndian.Uint32(entry[12:16])
		end := uint64(payloadOff) + uint64(payloadSize)
		if end > uint64(len(data)) {
			return &IconError{Path: path, Err: fmt.Errorf("%w: entry %d outside container", errBadICO, i)}
		}

		payload := data[payloadOff:end]
		if !bytes.HasPrefix(payload, pngMagic) {
			return &IconError{Path: path, Err: fmt.Errorf("entry %d: unsupported bitmap payload (expected png)", i)}
		}
		if err := g.emit(path, payload, destDir); err != nil {
			return err
		}
	}
	return nil
}
