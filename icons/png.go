package icons

import (
	"encoding/binary"
	"errors"
)

var pngMagic = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}

var errBadPNG = errors.New("malformed png")

// pngSize reads the image dimensions from the IHDR chunk, which the PNG
// spec requires to come first.
func pngSize(data []byte) (Size, error) {
	// 8 magic + 4 length + "IHDR" + 8 dimension bytes.
	if len(data) < 24 || string(data[12:16]) != "IHDR" {
		return Size{}, errBadPNG
	}
	return Size{
		Width:  binary.BigEndian.Uint32(data[16:20]),
		Height: binary.BigEndian.Uint32(data[20:24]),
	}, nil
}

// emitPNG passes a standalone PNG through as its own size.
func (g *Generator) emitPNG(path string, data []byte, destDir string) error {
	return g.emit(path, data, destDir)
}
