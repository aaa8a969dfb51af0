package icons

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

// optimizePNG rewrites a PNG with its IDAT stream re-deflated at best
// compression and non-essential ancillary chunks dropped. tRNS is kept
// because it changes rendered pixels. Returns the smaller of the rewritten
// and original encodings.
func optimizePNG(data []byte) ([]byte, error) {
	chunks, err := splitChunks(data)
	if err != nil {
		return nil, err
	}

	var idat bytes.Buffer
	kept := make([]pngChunk, 0, len(chunks))
	for _, c := range chunks {
		switch c.typ {
		case "IDAT":
			idat.Write(c.data)
		case "IHDR", "PLTE", "tRNS", "IEND":
			kept = append(kept, c)
		}
	}
	if idat.Len() == 0 {
		return nil, fmt.Errorf("png has no IDAT chunk")
	}

	recompressed, err := redeflate(idat.Bytes())
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.Write(pngMagic)
	for _, c := range kept {
		if c.typ == "IEND" {
			writeChunk(&out, "IDAT", recompressed)
		}
		writeChunk(&out, c.typ, c.data)
	}

	if out.Len() < len(data) {
		return out.Bytes(), nil
	}
	return data, nil
}

type pngChunk struct {
	typ  string
	data []byte
}

func splitChunks(data []byte) ([]pngChunk, error) {
	var chunks []pngChunk
	off := len(pngMagic)
	for off < len(data) {
		if off+8 > len(data) {
			return nil, errBadPNG
		}
		length := int(binary.BigEndian.Uint32(data[off : off+4]))
		typ := string(data[off+4 : off+8])
		end := off + 8 + length + 4
		if end > len(data) {
			return nil, errBadPNG
		}
		chunks = append(chunks, pngChunk{typ: typ, data: data[off+8 : off+8+length]})
		if typ == "IEND" {
			break
		}
		off = end
	}
	return chunks, nil
}

func redeflate(idat []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(idat))
	if err != nil {
		return nil, fmt.Errorf("decompress idat: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress idat: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("decompress idat: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("recompress idat: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("recompress idat: %w", err)
	}
	return buf.Bytes(), nil
}

func writeChunk(out *bytes.Buffer, typ string, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	out.Write(length[:])
	out.WriteString(typ)
	out.Write(data)

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	out.Write(sum[:])
}
