package icons

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodePNG renders a solid test image of the given dimensions.
func encodePNG(tb testing.TB, w, h int) []byte {
	tb.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0x80, A: 0xff})
		}
	}
	var buf bytes.Buffer
	require.NoError(tb, png.Encode(&buf, img))
	return buf.Bytes()
}

// encodeICO wraps PNG payloads in an ICO container.
func encodeICO(payloads ...[]byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint16(0))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(len(payloads)))

	offset := icoHeaderSize + icoEntrySize*len(payloads)
	for _, p := range payloads {
		buf.Write([]byte{0, 0, 0, 0})
		binary.Write(&buf, binary.LittleEndian, uint16(1))
		binary.Write(&buf, binary.LittleEndian, uint16(32))
		binary.Write(&buf, binary.LittleEndian, uint32(len(p)))
		binary.Write(&buf, binary.LittleEndian, uint32(offset))
		offset += len(p)
	}
	for _, p := range payloads {
		buf.Write(p)
	}
	return buf.Bytes()
}

// encodeICNS wraps PNG payloads in an ICNS family container.
func encodeICNS(payloads ...[]byte) []byte {
	var body bytes.Buffer
	for _, p := range payloads {
		body.WriteString("ic07")
		binary.Write(&body, binary.BigEndian, uint32(icnsChunkHeader+len(p)))
		body.Write(p)
	}

	var buf bytes.Buffer
	buf.WriteString("icns")
	binary.Write(&buf, binary.BigEndian, uint32(icnsChunkHeader+body.Len()))
	buf.Write(body.Bytes())
	return buf.Bytes()
}

func writeFixture(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	require.NoError(tb, os.WriteFile(path, data, 0o644))
	return path
}

func TestGenerateFromPNG(t *testing.T) {
	t.Parallel()

	src := writeFixture(t, "icon.png", encodePNG(t, 128, 128))
	dest := t.TempDir()

	report, err := NewGenerator().Generate([]string{src}, dest)
	require.NoError(t, err)

	require.Equal(t, []Size{{Width: 128, Height: 128}}, report.Sizes)
	require.Len(t, report.Files, 1)
	assert.FileExists(t, filepath.Join(dest, "128x128.png"))

	list, err := os.ReadFile(filepath.Join(dest, "size-list"))
	require.NoError(t, err)
	assert.Equal(t, "128x128", string(list))
}

func TestGenerateFromICO(t *testing.T) {
	t.Parallel()

	src := writeFixture(t, "app.ico", encodeICO(encodePNG(t, 16, 16), encodePNG(t, 32, 32)))
	dest := t.TempDir()

	report, err := NewGenerator().Generate([]string{src}, dest)
	require.NoError(t, err)

	assert.Equal(t, []Size{{Width: 16, Height: 16}, {Width: 32, Height: 32}}, report.Sizes)
	assert.FileExists(t, filepath.Join(dest, "16x16.png"))
	assert.FileExists(t, filepath.Join(dest, "32x32.png"))
}

func TestGenerateFromICNS(t *testing.T) {
	t.Parallel()

	src := writeFixture(t, "app.icns", encodeICNS(encodePNG(t, 256, 256), encodePNG(t, 512, 512)))
	dest := t.TempDir()

	report, err := NewGenerator().Generate([]string{src}, dest)
	require.NoError(t, err)

	assert.Equal(t, []Size{{Width: 256, Height: 256}, {Width: 512, Height: 512}}, report.Sizes)

	list, err := os.ReadFile(filepath.Join(dest, "size-list"))
	require.NoError(t, err)
	assert.Equal(t, "256x256\n512x512", string(list))
}

func TestGenerateDirectoryLocation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.png"), encodePNG(t, 10, 10), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.png"), encodePNG(t, 64, 64), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an icon"), 0o644))
	dest := t.TempDir()

	report, err := NewGenerator().Generate([]string{dir}, dest)
	require.NoError(t, err)

	assert.Equal(t, []Size{{Width: 10, Height: 10}, {Width: 64, Height: 64}}, report.Sizes)
}

func TestGenerateFirstSourceWinsPerSize(t *testing.T) {
	t.Parallel()

	first := writeFixture(t, "a.png", encodePNG(t, 48, 48))
	second := writeFixture(t, "b.png", encodePNG(t, 48, 48))
	dest := t.TempDir()

	report, err := NewGenerator().Generate([]string{first, second}, dest)
	require.NoError(t, err)
	assert.Len(t, report.Sizes, 1)
}

func TestGenerateMissingLocation(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator().Generate([]string{"/nonexistent/icon.png"}, t.TempDir())
	var ierr *IconError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "/nonexistent/icon.png", ierr.Path)
}

func TestGenerateRejectsBitmapICOEntry(t *testing.T) {
	t.Parallel()

	// A non-PNG payload where a PNG is expected.
	bmp := []byte{0x28, 0, 0, 0, 1, 2, 3, 4}
	src := writeFixture(t, "legacy.ico", encodeICO(bmp))

	_, err := NewGenerator().Generate([]string{src}, t.TempDir())
	var ierr *IconError
	require.ErrorAs(t, err, &ierr)
	assert.Contains(t, err.Error(), "unsupported bitmap payload")
}

func TestGenerateEmittedPNGDecodes(t *testing.T) {
	t.Parallel()

	src := writeFixture(t, "icon.png", encodePNG(t, 20, 20))
	dest := t.TempDir()

	_, err := NewGenerator().Generate([]string{src}, dest)
	require.NoError(t, err)

	emitted, err := os.ReadFile(filepath.Join(dest, "20x20.png"))
	require.NoError(t, err)

	got, err := png.Decode(bytes.NewReader(emitted))
	require.NoError(t, err)
	want, err := png.Decode(bytes.NewReader(encodePNG(t, 20, 20)))
	require.NoError(t, err)

	// The optimizer may rewrite chunks but never pixels.
	assert.Equal(t, want.Bounds(), got.Bounds())
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			assert.Equal(t, want.At(x, y), got.At(x, y))
		}
	}
}

func TestOptimizePNGNeverGrows(t *testing.T) {
	t.Parallel()

	original := encodePNG(t, 33, 7)
	optimized, err := optimizePNG(original)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(optimized), len(original))
	assert.True(t, bytes.HasPrefix(optimized, pngMagic))
}

func TestPNGSize(t *testing.T) {
	t.Parallel()

	size, err := pngSize(encodePNG(t, 300, 200))
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 300, Height: 200}, size)

	_, err = pngSize([]byte("too short"))
	require.Error(t, err)
}
