// Package mediatest builds image payloads and zip archives for tests.
package mediatest

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 5), B: 128, A: 255})
		}
	}
	return img
}

// PNG returns an encoded w x h PNG.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG returns an encoded w x h JPEG.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

// TruncatedJPEG returns a JPEG cut off halfway through its scan data.
func TruncatedJPEG(t testing.TB) []byte {
	t.Helper()
	data := JPEG(t, 64, 64)
	return data[:len(data)/2]
}

// PNGHeader returns a PNG signature and IHDR chunk declaring a w x h RGBA image
// followed directly by IEND. It carries no pixel data.
func PNGHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // truecolor with alpha
	writeChunk(&buf, "IHDR", ihdr)
	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, typ string, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	buf.Write(length[:])

	crc := crc32.NewIEEE()
	crc.Write([]byte(typ))
	crc.Write(data)
	buf.WriteString(typ)
	buf.Write(data)

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
}

// Member is one entry of a test archive.
type Member struct {
	Name   string
	Data   []byte
	BadCRC bool // store a checksum that does not match Data
}

// Zip encodes members, in the given order, as stored (uncompressed) entries.
func Zip(t testing.TB, members ...Member) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, m := range members {
		crc := crc32.ChecksumIEEE(m.Data)
		if m.BadCRC {
			crc ^= 0xFFFFFFFF
		}
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               m.Name,
			Method:             zip.Store,
			CRC32:              crc,
			CompressedSize64:   uint64(len(m.Data)),
			UncompressedSize64: uint64(len(m.Data)),
		})
		if err != nil {
			t.Fatalf("create zip member %s: %v", m.Name, err)
		}
		if _, err := w.Write(m.Data); err != nil {
			t.Fatalf("write zip member %s: %v", m.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteZip writes an archive of members to dir/name and returns its path.
func WriteZip(t testing.TB, dir, name string, members ...Member) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, Zip(t, members...), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
	return p
}
