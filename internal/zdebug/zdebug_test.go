package zdebug

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/klauspost/compress/zlib"
)

func compress(t *testing.T, payload []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInflateLegacyRoundTrip(t *testing.T) {
	payload := make([]byte, 4096)
	rand.New(rand.NewSource(1)).Read(payload)

	compressed := compress(t, payload)

	var section bytes.Buffer
	section.WriteString("ZLIB")
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	section.Write(lenBuf[:])
	section.Write(compressed)

	got, err := InflateLegacy(section.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestInflateLegacyPassesThroughUncompressed(t *testing.T) {
	data := []byte("not compressed at all")
	got, err := InflateLegacy(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("expected passthrough for non-ZLIB-magic input")
	}
}

func TestInflateLegacyCorruptChecksum(t *testing.T) {
	payload := []byte("hello debug info")
	compressed := compress(t, payload)
	// Flip a bit inside the compressed stream to break the Adler-32 check.
	corrupt := append([]byte(nil), compressed...)
	corrupt[len(corrupt)-1] ^= 0xff

	var section bytes.Buffer
	section.WriteString("ZLIB")
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(payload)))
	section.Write(lenBuf[:])
	section.Write(corrupt)

	if _, err := InflateLegacy(section.Bytes()); err == nil {
		t.Fatal("expected an error for corrupted checksum")
	}
}
