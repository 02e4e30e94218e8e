// Package zdebug decompresses the GNU legacy ".zdebug_*" debug
// section format (spec §4.2, C4): a 4-byte "ZLIB" magic, an 8-byte
// big-endian uncompressed length, then a standard RFC 1950 zlib
// stream.
//
// ELF SHF_COMPRESSED sections (the modern replacement) are already
// decompressed by Go's debug/elf before this package ever sees them,
// so ParseELF (internal/container) only calls InflateLegacy for the
// ".zdebug_*" spelling.
//
// The decoder itself is github.com/klauspost/compress/zlib — carried
// from DataDog-datadog-agent's go.mod as the pack's real third-party
// zlib implementation (see DESIGN.md) — rather than a hand-rolled
// two-level Huffman table like the one in original_source/elf.c's
// elf_zlib_inflate. That C implementation exists to avoid the general
// allocator inside a signal handler; klauspost/compress/zlib does not
// offer that guarantee, so a caller that truly needs signal-handler
// safety must supply pre-decompressed debug sections (consistent with
// spec §5's "constrained contexts" framing: decompression itself is
// not claimed to be signal-safe here).
package zdebug

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

var legacyMagic = []byte("ZLIB")

// InflateLegacy decompresses a ".zdebug_*" section's raw bytes. If
// data does not start with the "ZLIB" magic it is returned unchanged,
// matching the upstream behavior of tolerating a section that was
// never actually compressed.
func InflateLegacy(data []byte) ([]byte, error) {
	if len(data) < 12 || !bytes.Equal(data[:4], legacyMagic) {
		return data, nil
	}
	uncompressedLen := binary.BigEndian.Uint64(data[4:12])

	zr, err := zlib.NewReader(bytes.NewReader(data[12:]))
	if err != nil {
		return nil, fmt.Errorf("zdebug: %w", err)
	}

	out := make([]byte, uncompressedLen)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, fmt.Errorf("zdebug: %w", err)
	}
	// zlib.Reader checks the Adler-32 trailer when the stream ends;
	// io.ReadFull drops that error once it has len(out) bytes, and
	// Close reports it (spec §4.2).
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("zdebug: checksum: %w", err)
	}
	return out, nil
}
