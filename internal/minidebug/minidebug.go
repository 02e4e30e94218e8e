// Package minidebug decompresses MiniDebugInfo: an XZ-compressed ELF
// stored in a host ELF's .gnu_debugdata section and containing only a
// symbol table for stripped binaries (spec §4.5 item 3, GLOSSARY
// "MiniDebugInfo").
//
// The decoder is github.com/ulikunitz/xz, carried from
// DataDog-datadog-agent's go.mod rather than a hand-rolled LZMA2 state
// machine (spec §4.3 describes that state machine in detail for a
// from-scratch C implementation; btrace exercises a real pack
// dependency instead, see DESIGN.md).
//
// spec §9 Open Question (b) flags the original growth/termination
// logic as fragile under corrupt input; this package resolves that by
// capping cumulative output and bounding consecutive zero-progress
// reads, per SPEC_FULL §4 item 4.
package minidebug

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

const (
	// maxOutput bounds the cumulative decompressed size, so a
	// maliciously-crafted .gnu_debugdata cannot exhaust memory via an
	// XZ decompression bomb.
	maxOutput = 64 << 20

	// maxZeroProgress bounds the number of consecutive reads that
	// return 0 bytes without error or EOF, the liveness guarantee
	// spec §4.3 asks of the XZ decoder's BUF_ERROR condition.
	maxZeroProgress = 2

	readChunk = 64 << 10
)

// ErrOutputTooLarge is returned when decompression would exceed
// maxOutput.
var ErrOutputTooLarge = fmt.Errorf("minidebug: decompressed output exceeds %d bytes", maxOutput)

// ErrStalled is returned when the XZ reader makes no progress for
// maxZeroProgress consecutive reads.
var ErrStalled = fmt.Errorf("minidebug: decompression stalled (no progress)")

// Decompress returns the decompressed ELF image embedded in a
// .gnu_debugdata section's raw (XZ-compressed) bytes.
func Decompress(data []byte) ([]byte, error) {
	zr, err := xz.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("minidebug: %w", err)
	}

	var out []byte
	zeroRuns := 0
	buf := make([]byte, readChunk)
	for {
		n, err := zr.Read(buf)
		if n == 0 && err == nil {
			zeroRuns++
			if zeroRuns >= maxZeroProgress {
				return nil, ErrStalled
			}
		} else if n > 0 {
			zeroRuns = 0
			if len(out)+n > maxOutput {
				return nil, ErrOutputTooLarge
			}
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("minidebug: %w", err)
		}
	}
}
