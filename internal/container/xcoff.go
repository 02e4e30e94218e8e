package container

import "encoding/binary"

// XCOFF magic numbers for 32-bit and 64-bit object files (AIX), used
// only to recognize and reject the format (spec Non-goals: "XCOFF
// support beyond format detection").
const (
	xcoffMagic32 = 0x01df
	xcoffMagic64 = 0x01f7
)

// LooksLikeXCOFF reports whether data begins with an XCOFF file
// header, without attempting to parse anything past the magic number.
// Callers use this to produce a clear "unsupported format" error
// instead of misreading the bytes as ELF/PE/Mach-O.
func LooksLikeXCOFF(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	magic := binary.BigEndian.Uint16(data[:2])
	return magic == xcoffMagic32 || magic == xcoffMagic64
}
