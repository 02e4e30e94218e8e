// Package container implements the object-container readers (spec
// §4.4, C6): ELF, PE/COFF, Mach-O, and (detection-only) XCOFF. Each
// reader's job is narrow — identify the format, locate the nine DWARF
// sections, the symbol table, and any debug-file indirection metadata
// (build-id, .gnu_debuglink, .gnu_debugaltlink, .gnu_debugdata, dSYM
// UUID) — and hand the result to internal/resolve and internal/dwarfx.
//
// Modeled as the tagged-variant design note in spec §9 recommends: one
// Format enum, one Parse entry point per format, one result shape
// (Info) that downstream packages consume without caring which format
// produced it.
package container

// Format identifies which container parser produced an Info.
type Format int

const (
	FormatUnknown Format = iota
	FormatELF
	FormatPECOFF
	FormatMachO
	FormatXCOFF
)

// DebugSections are the raw (possibly still compressed) bytes of the
// nine sections the DWARF reader consumes, keyed by the DWARF section
// name without the leading ".debug_" (e.g. "info", "line", "abbrev").
type DebugSections map[string][]byte

// BuildID is the contents of a GNU .note.gnu.build-id note (spec
// §4.4.1, GLOSSARY "Build-id").
type BuildID []byte

// DebugLink names a separate debug file plus the CRC-32 of its full
// contents, as recorded in .gnu_debuglink (spec §4.5 item 2).
type DebugLink struct {
	Name string
	CRC  uint32
}

// DebugAltLink names a supplementary object file via
// .gnu_debugaltlink (spec §4.5 item 4, §4.6 "Supplementary object
// file"). Unlike DebugLink there is no CRC to verify.
type DebugAltLink struct {
	Name string
}

// Symbol is a raw function/object symbol extracted from the
// container's native symbol table, prior to being handed to
// symtab.Table.
type Symbol struct {
	Name    string
	Address uint64
	Size    uint64
}

// Info is the normalized result of parsing one container, regardless
// of format (spec §9 "Dynamic dispatch over container formats").
type Info struct {
	Format Format

	// NeedsBaseAddress is set when the primary executable is ET_DYN
	// (PIE) and the caller must re-invoke the parser once the runtime
	// load bias is known from phdr iteration (spec §4.4.1).
	NeedsBaseAddress bool

	// Base is the module's load bias, applied to every symbol and
	// section address the reader reports.
	Base uint64

	Is64    bool
	BigEndi bool
	Machine string

	Debug   DebugSections
	Symbols []Symbol

	BuildID      BuildID
	DebugLink    *DebugLink
	DebugAltLink *DebugAltLink
	// DebugData holds the still-compressed contents of .gnu_debugdata
	// (MiniDebugInfo), if present (spec §4.4.1, GLOSSARY "MiniDebugInfo").
	DebugData []byte

	// UUID is the Mach-O LC_UUID identifier, used to match a dSYM
	// bundle to its primary binary (spec §4.4.3, §4.5 item 5).
	UUID []byte

	// IsPPC64ELFv1 reports EM_PPC64 with an .opd section (spec §4.4.1,
	// SPEC_FULL §4 item 3). symtab.FromELF does not read this field; it
	// makes the same check itself (opdSection).
	IsPPC64ELFv1 bool
}

// dwarfSectionNames lists the nine sections the DWARF reader needs,
// without their ".debug_" / "__debug_" prefix (spec §1(d), §3 "DWARF
// module").
var dwarfSectionNames = []string{
	"info", "line", "abbrev", "ranges", "str",
	"addr", "str_offsets", "line_str", "rnglists",
}
