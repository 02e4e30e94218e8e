package container

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/btrace-go/btrace/internal/zdebug"
)

// ParseELF opens an ELF object and classifies its sections (spec
// §4.4.1). It mirrors elf_add in original_source/elf.c at the level of
// "one pass over the section headers that both records debug-section
// extents and captures debuglink/build-id/debugdata metadata" (spec §9
// Open Question (a) resolves this ambiguity the same way for PE/COFF).
//
// base is the known runtime load bias; pass 0 when unknown. If the
// file is ET_DYN and looksLikePrimary is true, ParseELF returns
// Info.NeedsBaseAddress = true without reading section contents, so
// the caller can re-invoke after resolving the slide via phdr
// iteration (spec §4.4.1).
func ParseELF(r *elf.File, base uint64, looksLikePrimary bool) (*Info, error) {
	if looksLikePrimary && r.Type == elf.ET_DYN {
		return &Info{Format: FormatELF, NeedsBaseAddress: true}, nil
	}

	info := &Info{
		Format:  FormatELF,
		Base:    base,
		Is64:    r.Class == elf.ELFCLASS64,
		BigEndi: r.ByteOrder == binary.BigEndian,
		Machine: r.Machine.String(),
		Debug:   make(DebugSections),
	}

	info.IsPPC64ELFv1 = r.Machine == elf.EM_PPC64 && r.Section(".opd") != nil

	for _, sec := range r.Sections {
		switch {
		case sec.Name == ".note.gnu.build-id":
			if id, err := readBuildIDNote(sec, r.ByteOrder); err == nil {
				info.BuildID = id
			}
		case sec.Name == ".gnu_debuglink":
			if dl, err := readDebugLink(sec); err == nil {
				info.DebugLink = dl
			}
		case sec.Name == ".gnu_debugaltlink":
			if data, err := sec.Data(); err == nil {
				info.DebugAltLink = &DebugAltLink{Name: cString(data)}
			}
		case sec.Name == ".gnu_debugdata":
			if data, err := sec.Data(); err == nil {
				info.DebugData = data
			}
		case isDWARFSection(sec.Name):
			data, err := readDebugSectionData(sec)
			if err != nil {
				return nil, fmt.Errorf("elf: section %s: %w", sec.Name, err)
			}
			info.Debug[dwarfKey(sec.Name)] = data
		}
	}

	syms, err := r.Symbols()
	if err == elf.ErrNoSymbols {
		syms, err = r.DynamicSymbols()
	}
	if err != nil && err != elf.ErrNoSymbols {
		return nil, err
	}
	for _, s := range syms {
		if s.Name == "" || s.Section == elf.SHN_UNDEF {
			continue
		}
		t := elf.ST_TYPE(s.Info)
		if t != elf.STT_FUNC && t != elf.STT_OBJECT {
			continue
		}
		info.Symbols = append(info.Symbols, Symbol{Name: s.Name, Address: s.Value + base, Size: s.Size})
	}

	return info, nil
}

// isDWARFSection reports whether name is one of the nine DWARF
// sections, in either of two spellings: ".debug_X" (uncompressed or
// SHF_COMPRESSED) or ".zdebug_X" (GNU legacy zlib). Relocation
// sections such as ".rela.debug_X" are not matched.
func isDWARFSection(name string) bool {
	return dwarfKey(name) != ""
}

func dwarfKey(name string) string {
	for _, n := range dwarfSectionNames {
		if name == ".debug_"+n || name == ".zdebug_"+n {
			return n
		}
	}
	return ""
}

// readDebugSectionData returns a section's logical (decompressed)
// bytes, handling both the legacy ".zdebug_*" GNU format and ELF
// SHF_COMPRESSED/ELFCOMPRESS_ZLIB (spec §1(c), §4.2). Go's
// elf.Section.Data already decompresses SHF_COMPRESSED transparently;
// the ".zdebug_*" legacy prefix is not, so it is handled explicitly
// here via internal/zdebug.
func readDebugSectionData(sec *elf.Section) ([]byte, error) {
	raw, err := sec.Data()
	if err != nil {
		return nil, err
	}
	if len(sec.Name) > 1 && sec.Name[1] == 'z' {
		return zdebug.InflateLegacy(raw)
	}
	return raw, nil
}

// readBuildIDNote extracts the build-id payload from a
// .note.gnu.build-id section, whose layout is the standard ELF note
// format: namesz, descsz, type, name (padded to 4), desc (padded to
// 4). GLOSSARY "Build-id". The three header words are encoded in the
// file's own byte order, not always little-endian, so order must come
// from the file rather than being assumed, as libbacktrace's
// elf_fetch_bits / elf_swap_ushort family does by checking ehdr's
// e_ident[EI_DATA].
func readBuildIDNote(sec *elf.Section, order binary.ByteOrder) (BuildID, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(data)
	var namesz, descsz, typ uint32
	if err := binary.Read(r, order, &namesz); err != nil {
		return nil, err
	}
	if err := binary.Read(r, order, &descsz); err != nil {
		return nil, err
	}
	if err := binary.Read(r, order, &typ); err != nil {
		return nil, err
	}
	name := make([]byte, align4(namesz))
	if _, err := r.Read(name); err != nil {
		return nil, err
	}
	desc := make([]byte, align4(descsz))
	if _, err := r.Read(desc); err != nil {
		return nil, err
	}
	return BuildID(desc[:descsz]), nil
}

func align4(n uint32) uint32 { return (n + 3) &^ 3 }

// readDebugLink parses .gnu_debuglink: a NUL-terminated name followed
// by zero-padding to a 4-byte boundary and a little-endian CRC-32
// (spec §4.5 item 2).
func readDebugLink(sec *elf.Section) (*DebugLink, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	name := cString(data)
	pad := align4(uint32(len(name) + 1))
	if int(pad)+4 > len(data) {
		return nil, fmt.Errorf("gnu_debuglink: truncated")
	}
	crc := binary.LittleEndian.Uint32(data[pad : pad+4])
	return &DebugLink{Name: name, CRC: crc}, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
