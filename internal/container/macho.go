package container

import (
	"debug/macho"
	"encoding/binary"
	"fmt"
)

// lcUUID is LC_UUID (0x1b); debug/macho does not decode it into a
// typed Load, so ParseMachO reads the raw load-command bytes itself
// (spec §4.4.3).
const lcUUID = 0x1b

// ParseMachO classifies a Mach-O image's __DWARF segment sections and
// extracts its LC_UUID, used later to match a dSYM bundle (spec
// §4.4.3, GLOSSARY "dSYM").
func ParseMachO(r *macho.File, base uint64) (*Info, error) {
	info := &Info{
		Format:  FormatMachO,
		Base:    base,
		Is64:    r.Magic == macho.Magic64,
		BigEndi: r.ByteOrder == binary.BigEndian,
		Machine: r.Cpu.String(),
		Debug:   make(DebugSections),
	}

	for _, l := range r.Loads {
		raw := l.Raw()
		if len(raw) < 24 {
			continue
		}
		cmd := r.ByteOrder.Uint32(raw[0:4])
		if cmd == lcUUID {
			info.UUID = append([]byte(nil), raw[8:24]...)
		}
	}

	for _, sec := range r.Sections {
		key := dwarfKeyMachO(sec.Name)
		if key == "" {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("macho: section %s: %w", sec.Name, err)
		}
		info.Debug[key] = data
	}

	if r.Symtab != nil {
		for _, s := range r.Symtab.Syms {
			if s.Name == "" || s.Sect == 0 {
				continue
			}
			info.Symbols = append(info.Symbols, Symbol{Name: s.Name, Address: s.Value + base})
		}
	}

	return info, nil
}

// dwarfKeyMachO maps Mach-O's "__debug_X" section-naming convention
// (as found under the __DWARF segment) to the same keys ELF/PE use.
func dwarfKeyMachO(name string) string {
	for _, n := range dwarfSectionNames {
		if name == "__debug_"+n {
			return n
		}
	}
	return ""
}

// TextBase computes the Mach-O file base address for ASLR slide
// purposes: the __TEXT segment's (vm address - file offset), per spec
// §4.4.3 ("LC_SEGMENT{_64} with name __TEXT yields the file base
// address").
func TextBase(r *macho.File) (uint64, bool) {
	for _, l := range r.Loads {
		seg, ok := l.(*macho.Segment)
		if !ok || seg.Name != "__TEXT" {
			continue
		}
		return seg.Addr - seg.Offset, true
	}
	return 0, false
}
