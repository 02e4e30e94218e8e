package container

import (
	"debug/pe"
	"fmt"
)

// ParsePECOFF classifies a PE/COFF image's sections (spec §4.4.2).
// DWARF sections and .gnu_debuglink/.gnu_debugaltlink are recognized
// by the same single-pass-per-section match table as ELF (spec §9
// Open Question (a): "each section is classified by a single
// match-table pass that may record either debug-section extents or
// debuglink/debugaltlink metadata").
//
// Only function-typed symbols with a real section index are indexed;
// 32-bit images have their symbol names' leading underscore stripped
// (spec §4.4.2).
func ParsePECOFF(r *pe.File, base uint64) (*Info, error) {
	is64 := r.Machine == pe.IMAGE_FILE_MACHINE_AMD64 || r.Machine == pe.IMAGE_FILE_MACHINE_ARM64

	info := &Info{
		Format:  FormatPECOFF,
		Base:    base,
		Is64:    is64,
		Machine: machineName(r.Machine),
		Debug:   make(DebugSections),
	}

	for _, sec := range r.Sections {
		name := sec.Name
		switch {
		case name == ".gnu_debuglink":
			if dl, err := readPEDebugLink(sec); err == nil {
				info.DebugLink = dl
			}
		case name == ".gnu_debugaltlink":
			if data, err := sec.Data(); err == nil {
				info.DebugAltLink = &DebugAltLink{Name: cString(data)}
			}
		case isDWARFSection(name):
			data, err := sec.Data()
			if err != nil {
				return nil, fmt.Errorf("pecoff: section %s: %w", name, err)
			}
			info.Debug[dwarfKey(name)] = data
		}
	}

	for _, s := range r.Symbols {
		if s.SectionNumber <= 0 {
			continue
		}
		// The derived type sits in bits 4-5 of Type's low byte
		// (IMAGE_SYM_DTYPE_FUNCTION = 2); only the exact value 0x20
		// (function, base type none) is accepted here.
		if s.Type != 0x20 {
			continue
		}
		name := s.Name
		if !is64 && len(name) > 0 && name[0] == '_' {
			name = name[1:]
		}
		// s.Value is section-relative, not an RVA: add the containing
		// section's VirtualAddress first, as libbacktrace's pecoff.c
		// does (value + sects[secnum-1].virtual_address).
		secIdx := int(s.SectionNumber) - 1
		if secIdx < 0 || secIdx >= len(r.Sections) {
			continue
		}
		addr := uint64(s.Value) + uint64(r.Sections[secIdx].VirtualAddress) + base
		info.Symbols = append(info.Symbols, Symbol{Name: name, Address: addr})
	}

	return info, nil
}

func machineName(m uint16) string {
	switch m {
	case pe.IMAGE_FILE_MACHINE_AMD64:
		return "x86_64"
	case pe.IMAGE_FILE_MACHINE_I386:
		return "x86"
	case pe.IMAGE_FILE_MACHINE_ARM64:
		return "arm64"
	default:
		return fmt.Sprintf("0x%x", uint16(m))
	}
}

// readPEDebugLink shares .gnu_debuglink's on-disk layout with ELF.
func readPEDebugLink(sec *pe.Section) (*DebugLink, error) {
	data, err := sec.Data()
	if err != nil {
		return nil, err
	}
	name := cString(data)
	pad := align4(uint32(len(name) + 1))
	if int(pad)+4 > len(data) {
		return nil, fmt.Errorf("gnu_debuglink: truncated")
	}
	crc := leUint32(data[pad : pad+4])
	return &DebugLink{Name: name, CRC: crc}, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
