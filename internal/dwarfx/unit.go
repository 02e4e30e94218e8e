// Package dwarfx implements the DWARF reader (spec §4.6, C8): a unit
// index built lazily over stdlib debug/dwarf, per-unit line tables,
// range-list evaluation, inline-call trees, and supplementary
// object-file (altlink) resolution for the GNU *_alt forms.
//
// Abbreviation and unit-header decoding is delegated to debug/dwarf
// itself (spec §3 "DWARF module" is satisfied by wrapping dwarf.Data
// rather than re-parsing .debug_abbrev by hand) — the teacher's own
// DWARF consumers (pkg/dwarf/frame, symbol/binary.go) build on
// debug/dwarf the same way.
package dwarfx

import (
	"debug/dwarf"
	"fmt"
	"sort"
)

// Data indexes one module's DWARF sections. It owns zero or one Alt
// module for .gnu_debugaltlink resolution (spec §4.6 "Supplementary
// object file"); the altlink chain is never recursive (spec §9 Cyclic
// structures note).
type Data struct {
	dw  *dwarf.Data
	Alt *Data

	units      []*Unit
	rangeIdx   rangeIndex
	strSection []byte
}

// Unit is one compilation unit, indexed by its covering PC ranges at
// startup; everything else (abbrev table already lives inside dw,
// line program, inline trees) is decoded lazily on first query (spec
// §4.6 "Compilation units").
type Unit struct {
	Entry  *dwarf.Entry
	Offset dwarf.Offset

	data *Data

	lineOnce  bool
	lineErr   error
	lineRows  []LineRow
	lineFiles []*dwarf.LineFile

	subprogOnce  bool
	subprogErr   error
	subprogIdx   rangeIndex
	subprograms  []*Subprogram
}

// New builds a Data over the nine recognized DWARF sections (spec
// §3 "DWARF module"), indexing compilation units by their covering PC
// ranges. Section contents must already be decompressed (internal/zdebug,
// internal/minidebug) and relocation-applied by the caller.
func New(sections map[string][]byte) (*Data, error) {
	dw, err := dwarf.New(
		sections["abbrev"], nil, nil,
		sections["info"], sections["line"], nil,
		sections["ranges"], sections["str"],
	)
	if err != nil {
		return nil, fmt.Errorf("dwarfx: %w", err)
	}
	// AddSection-style extras introduced after DWARF4 (stdlib exposes them
	// via the dwarf.Data.AddTypes-adjacent helpers is not available; the
	// five-section constructor above covers DWARF2-4 fully and DWARF5's
	// .debug_rnglists/.debug_addr/.debug_str_offsets/.debug_line_str are
	// consumed directly by LineReader/Ranges given the raw bytes, which
	// stdlib reads off the Entry's own AttrStrOffsetsBase/AttrAddrBase
	// once we register them below).
	if err := registerDWARF5Sections(dw, sections); err != nil {
		return nil, err
	}

	d := &Data{dw: dw, strSection: sections["str"]}
	if err := d.indexUnits(); err != nil {
		return nil, err
	}
	return d, nil
}

// NewWithAlt is New plus a supplementary object file for DW_FORM_GNU_*_alt
// resolution (spec §4.5 item 4, §4.6).
func NewWithAlt(sections map[string][]byte, altSections map[string][]byte) (*Data, error) {
	d, err := New(sections)
	if err != nil {
		return nil, err
	}
	if altSections != nil {
		alt, err := New(altSections)
		if err != nil {
			return nil, fmt.Errorf("dwarfx: altlink: %w", err)
		}
		d.Alt = alt
	}
	return d, nil
}

func (d *Data) indexUnits() error {
	r := d.dw.Reader()
	var entries []rangeEntry
	for {
		ent, err := r.Next()
		if err != nil {
			return fmt.Errorf("dwarfx: unit header: %w", err)
		}
		if ent == nil {
			break
		}
		r.SkipChildren()

		if ent.Tag != dwarf.TagCompileUnit && ent.Tag != dwarf.TagPartialUnit {
			continue
		}
		u := &Unit{Entry: ent, Offset: ent.Offset, data: d}
		d.units = append(d.units, u)

		ranges, err := d.dw.Ranges(ent)
		if err != nil {
			// Non-fatal per spec §4.6 "Failure semantics": skip this
			// unit's range contribution; the unit stays in d.units but
			// is never found by address.
			continue
		}
		for _, rg := range ranges {
			entries = append(entries, rangeEntry{Low: rg[0], High: rg[1], Unit: u})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Low < entries[j].Low })
	d.rangeIdx = rangeIndex(entries)
	return nil
}

// UnitByAddr returns the compilation unit covering pc, per spec §4.8
// step 1 ("Binary-search the module's unit table by covering ranges").
func (d *Data) UnitByAddr(pc uint64) (*Unit, bool) {
	return d.rangeIdx.find(pc)
}

// registerDWARF5Sections is a hook point: stdlib's dwarf.New only takes
// the five DWARF2-4 sections positionally. DWARF5 consumers (LineReader,
// Ranges) read .debug_rnglists/.debug_addr/.debug_str_offsets/.debug_line_str
// directly from the Entry's unit header once dwarf.Data knows about them,
// which requires feeding them through dwarf.Data.AddSection (available
// since Go 1.14) rather than the constructor.
func registerDWARF5Sections(dw *dwarf.Data, sections map[string][]byte) error {
	extra := []string{"str_offsets", "addr", "line_str", "rnglists"}
	for _, name := range extra {
		data, ok := sections[name]
		if !ok || len(data) == 0 {
			continue
		}
		if err := dw.AddSection(".debug_"+name, data); err != nil {
			return fmt.Errorf("dwarfx: section .debug_%s: %w", name, err)
		}
	}
	return nil
}
