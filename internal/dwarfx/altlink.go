package dwarfx

import (
	"debug/dwarf"
	"fmt"
)

// ResolveStringAlt resolves a DW_FORM_GNU_strp_alt value (an offset
// into the altlink's .debug_str) into the string it names (spec §4.6
// "Supplementary object file": "DW_FORM_GNU_strp_alt resolves into the
// altlink's .debug_str"). Stdlib debug/dwarf classifies this form as
// dwarf.ClassStringAlt and returns the raw int64 offset from
// Entry.Val without dereferencing it; dwarf.Data keeps .debug_str
// private, so the offset is resolved against the raw section bytes
// this package kept when it built the altlink's Data.
func (d *Data) ResolveStringAlt(off int64) (string, error) {
	if d.Alt == nil {
		return "", fmt.Errorf("dwarfx: DW_FORM_GNU_strp_alt with no altlink present")
	}
	return d.Alt.stringAt(off)
}

// ResolveRefAlt resolves a DW_FORM_GNU_ref_alt value (an offset into
// the altlink's .debug_info) into the referenced DIE (spec §4.6:
// "DW_FORM_GNU_ref_alt resolves into the altlink's .debug_info").
func (d *Data) ResolveRefAlt(off int64) (*dwarf.Entry, error) {
	if d.Alt == nil {
		return nil, fmt.Errorf("dwarfx: DW_FORM_GNU_ref_alt with no altlink present")
	}
	r := d.Alt.dw.Reader()
	r.Seek(dwarf.Offset(off))
	return r.Next()
}

// stringAt reads a NUL-terminated string directly out of this
// module's raw .debug_str bytes at the given offset. dwarf.Data keeps
// .debug_str private, so altlink string resolution is done against the
// same raw bytes this Data was constructed with rather than through
// dwarf.Data's API.
func (d *Data) stringAt(off int64) (string, error) {
	raw, ok := d.rawStr()
	if !ok {
		return "", fmt.Errorf("dwarfx: no .debug_str section to resolve alt offset")
	}
	if off < 0 || int64(len(raw)) <= off {
		return "", fmt.Errorf("dwarfx: alt string offset %#x out of range", off)
	}
	end := off
	for end < int64(len(raw)) && raw[end] != 0 {
		end++
	}
	return string(raw[off:end]), nil
}

func (d *Data) rawStr() ([]byte, bool) {
	if d.strSection == nil {
		return nil, false
	}
	return d.strSection, true
}
