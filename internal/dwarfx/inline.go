package dwarfx

import (
	"debug/dwarf"
	"fmt"
	"sort"
)

// Subprogram is a top-level (non-inlined) DW_TAG_subprogram, the root
// of one function's inline tree (spec §3 "Function record").
type Subprogram struct {
	Entry *dwarf.Entry
	Unit  *Unit
}

// InlineSite is one node of a function's inline tree: either the
// top-level subprogram itself (Caller == nil) or a
// DW_TAG_inlined_subroutine nested within it (spec §3 "Function
// record", §4.6 "Inline trees"). Modeled on
// aclements-go-obj/dbg/inline.go's InlineSite, adapted to use this
// package's sorted rangeIndex instead of an interval-map type.
type InlineSite struct {
	Entry  *dwarf.Entry
	Caller *InlineSite

	Name                 string
	CallFile             string
	CallLine, CallColumn int
}

// subprogramIndex lazily indexes this unit's top-level DW_TAG_subprogram
// DIEs by their covering PC ranges (spec §4.6 "Compilation units":
// "attributes are parsed lazily when a PC query hits the unit's
// range").
func (u *Unit) subprogramIndex() (rangeIndex, error) {
	if u.subprogOnce {
		return u.subprogIdx, u.subprogErr
	}
	u.subprogOnce = true

	dw := u.data.dw
	r := dw.Reader()
	r.Seek(u.Offset)
	ent, err := r.Next() // re-enter the CU itself
	if err != nil {
		u.subprogErr = fmt.Errorf("dwarfx: unit %#x: %w", u.Offset, err)
		return nil, u.subprogErr
	}
	if ent == nil || !ent.Children {
		return nil, nil
	}

	var entries []rangeEntry
	for {
		child, err := r.Next()
		if err != nil {
			u.subprogErr = fmt.Errorf("dwarfx: unit %#x: %w", u.Offset, err)
			return nil, u.subprogErr
		}
		if child == nil || child.Tag == 0 {
			break
		}
		r.SkipChildren()
		if child.Tag != dwarf.TagSubprogram {
			continue
		}
		sub := &Subprogram{Entry: child, Unit: u}
		u.subprograms = append(u.subprograms, sub)

		ranges, err := dw.Ranges(child)
		if err != nil {
			continue
		}
		for _, rg := range ranges {
			entries = append(entries, rangeEntry{Low: rg[0], High: rg[1], Sub: sub})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Low < entries[j].Low })
	u.subprogIdx = rangeIndex(entries)
	return u.subprogIdx, nil
}

// SubprogramForPC returns the top-level function DIE containing pc
// within this unit.
func (u *Unit) SubprogramForPC(pc uint64) (*Subprogram, bool, error) {
	idx, err := u.subprogramIndex()
	if err != nil {
		return nil, false, err
	}
	sub, ok := idx.findSub(pc)
	return sub, ok, nil
}

// inlineIndex builds the PC -> *InlineSite map for one subprogram,
// walking its DIE children depth-first and stacking InlineSite
// records across DW_TAG_inlined_subroutine nesting (spec §4.6 "Inline
// trees": "Organize as a tree per function so that a PC query can
// produce the outermost-to-innermost chain").
//
// Grounded on aclements-go-obj/dbg/inline.go's inlineRanges, adapted
// to return a plain rangeIndex instead of an imap.Imap.
func (s *Subprogram) inlineIndex() (rangeIndex, error) {
	dw := s.Unit.data.dw
	r := dw.Reader()
	r.Seek(s.Entry.Offset)

	root, err := r.Next()
	if err != nil || root == nil {
		return nil, err
	}

	files := s.Unit.lineFilesUnsafe()

	rootSite := &InlineSite{Entry: root, Name: nameOf(s.Unit.data, root)}
	var entries []rangeEntry
	if ranges, err := dw.Ranges(root); err == nil {
		for _, rg := range ranges {
			entries = append(entries, rangeEntry{Low: rg[0], High: rg[1], Site: rootSite})
		}
	}

	if !root.Children {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Low < entries[j].Low })
		return rangeIndex(entries), nil
	}

	type frame struct {
		site *InlineSite
	}
	stack := []frame{{rootSite}}

	for {
		ent, err := r.Next()
		if err != nil {
			return nil, err
		}
		if ent == nil || ent.Tag == 0 {
			if len(stack) <= 1 {
				break
			}
			stack = stack[:len(stack)-1]
			if ent == nil {
				break
			}
			continue
		}

		if ent.Tag == dwarf.TagInlinedSubroutine {
			outer := stack[len(stack)-1].site
			line, _ := ent.Val(dwarf.AttrCallLine).(int64)
			col, _ := ent.Val(dwarf.AttrCallColumn).(int64)
			callFile, _ := ent.Val(dwarf.AttrCallFile).(int64)
			fileName := ""
			if callFile > 0 && int(callFile) < len(files) && files[callFile] != nil {
				fileName = files[callFile].Name
			}
			site := &InlineSite{
				Entry:      ent,
				Caller:     outer,
				Name:       nameOf(s.Unit.data, ent),
				CallFile:   fileName,
				CallLine:   int(line),
				CallColumn: int(col),
			}
			if ranges, err := dw.Ranges(ent); err == nil {
				for _, rg := range ranges {
					entries = append(entries, rangeEntry{Low: rg[0], High: rg[1], Site: site})
				}
			}
			if ent.Children {
				stack = append(stack, frame{site})
			}
			continue
		}

		if ent.Children {
			// Descend into lexical blocks etc. without changing the
			// current inline site (spec: "TagInlinedSubroutine can
			// appear in surprising places ... nested in a lexical block").
			stack = append(stack, frame{stack[len(stack)-1].site})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Low < entries[j].Low })
	return rangeIndex(entries), nil
}

// lineFilesUnsafe returns the unit's file table, forcing the line
// program to be read if it hasn't been already. Named Unsafe only in
// the sense that it has the side effect of populating u.lineFiles.
func (u *Unit) lineFilesUnsafe() []*dwarf.LineFile {
	_, files, _ := u.lines()
	return files
}

// nameOf returns a DIE's name, following DW_AT_abstract_origin when
// present (DW_TAG_inlined_subroutine DIEs usually carry the inlinee's
// name there rather than in DW_AT_name directly). Either attribute may
// be encoded as a GNU *_alt form — DW_AT_name as DW_FORM_GNU_strp_alt,
// DW_AT_abstract_origin as DW_FORM_GNU_ref_alt — when the producer
// split shared strings/DIEs into a supplementary object file (spec
// §4.6 "Supplementary object file"); nameOf resolves those through d's
// altlink instead of returning the raw offset untyped.
func nameOf(d *Data, ent *dwarf.Entry) string {
	if name, ok := nameAttr(d, ent, dwarf.AttrName); ok {
		return name
	}

	val, class, ok := attrField(ent, dwarf.AttrAbstractOrigin)
	if !ok {
		return ""
	}

	var origin *dwarf.Entry
	if class == dwarf.ClassReferenceAlt {
		off, _ := val.(int64)
		o, err := d.ResolveRefAlt(off)
		if err != nil {
			return ""
		}
		origin = o
	} else {
		off, ok := val.(dwarf.Offset)
		if !ok {
			return ""
		}
		r := d.dw.Reader()
		r.Seek(off)
		o, err := r.Next()
		if err != nil || o == nil {
			return ""
		}
		origin = o
	}

	name, _ := nameAttr(d, origin, dwarf.AttrName)
	return name
}

// nameAttr reads a string-valued attribute off ent, resolving
// DW_FORM_GNU_strp_alt through d's altlink .debug_str when the
// attribute was encoded that way rather than as a plain DW_FORM_strp.
func nameAttr(d *Data, ent *dwarf.Entry, attr dwarf.Attr) (string, bool) {
	val, class, ok := attrField(ent, attr)
	if !ok {
		return "", false
	}
	if class == dwarf.ClassStringAlt {
		off, _ := val.(int64)
		s, err := d.ResolveStringAlt(off)
		if err != nil {
			return "", false
		}
		return s, true
	}
	s, ok := val.(string)
	return s, ok
}

// attrField finds attr among ent's fields, returning its raw value and
// class. Unlike Entry.Val, it exposes the Class so callers can tell a
// plain form from its GNU *_alt variant before interpreting Val.
func attrField(ent *dwarf.Entry, attr dwarf.Attr) (any, dwarf.Class, bool) {
	for _, f := range ent.Field {
		if f.Attr == attr {
			return f.Val, f.Class, true
		}
	}
	return nil, 0, false
}

// InlineChain returns the inline call chain at pc, innermost first,
// matching spec §4.8 step 4-5 ("Walk the inline tree to produce the
// chain, innermost first ... Emit one callback per frame in the
// chain"). The slice is empty if pc is not inside any indexed
// subprogram.
func (u *Unit) InlineChain(pc uint64) ([]*InlineSite, error) {
	sub, ok, err := u.SubprogramForPC(pc)
	if err != nil || !ok {
		return nil, err
	}
	idx, err := sub.inlineIndex()
	if err != nil {
		return nil, err
	}
	site, ok := idx.findSite(pc)
	if !ok {
		return nil, nil
	}
	var chain []*InlineSite
	for s := site; s != nil; s = s.Caller {
		chain = append(chain, s)
	}
	return chain, nil
}
