package dwarfx

import (
	"debug/dwarf"
	"testing"
)

func TestNameOfDirect(t *testing.T) {
	ent := &dwarf.Entry{
		Tag:   dwarf.TagSubprogram,
		Field: []dwarf.Field{{Attr: dwarf.AttrName, Val: "main.run", Class: dwarf.ClassString}},
	}
	if got := nameOf(nil, ent); got != "main.run" {
		t.Fatalf("nameOf direct = %q, want main.run", got)
	}
}

func TestNameOfNoName(t *testing.T) {
	ent := &dwarf.Entry{Tag: dwarf.TagInlinedSubroutine}
	if got := nameOf(nil, ent); got != "" {
		t.Fatalf("nameOf with no name/origin = %q, want empty", got)
	}
}

func TestNameOfStringAlt(t *testing.T) {
	d := &Data{Alt: &Data{strSection: []byte("inlined_fn\x00")}}
	ent := &dwarf.Entry{
		Tag:   dwarf.TagInlinedSubroutine,
		Field: []dwarf.Field{{Attr: dwarf.AttrName, Val: int64(0), Class: dwarf.ClassStringAlt}},
	}
	if got := nameOf(d, ent); got != "inlined_fn" {
		t.Fatalf("nameOf with strp_alt = %q, want inlined_fn", got)
	}
}

func TestNameOfStringAltNoAltlink(t *testing.T) {
	d := &Data{}
	ent := &dwarf.Entry{
		Tag:   dwarf.TagInlinedSubroutine,
		Field: []dwarf.Field{{Attr: dwarf.AttrName, Val: int64(0), Class: dwarf.ClassStringAlt}},
	}
	if got := nameOf(d, ent); got != "" {
		t.Fatalf("nameOf with strp_alt and no altlink = %q, want empty", got)
	}
}

func TestInlineChainInnermostFirst(t *testing.T) {
	outer := &InlineSite{Name: "outer"}
	inner := &InlineSite{Name: "inner", Caller: outer, CallFile: "outer.c", CallLine: 7}

	var chain []*InlineSite
	for s := inner; s != nil; s = s.Caller {
		chain = append(chain, s)
	}
	if len(chain) != 2 || chain[0].Name != "inner" || chain[1].Name != "outer" {
		t.Fatalf("chain = %+v, want [inner outer]", chain)
	}
}
