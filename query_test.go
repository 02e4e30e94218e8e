package btrace

import (
	"bytes"
	"testing"

	"github.com/btrace-go/btrace/symtab"
)

func TestPCSymbolFallsBackAcrossModules(t *testing.T) {
	s := &State{onError: noopErrorCallback, modules: newRegistry()}

	older := &Module{Path: "liba.so", Base: 0, symtab: symtab.New([]symtab.Symbol{
		{Name: "a_fn", Address: 0x1000, Size: 0x10},
	})}
	newer := &Module{Path: "libb.so", Base: 0, symtab: symtab.New([]symtab.Symbol{
		{Name: "b_fn", Address: 0x2000, Size: 0x10},
	})}
	s.modules.publish(older)
	s.modules.publish(newer)

	var gotName string
	ok := s.PCSymbol(0x1004, func(pc uint64, name string, value, size uint64) {
		gotName = name
	}, nil)
	if !ok || gotName != "a_fn" {
		t.Fatalf("PCSymbol = (%v, %q), want (true, a_fn)", ok, gotName)
	}

	ok = s.PCSymbol(0x3000, func(uint64, string, uint64, uint64) {}, nil)
	if ok {
		t.Fatal("expected no match for unmapped pc")
	}
}

func TestPCFullFallsBackToSymbolWithoutDWARF(t *testing.T) {
	s := &State{onError: noopErrorCallback, modules: newRegistry()}
	s.modules.publish(&Module{Path: "a.out", symtab: symtab.New([]symtab.Symbol{
		{Name: "main.run", Address: 0x1000, Size: 0x20},
	})})

	var gotFile, gotFunc string
	var gotLine int
	ok := s.PCFull(0x1010, func(pc uint64, file string, line int, function string) {
		gotFile, gotLine, gotFunc = file, line, function
	}, nil)
	if !ok || gotFunc != "main.run" || gotFile != "" || gotLine != 0 {
		t.Fatalf("PCFull = (%v, %q, %d, %q), want (true, \"\", 0, main.run)", ok, gotFile, gotLine, gotFunc)
	}

	ok = s.PCFull(0x9999, func(uint64, string, int, string) {}, nil)
	if ok {
		t.Fatal("expected no match for unmapped pc")
	}
}

func TestPCPrintFallsBackToSymbol(t *testing.T) {
	s := &State{onError: noopErrorCallback, modules: newRegistry()}
	s.modules.publish(&Module{Path: "a.out", symtab: symtab.New([]symtab.Symbol{
		{Name: "main.run", Address: 0x1000, Size: 0x20},
	})})

	var buf bytes.Buffer
	s.PCPrint(0x1010, &buf)
	if got := buf.String(); got != "0x1010: main.run\n" {
		t.Fatalf("PCPrint = %q", got)
	}
}

func TestRegistryPublishOrder(t *testing.T) {
	r := newRegistry()
	r.publish(&Module{Path: "first"})
	r.publish(&Module{Path: "second"})

	var order []string
	r.each(func(m *Module) bool {
		order = append(order, m.Path)
		return true
	})
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("order = %v, want [second first]", order)
	}
	if r.gen.Load() != 2 {
		t.Fatalf("gen = %d, want 2", r.gen.Load())
	}
}
