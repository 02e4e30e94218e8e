// Package symtab implements the symbol-table reader (spec §4.7, C9):
// scan an object's function/object symbols once, sort them by
// address, and answer address -> (name, value, size) lookups with a
// binary search. It is the fallback source pc_symbol and pc_full use
// when DWARF has nothing for a PC (spec §4.8).
//
// Grounded on aclements-go-obj/symtab/symtab.go (address-ordered
// lookup table with a boundary search) and the teacher's
// pkg/symbol/function.go for how symbol attributes are carried.
package symtab

import (
	"debug/elf"
	"encoding/binary"
	"sort"

	"github.com/btrace-go/btrace/internal/sortutil"
)

// Symbol is one function or object symbol extracted from a container's
// symbol table (spec §3 "Symbol shard").
type Symbol struct {
	Name    string
	Address uint64
	Size    uint64
}

// Table is an immutable, address-sorted sequence of symbols plus a
// sentinel entry past the end, letting lookup probe entry[i+1] safely
// (spec §4.7). Once built a Table is never mutated; State publishes
// Tables to its registry via CAS (see state.go) so concurrent readers
// never need to lock.
type Table struct {
	syms []Symbol
}

// New sorts syms by address (ties broken by name for determinism) and
// returns an immutable Table. syms is not retained; New copies it.
func New(syms []Symbol) *Table {
	out := make([]Symbol, len(syms))
	copy(out, syms)

	sortutil.Sort(len(out),
		func(i, j int) int {
			if out[i].Address != out[j].Address {
				if out[i].Address < out[j].Address {
					return -1
				}
				return 1
			}
			if out[i].Name != out[j].Name {
				if out[i].Name < out[j].Name {
					return -1
				}
				return 1
			}
			return 0
		},
		func(i, j int) { out[i], out[j] = out[j], out[i] },
	)

	// Sentinel: a past-the-end symbol whose Address is the maximum
	// representable, so Lookup can always read syms[i+1] without a
	// bounds check (spec §4.7).
	out = append(out, Symbol{Address: ^uint64(0)})
	return &Table{syms: out}
}

// Lookup returns the symbol whose [Address, Address+Size) extent
// covers pc, using a binary search keyed on that half-open extent
// (spec §4.7). ok is false if no symbol covers pc.
func (t *Table) Lookup(pc uint64) (sym Symbol, ok bool) {
	n := len(t.syms) - 1 // exclude sentinel
	if n <= 0 {
		return Symbol{}, false
	}

	i := sort.Search(n, func(i int) bool { return t.syms[i].Address > pc })
	if i == 0 {
		return Symbol{}, false
	}
	cand := t.syms[i-1]

	if cand.Size != 0 {
		if pc < cand.Address+cand.Size {
			return cand, true
		}
		return Symbol{}, false
	}

	// Zero-size symbols (common for hand-written assembly or stripped
	// aux data): treat the extent as running up to the next symbol's
	// address, matching the "entry[i+1]" probe the sentinel exists for.
	if pc < t.syms[i].Address {
		return cand, true
	}
	return Symbol{}, false
}

// FromELF scans an ELF symbol table (.symtab, falling back to
// .dynsym) for function and object symbols, resolving PowerPC64 ELFv1
// .opd descriptor indirection when present (spec §4.7, §4.4.1).
//
// base is the module's runtime load bias (0 for non-PIE executables).
func FromELF(f *elf.File, base uint64) ([]Symbol, error) {
	elfSyms, err := f.Symbols()
	if err == elf.ErrNoSymbols {
		elfSyms, err = f.DynamicSymbols()
	}
	if err != nil {
		return nil, err
	}

	opd, opdAddr := opdSection(f)
	byteOrder := f.ByteOrder

	out := make([]Symbol, 0, len(elfSyms))
	for _, s := range elfSyms {
		if s.Name == "" {
			continue
		}
		typ := elf.ST_TYPE(s.Info)
		if typ != elf.STT_FUNC && typ != elf.STT_OBJECT {
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			continue
		}

		addr := s.Value
		if opd != nil && s.Section < elf.SectionIndex(len(f.Sections)) &&
			f.Sections[s.Section].Name == ".opd" {
			if resolved, ok := resolveOPD(opd, opdAddr, addr, byteOrder); ok {
				addr = resolved
			}
		}

		out = append(out, Symbol{
			Name:    s.Name,
			Address: addr + base,
			Size:    s.Size,
		})
	}
	return out, nil
}

// opdSection returns the raw contents and load address of a PowerPC64
// ELFv1 .opd section, or nil if this object has none (spec §4.4.1,
// §4.7: ".opd indirection is PowerPC64 ELFv1-only").
func opdSection(f *elf.File) (data []byte, addr uint64) {
	if f.Machine != elf.EM_PPC64 {
		return nil, 0
	}
	sec := f.Section(".opd")
	if sec == nil {
		return nil, 0
	}
	d, err := sec.Data()
	if err != nil {
		return nil, 0
	}
	return d, sec.Addr
}

// resolveOPD reads the function-descriptor's first address-sized word
// at value's offset within .opd (spec §4.7: "resolve the function-descriptor
// indirection by reading the first address-sized word at that
// offset").
func resolveOPD(opd []byte, opdAddr, value uint64, order binary.ByteOrder) (uint64, bool) {
	if value < opdAddr {
		return 0, false
	}
	off := value - opdAddr
	if off+8 > uint64(len(opd)) {
		return 0, false
	}
	return order.Uint64(opd[off : off+8]), true
}
