package btrace

import (
	"fmt"
	"io"
)

// FrameCallback receives one resolved stack frame per call, in the
// order PCFull produces them: innermost frame of an inline chain
// first, outermost last (spec §4.8 steps 4-5, §5 "Ordering guarantees":
// "callbacks are invoked strictly outermost-to-innermost for an inline
// chain" describes the call order from the caller-frame's point of
// view — the first callback is the PC's own frame, each subsequent one
// is its caller). pc is the original query address on every call. A
// symbol-table fallback frame (no DWARF coverage) carries an empty
// File and zero Line.
type FrameCallback func(pc uint64, file string, line int, function string)

// SymbolCallback receives the symbol-table answer for a PC (spec §6
// "pc_symbol").
type SymbolCallback func(pc uint64, name string, value, size uint64)

// symbolFor scans every module's symbol table, most recently added
// first, and returns the first match. Shared by PCSymbol and PCFull's
// own fallback so both report the same answer for a given pc.
func (s *State) symbolFor(pc uint64) (name string, value, size uint64, ok bool) {
	s.modules.each(func(m *Module) bool {
		if m.symtab == nil {
			return true
		}
		// Symbol-table addresses already include the module's load
		// bias (symtab.FromELF, container readers), unlike DWARF's.
		sym, found := m.symtab.Lookup(pc)
		if !found {
			return true
		}
		name, value, size, ok = sym.Name, sym.Address, sym.Size, true
		return false
	})
	return
}

// PCFull resolves pc to its full inline chain and invokes cb once per
// frame (spec §6 "pc_full", §4.8 "Address lookup algorithm"). If no
// module's DWARF covers pc, it falls through to the symbol table and
// delivers a single frame with only Function set (spec §4.8: "misses
// fall through to symbol lookup so that stripped modules still yield
// function names"). It returns true iff at least one frame was
// delivered by either source, reporting SeverityInfo via onError only
// when neither has anything for pc.
func (s *State) PCFull(pc uint64, cb FrameCallback, onError ErrorCallback) bool {
	if onError == nil {
		onError = s.onError
	}

	delivered := false
	s.modules.each(func(m *Module) bool {
		if m.dwarf == nil {
			return true
		}
		frames, err := m.dwarf.Lookup(pc - m.Base)
		if err != nil {
			formatError(onError, m.Path, err)
			return true
		}
		if len(frames) == 0 {
			return true
		}
		for _, f := range frames {
			cb(pc, f.File, f.Line, f.Function)
		}
		delivered = true
		return false
	})
	if delivered {
		return true
	}

	if name, _, _, ok := s.symbolFor(pc); ok {
		cb(pc, "", 0, name)
		return true
	}

	missingDebugInfo(onError, "pc_full")
	return false
}

// PCSymbol resolves pc against every module's symbol table, most
// recently added module first, and invokes cb with the first match
// (spec §6 "pc_symbol").
func (s *State) PCSymbol(pc uint64, cb SymbolCallback, onError ErrorCallback) bool {
	if onError == nil {
		onError = s.onError
	}

	name, value, size, ok := s.symbolFor(pc)
	if !ok {
		missingDebugInfo(onError, "pc_symbol")
		return false
	}
	cb(pc, name, value, size)
	return true
}

// PCPrint writes one line resolving pc, using PCFull's own DWARF/symbol
// fallback chain (spec §6's convenience composition).
func (s *State) PCPrint(pc uint64, w io.Writer) {
	wrote := s.PCFull(pc, func(pc uint64, file string, line int, function string) {
		if file == "" {
			fmt.Fprintf(w, "%#x: %s\n", pc, function)
			return
		}
		fmt.Fprintf(w, "%#x: %s at %s:%d\n", pc, function, file, line)
	}, nil)

	if !wrote {
		fmt.Fprintf(w, "%#x: ??\n", pc)
	}
}
