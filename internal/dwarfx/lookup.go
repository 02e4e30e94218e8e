package dwarfx

import "fmt"

// Frame is one resolved stack frame: the matched line-table row plus
// the function name that row belongs to (spec §4.8 step 5, "the
// outermost uses the non-inlined subprogram's name and the matched
// line row").
type Frame struct {
	Function string
	File     string
	Line     int
	Column   int
}

// Lookup resolves pc to its full inline chain, innermost first (spec
// §4.8 "Address lookup algorithm", steps 1-5). An empty, nil-error
// result means pc falls outside every indexed unit; the caller falls
// back to the symbol-table answer (spec §4.6 "Failure semantics").
func (d *Data) Lookup(pc uint64) ([]Frame, error) {
	unit, ok := d.UnitByAddr(pc)
	if !ok {
		return nil, nil
	}

	row, hasRow, err := unit.RowForPC(pc)
	if err != nil {
		return nil, fmt.Errorf("dwarfx: unit %#x: %w", unit.Offset, err)
	}

	chain, err := unit.InlineChain(pc)
	if err != nil {
		return nil, fmt.Errorf("dwarfx: unit %#x: inline chain: %w", unit.Offset, err)
	}

	if len(chain) == 0 {
		sub, ok, err := unit.SubprogramForPC(pc)
		if err != nil {
			return nil, err
		}
		frame := Frame{Line: row.Line, Column: row.Column, File: row.File}
		if !hasRow {
			frame.File, frame.Line, frame.Column = "", 0, 0
		}
		if ok {
			frame.Function = nameOf(d, sub.Entry)
		}
		return []Frame{frame}, nil
	}

	frames := make([]Frame, len(chain))
	for i, site := range chain {
		f := Frame{Function: site.Name}
		if i == 0 {
			// Innermost frame: its own source position is the matched
			// line-table row (spec §4.8 step 5).
			f.File, f.Line, f.Column = row.File, row.Line, row.Column
		} else {
			// Caller frames: the *call* site recorded on the callee
			// (spec §4.8 step 4, "the call site ... is the caller's
			// row").
			inner := chain[i-1]
			f.File, f.Line, f.Column = inner.CallFile, inner.CallLine, inner.CallColumn
		}
		frames[i] = f
	}
	// The outermost frame's function name is the enclosing subprogram's
	// own name, already set when site.Caller == nil built it from its
	// own Entry (spec §8 property 6).
	return frames, nil
}
