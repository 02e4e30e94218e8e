package dwarfx

import (
	"debug/dwarf"
	"fmt"
	"io"
	"sort"
)

// LineRow is one entry of a unit's line table: a monotonically
// address-sorted mapping from instruction addresses to source
// positions (spec §3 "Line table", §4.6 "Line programs").
type LineRow struct {
	Address     uint64
	File        string
	Line        int
	Column      int
	IsStmt      bool
	EndSequence bool
}

// lines lazily executes the unit's line-number program via
// debug/dwarf.LineReader (which already implements the state machine
// spec §4.6 describes: DW_LNS_set_address, special-opcode address/line
// advance, DWARF5 file/directory tables indexed from 0, .debug_line_str)
// and materializes a sorted row slice once, so repeated queries only
// pay a binary search (spec §4.8 step 2).
func (u *Unit) lines() ([]LineRow, []*dwarf.LineFile, error) {
	if u.lineOnce {
		return u.lineRows, u.lineFiles, u.lineErr
	}
	u.lineOnce = true

	lr, err := u.data.dw.LineReader(u.Entry)
	if err != nil {
		u.lineErr = fmt.Errorf("dwarfx: unit %#x: line header: %w", u.Offset, err)
		return nil, nil, u.lineErr
	}
	if lr == nil {
		// No line program attached to this unit.
		return nil, nil, nil
	}

	var rows []LineRow
	var entry dwarf.LineEntry
	for {
		if err := lr.Next(&entry); err != nil {
			if err == io.EOF {
				break
			}
			u.lineErr = fmt.Errorf("dwarfx: unit %#x: line program: %w", u.Offset, err)
			return nil, nil, u.lineErr
		}
		name := ""
		if entry.File != nil {
			name = entry.File.Name
		}
		rows = append(rows, LineRow{
			Address:     entry.Address,
			File:        name,
			Line:        entry.Line,
			Column:      entry.Column,
			IsStmt:      entry.IsStmt,
			EndSequence: entry.EndSequence,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Address < rows[j].Address })

	u.lineRows = rows
	u.lineFiles = lr.Files()
	return u.lineRows, u.lineFiles, nil
}

// RowForPC returns the greatest line-table row with Address <= pc that
// is still within its sequence (not past a preceding EndSequence),
// satisfying the unit-lookup monotonicity property (spec §8 property
// 5, §4.8 step 2-3).
func (u *Unit) RowForPC(pc uint64) (LineRow, bool, error) {
	rows, _, err := u.lines()
	if err != nil {
		return LineRow{}, false, err
	}
	if len(rows) == 0 {
		return LineRow{}, false, nil
	}
	i := sort.Search(len(rows), func(i int) bool { return rows[i].Address > pc }) - 1
	if i < 0 {
		return LineRow{}, false, nil
	}
	if rows[i].EndSequence {
		return LineRow{}, false, nil
	}
	return rows[i], true, nil
}
