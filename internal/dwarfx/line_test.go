package dwarfx

import "testing"

func TestUnitRowForPCWithoutLineProgram(t *testing.T) {
	u := &Unit{lineOnce: true} // simulate "no line program" (lines() already ran, empty result)
	row, ok, err := u.RowForPC(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("expected no row, got %+v", row)
	}
}

func TestUnitRowForPCMonotonicity(t *testing.T) {
	u := &Unit{
		lineOnce: true,
		lineRows: []LineRow{
			{Address: 0x1000, File: "a.c", Line: 1},
			{Address: 0x1004, File: "a.c", Line: 2},
			{Address: 0x1010, File: "a.c", Line: 5},
			{Address: 0x1020, EndSequence: true},
		},
	}

	cases := []struct {
		pc       uint64
		wantLine int
		wantOK   bool
	}{
		{0x0fff, 0, false},
		{0x1000, 1, true},
		{0x1003, 1, true},
		{0x1004, 2, true},
		{0x100f, 2, true},
		{0x1010, 5, true},
		{0x101f, 5, true},
		{0x1020, 0, false}, // past EndSequence
		{0x1030, 0, false},
	}
	for _, c := range cases {
		row, ok, err := u.RowForPC(c.pc)
		if err != nil {
			t.Fatal(err)
		}
		if ok != c.wantOK {
			t.Errorf("RowForPC(%#x): ok = %v, want %v", c.pc, ok, c.wantOK)
			continue
		}
		if ok && row.Line != c.wantLine {
			t.Errorf("RowForPC(%#x): line = %d, want %d", c.pc, row.Line, c.wantLine)
		}
	}
}
