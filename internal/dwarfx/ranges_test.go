package dwarfx

import "testing"

func TestRangeIndexAt(t *testing.T) {
	u1 := &Unit{Offset: 1}
	u2 := &Unit{Offset: 2}
	idx := rangeIndex{
		{Low: 0x1000, High: 0x1010, Unit: u1},
		{Low: 0x2000, High: 0x2020, Unit: u2},
	}

	cases := []struct {
		pc   uint64
		want *Unit
	}{
		{0x0fff, nil},
		{0x1000, u1},
		{0x100f, u1},
		{0x1010, nil}, // half-open: High is excluded
		{0x1800, nil},
		{0x2000, u2},
		{0x201f, u2},
		{0x2020, nil},
	}
	for _, c := range cases {
		got, ok := idx.find(c.pc)
		if c.want == nil {
			if ok {
				t.Errorf("find(%#x): got unit %v, want none", c.pc, got)
			}
			continue
		}
		if !ok || got != c.want {
			t.Errorf("find(%#x): got %v, want %v", c.pc, got, c.want)
		}
	}
}

func TestRangeIndexAtEmpty(t *testing.T) {
	var idx rangeIndex
	if _, ok := idx.find(0x1000); ok {
		t.Fatal("expected no match on empty index")
	}
}

// TestRangeIndexInnermostNested exercises a root ⊃ A ⊃ B inline tree,
// the shape inlineIndex builds: a PC inside A but past B's end must
// resolve to A, not fail containment because a single probe landed on
// B (the bug findSite used to have when it called at instead of
// innermost).
func TestRangeIndexInnermostNested(t *testing.T) {
	root := &InlineSite{Name: "root"}
	siteA := &InlineSite{Name: "A", Caller: root}
	siteB := &InlineSite{Name: "B", Caller: siteA}

	idx := rangeIndex{
		{Low: 0x1000, High: 0x2000, Site: root},
		{Low: 0x1100, High: 0x1900, Site: siteA},
		{Low: 0x1200, High: 0x1300, Site: siteB},
	}

	cases := []struct {
		pc   uint64
		want *InlineSite
	}{
		{0x1050, root}, // only root covers here
		{0x1250, siteB}, // innermost: covered by all three
		{0x1500, siteA}, // past B's end, still inside A
		{0x1950, root},  // past A's end, still inside root
		{0x2500, nil},   // outside everything
	}
	for _, c := range cases {
		got, ok := idx.findSite(c.pc)
		if c.want == nil {
			if ok {
				t.Errorf("findSite(%#x): got site %v, want none", c.pc, got)
			}
			continue
		}
		if !ok || got != c.want {
			t.Errorf("findSite(%#x): got %v, want %v", c.pc, got, c.want)
		}
	}
}

// TestRangeIndexInnermostTiedLow covers siblings that happen to share
// the same Low (a degenerate but legal case given sort.Slice's
// unspecified tie order): innermost must still pick by span, not by
// whichever tied entry the search lands on.
func TestRangeIndexInnermostTiedLow(t *testing.T) {
	outer := &InlineSite{Name: "outer"}
	inner := &InlineSite{Name: "inner", Caller: outer}

	idx := rangeIndex{
		{Low: 0x3000, High: 0x3100, Site: inner},
		{Low: 0x3000, High: 0x4000, Site: outer},
	}

	got, ok := idx.findSite(0x3050)
	if !ok || got != inner {
		t.Fatalf("findSite(0x3050) = (%v, %v), want (inner, true)", got, ok)
	}

	got, ok = idx.findSite(0x3150)
	if !ok || got != outer {
		t.Fatalf("findSite(0x3150) = (%v, %v), want (outer, true)", got, ok)
	}
}
