package dwarfx

import "sort"

// rangeEntry is one covering PC extent, pointing back at whichever
// unit, subprogram, or inline site it belongs to (spec §4.6
// "Compilation units": "covering PC ranges").
type rangeEntry struct {
	Low, High uint64
	Unit      *Unit
	Sub       *Subprogram
	Site      *InlineSite
}

// rangeIndex is a sorted-by-Low slice of PC extents. Unit and
// subprogram indices hold non-overlapping extents and are searched
// with at, the same way symtab.Table searches symbol extents: binary
// search for the last entry starting at or before pc, then a single
// containment check (spec §4.8 step 1, "Binary-search the module's
// unit table by covering ranges"). Inline indices hold nested,
// overlapping extents and are searched with innermost.
type rangeIndex []rangeEntry

func (idx rangeIndex) at(pc uint64) (rangeEntry, bool) {
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Low > pc }) - 1
	if i < 0 || pc >= idx[i].High {
		return rangeEntry{}, false
	}
	return idx[i], true
}

// innermost returns the tightest (smallest-span) entry containing pc,
// scanning every entry whose Low is at or before pc rather than
// probing just the one with the largest Low. inlineIndex packs
// nested, overlapping extents into one rangeIndex — the root
// subprogram's range contains each inlined instance's range, which in
// turn contains its own nested inlines (spec §4.6 "Inline trees") — so
// a single probe can land on a deeper sibling that doesn't itself
// contain pc and miss a shallower ancestor that does. Every entry
// containing pc forms a containment chain by construction, so the
// smallest span among them is always the innermost.
func (idx rangeIndex) innermost(pc uint64) (rangeEntry, bool) {
	i := sort.Search(len(idx), func(i int) bool { return idx[i].Low > pc })

	var best rangeEntry
	found := false
	for j := i - 1; j >= 0; j-- {
		e := idx[j]
		if pc >= e.High {
			continue
		}
		if !found || e.High-e.Low < best.High-best.Low {
			best = e
			found = true
		}
	}
	return best, found
}

func (idx rangeIndex) find(pc uint64) (*Unit, bool) {
	e, ok := idx.at(pc)
	if !ok {
		return nil, false
	}
	return e.Unit, true
}

func (idx rangeIndex) findSub(pc uint64) (*Subprogram, bool) {
	e, ok := idx.at(pc)
	if !ok {
		return nil, false
	}
	return e.Sub, true
}

// findSite uses innermost rather than at: see innermost's doc comment
// for why a single highest-Low probe is wrong for the overlapping
// ranges an inline tree produces.
func (idx rangeIndex) findSite(pc uint64) (*InlineSite, bool) {
	e, ok := idx.innermost(pc)
	if !ok {
		return nil, false
	}
	return e.Site, true
}
