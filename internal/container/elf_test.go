package container

import "testing"

func TestDWARFKey(t *testing.T) {
	cases := map[string]string{
		".debug_info":    "info",
		".debug_line":    "line",
		".zdebug_info":   "info",
		".zdebug_abbrev": "abbrev",
		".text":          "",
		".debug_bogus":   "",
	}
	for name, want := range cases {
		if got := dwarfKey(name); got != want {
			t.Errorf("dwarfKey(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestIsDWARFSection(t *testing.T) {
	if !isDWARFSection(".debug_ranges") {
		t.Error("expected .debug_ranges to be recognized")
	}
	if isDWARFSection(".rodata") {
		t.Error("did not expect .rodata to be recognized")
	}
}

func TestAlign4(t *testing.T) {
	cases := []struct{ in, want uint32 }{
		{0, 0}, {1, 4}, {2, 4}, {3, 4}, {4, 4}, {5, 8},
	}
	for _, c := range cases {
		if got := align4(c.in); got != c.want {
			t.Errorf("align4(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestCString(t *testing.T) {
	if got := cString([]byte("hello\x00world")); got != "hello" {
		t.Errorf("cString = %q, want hello", got)
	}
	if got := cString([]byte("noterm")); got != "noterm" {
		t.Errorf("cString = %q, want noterm", got)
	}
}
