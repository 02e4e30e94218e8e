package btrace

import (
	"os"
	"testing"
)

func TestFileViewSourceRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "view")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	want := []byte("hello, view")
	if _, err := f.Write(want); err != nil {
		t.Fatal(err)
	}

	var src fileViewSource
	v, err := src.GetView(f, 0, int64(len(want)))
	if err != nil {
		t.Fatal(err)
	}
	if string(v.Data) != string(want) {
		t.Fatalf("GetView = %q, want %q", v.Data, want)
	}

	if err := src.ReleaseView(&v); err != nil {
		t.Fatal(err)
	}
	if v.Data != nil {
		t.Fatal("expected ReleaseView to clear Data")
	}
}

func TestMemoryView(t *testing.T) {
	v := memoryView([]byte("blob"))
	if string(v.Data) != "blob" {
		t.Fatalf("memoryView.Data = %q, want blob", v.Data)
	}
}
