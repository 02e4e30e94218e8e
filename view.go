package btrace

import (
	"fmt"
	"io"
	"os"
)

// View is a read-only byte window [off, off+len) over a descriptor or
// in-memory blob (spec §6, C1). The core never writes through Data.
// The only View the module-loading path creates is the in-memory one
// memoryView wraps around decompressed MiniDebugInfo; there is no
// consolidated debug-section view.
type View struct {
	Data []byte
	base uintptr
	len  int
}

// ViewSource is the view primitive interface (spec §1 "Out of scope
// (external collaborators)", §6 "View contract"). CreateState sets
// State.views to the os.File-backed fileViewSource; State offers no
// exported way to replace it, and the container readers open and read
// files directly rather than through it.
type ViewSource interface {
	GetView(fd *os.File, offset int64, size int64) (View, error)
	ReleaseView(v *View) error
}

// fileViewSource implements ViewSource by reading into a heap buffer.
// It does not use mmap so that it behaves identically on every GOOS
// the container readers need to support.
type fileViewSource struct{}

func (fileViewSource) GetView(fd *os.File, offset int64, size int64) (View, error) {
	if size < 0 {
		return View{}, fmt.Errorf("view: negative size %d", size)
	}
	buf := make([]byte, size)
	if _, err := fd.ReadAt(buf, offset); err != nil && err != io.EOF {
		return View{}, err
	}
	return View{Data: buf, len: len(buf)}, nil
}

func (fileViewSource) ReleaseView(v *View) error {
	v.Data = nil
	v.len = 0
	return nil
}

// memoryView wraps an in-memory blob (used for MiniDebugInfo's
// decompressed ELF) as a View without going through a ViewSource.
func memoryView(b []byte) View {
	return View{Data: b, len: len(b)}
}
