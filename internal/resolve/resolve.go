// Package resolve implements the debug-file resolver (spec §4.5, C7):
// given a primary object's build-id, .gnu_debuglink, or
// .gnu_debugaltlink metadata, locate the separate file that actually
// carries DWARF data.
//
// Ported from the probe order in original_source/elf.c's
// elf_open_debugfile_by_buildid, elf_find_debugfile_by_debuglink, and
// elf_try_debugfile. build-id hex casing, debuglink probe ordering,
// and "only the basename is symlink-resolved" all follow that C code
// (see SPEC_FULL.md §4 items 1-2).
package resolve

import (
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
)

const systemBuildIDDir = "/usr/lib/debug/.build-id/"

// ByBuildID returns the path libbacktrace's probing order would open
// for a GNU build-id, without checking the file exists.
//
//	/usr/lib/debug/.build-id/XX/YYYY....debug
//
// where XX is the first byte of id in lowercase hex and YYYY... is
// the remaining bytes, also lowercase hex (SPEC_FULL §4 item 1).
func ByBuildID(id []byte) (string, bool) {
	if len(id) == 0 {
		return "", false
	}
	var b strings.Builder
	b.WriteString(systemBuildIDDir)
	fmt.Fprintf(&b, "%02x", id[0])
	b.WriteByte('/')
	for _, c := range id[1:] {
		fmt.Fprintf(&b, "%02x", c)
	}
	b.WriteString(".debug")
	return b.String(), true
}

// OpenByBuildID opens the build-id debug file if present. Unlike the
// upstream C (which notes gdb does not re-verify the build-id note of
// the file it opens), this still just opens unconditionally on match.
func OpenByBuildID(id []byte) (*os.File, string, error) {
	path, ok := ByBuildID(id)
	if !ok {
		return nil, "", os.ErrNotExist
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, path, err
	}
	return f, path, nil
}

// DebugLinkCandidates returns the three paths probed for a
// .gnu_debuglink name, in order (spec §4.5 item 2):
//
//  1. <dir(primary)>/<name>
//  2. <dir(primary)>/.debug/<name>
//  3. /usr/lib/debug/<dir(primary)>/<name>
//
// Only the basename component of primary is resolved through
// symlinks before these are constructed; the directory is used
// as-is, matching elf_find_debugfile_by_debuglink.
func DebugLinkCandidates(primary, name string) []string {
	dir := resolveBasenameSymlink(primary)
	dir = filepath.Dir(dir)
	if dir == "." {
		dir = ""
	} else if !strings.HasSuffix(dir, "/") {
		dir += "/"
	}

	return []string{
		dir + name,
		dir + ".debug/" + name,
		"/usr/lib/debug/" + strings.TrimPrefix(dir, "/") + name,
	}
}

// resolveBasenameSymlink resolves symlinks in the final path
// component of primary only, leaving the directory untouched, as
// elf_find_debugfile_by_debuglink does ("fairly likely to be
// /proc/self/exe").
func resolveBasenameSymlink(primary string) string {
	cur := primary
	for i := 0; i < 40; i++ { // bounded like any symlink chase
		fi, err := os.Lstat(cur)
		if err != nil || fi.Mode()&os.ModeSymlink == 0 {
			break
		}
		target, err := os.Readlink(cur)
		if err != nil {
			break
		}
		if filepath.IsAbs(target) {
			cur = target
			continue
		}
		cur = filepath.Join(filepath.Dir(cur), target)
	}
	return cur
}

// OpenByDebugLink tries each DebugLinkCandidates path in order,
// verifying the GNU debuglink CRC-32 of the full file contents
// against wantCRC. A CRC mismatch is never used, even if it is the
// only candidate found on disk (spec §8 invariant 7).
func OpenByDebugLink(primary, name string, wantCRC uint32) (*os.File, string, error) {
	var lastErr error = os.ErrNotExist
	for _, path := range DebugLinkCandidates(primary, name) {
		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		got, err := crc32File(f)
		if err != nil || got != wantCRC {
			f.Close()
			lastErr = fmt.Errorf("debuglink %s: crc mismatch", path)
			continue
		}
		// Re-open for a fresh read position for the caller.
		f.Close()
		f, err = os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		return f, path, nil
	}
	return nil, "", lastErr
}

// crc32File computes the GNU debuglink CRC-32 over a file's full
// contents: standard CRC-32 (polynomial 0xEDB88320), complemented in
// and out — exactly hash/crc32.ChecksumIEEE over the whole stream
// (spec §4.5 "CRC-32 uses the polynomial 0xEDB88320...").
func crc32File(f *os.File) (uint32, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return 0, err
	}
	h := crc32.NewIEEE()
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	return h.Sum32(), nil
}

// OpenByDebugAltLink tries the same three candidate paths as a
// debuglink but performs no CRC check (spec §4.5 item 4).
func OpenByDebugAltLink(primary, name string) (*os.File, string, error) {
	var lastErr error = os.ErrNotExist
	for _, path := range DebugLinkCandidates(primary, name) {
		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}
		return f, path, nil
	}
	return nil, "", lastErr
}

// DSYMCandidates lists the sibling *.dSYM bundle's DWARF file path(s)
// for a Mach-O primary, without verifying LC_UUID — the caller
// (State.resolveDebugSections in package btrace, after parsing each
// candidate with internal/container's Mach-O reader) does the UUID
// comparison and discards a mismatching candidate (spec §4.4.3, §4.5 item 5, §8
// invariant 8).
func DSYMCandidates(primary string) ([]string, error) {
	dir := filepath.Dir(primary)
	base := filepath.Base(primary)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), ".dSYM") {
			continue
		}
		dwarfDir := filepath.Join(dir, e.Name(), "Contents", "Resources", "DWARF")
		dwarfEntries, err := os.ReadDir(dwarfDir)
		if err != nil {
			continue
		}
		for _, de := range dwarfEntries {
			if de.Name() == base || len(dwarfEntries) == 1 {
				out = append(out, filepath.Join(dwarfDir, de.Name()))
			}
		}
	}
	return out, nil
}
