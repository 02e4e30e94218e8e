package resolve

import (
	"hash/crc32"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestByBuildID(t *testing.T) {
	id := []byte{0xab, 0xcd, 0xef, 0x01}
	path, ok := ByBuildID(id)
	require.True(t, ok)
	require.Equal(t, "/usr/lib/debug/.build-id/ab/cdef01.debug", path)
}

func TestByBuildIDEmpty(t *testing.T) {
	_, ok := ByBuildID(nil)
	require.False(t, ok)
}

func TestDebugLinkCandidates(t *testing.T) {
	got := DebugLinkCandidates("/opt/app/bin/server", "server.debug")
	require.Equal(t, []string{
		"/opt/app/bin/server.debug",
		"/opt/app/bin/.debug/server.debug",
		"/usr/lib/debug/opt/app/bin/server.debug",
	}, got)
}

func TestCRC32MatchesIEEE(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "debuginfo")

	data := make([]byte, 65536)
	rand.New(rand.NewSource(3)).Read(data)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := crc32File(f)
	require.NoError(t, err)
	require.Equal(t, crc32.ChecksumIEEE(data), got)
}

func TestOpenByDebugLinkRejectsBadCRC(t *testing.T) {
	dir := t.TempDir()
	name := "lib.debug"
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("debug contents"), 0o644))

	primary := filepath.Join(dir, "lib.so")
	_, _, err := OpenByDebugLink(primary, name, 0xdeadbeef)
	require.Error(t, err)
}

func TestOpenByDebugLinkAcceptsGoodCRC(t *testing.T) {
	dir := t.TempDir()
	name := "lib.debug"
	path := filepath.Join(dir, name)
	contents := []byte("debug contents")
	require.NoError(t, os.WriteFile(path, contents, 0o644))

	primary := filepath.Join(dir, "lib.so")
	f, got, err := OpenByDebugLink(primary, name, crc32.ChecksumIEEE(contents))
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, path, got)
}
