package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.fsnp")

	entries := []Entry{
		{Key: []byte("a"), Value: []byte("1"), ExpiresAtMS: -1},
		{Key: []byte("b"), Value: []byte("\x00\x01binary"), ExpiresAtMS: 1700000000000},
	}
	require.NoError(t, Save(path, entries))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	got, err := Load(filepath.Join(dir, "missing.fsnp"))
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLoadBadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.fsnp")
	require.NoError(t, writeRaw(path, []byte("NOPE!!")))
	_, err := Load(path)
	require.Error(t, err)
}

func TestSaveIsAtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dump.fsnp")

	require.NoError(t, Save(path, []Entry{{Key: []byte("a"), Value: []byte("1"), ExpiresAtMS: -1}}))
	require.NoError(t, Save(path, []Entry{{Key: []byte("b"), Value: []byte("2"), ExpiresAtMS: -1}}))

	got, err := Load(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, []byte("b"), got[0].Key)

	_, statErr := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, statErr)
}

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
