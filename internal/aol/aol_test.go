package aol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeHandler struct {
	sets     []setCall
	dels     [][]byte
	expires  []expireCall
	persists [][]byte
}

type setCall struct {
	key, value []byte
	expiresAt  int64
}

type expireCall struct {
	key       []byte
	expiresAt int64
}

func (h *fakeHandler) ApplySet(key, value []byte, expiresAtMS int64) error {
	h.sets = append(h.sets, setCall{key, value, expiresAtMS})
	return nil
}
func (h *fakeHandler) ApplyDel(key []byte) error {
	h.dels = append(h.dels, key)
	return nil
}
func (h *fakeHandler) ApplyExpire(key []byte, expiresAtMS int64) error {
	h.expires = append(h.expires, expireCall{key, expiresAtMS})
	return nil
}
func (h *fakeHandler) ApplyPersist(key []byte) error {
	h.persists = append(h.persists, key)
	return nil
}

func silentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func TestWriterAppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.aol")

	w, err := NewWriter(path, Always, silentLogger())
	require.NoError(t, err)

	require.NoError(t, w.Append(EncodeSet([]byte("a"), []byte("1"), -1)))
	require.NoError(t, w.Append(EncodeExpire([]byte("a"), 123)))
	require.NoError(t, w.Append(EncodeDel([]byte("b"))))
	require.NoError(t, w.Append(EncodePersist([]byte("a"))))
	require.NoError(t, w.Close())

	h := &fakeHandler{}
	require.NoError(t, Replay(path, h))

	require.Len(t, h.sets, 1)
	require.Equal(t, []byte("a"), h.sets[0].key)
	require.Equal(t, []byte("1"), h.sets[0].value)
	require.Equal(t, int64(-1), h.sets[0].expiresAt)
	require.Len(t, h.expires, 1)
	require.Equal(t, int64(123), h.expires[0].expiresAt)
	require.Len(t, h.dels, 1)
	require.Len(t, h.persists, 1)
}

func TestReplayMissingFileIsNotError(t *testing.T) {
	dir := t.TempDir()
	h := &fakeHandler{}
	require.NoError(t, Replay(filepath.Join(dir, "missing.aol"), h))
	require.Empty(t, h.sets)
}

func TestReplayBadMagicIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.aol")
	require.NoError(t, writeRaw(path, []byte("NOTAOL")))

	h := &fakeHandler{}
	err := Replay(path, h)
	require.Error(t, err)
}

func TestReplayTruncatedRecordIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trunc.aol")
	raw := append([]byte(Magic), 0, 0, 0, 10) // claims a 10-byte payload that never comes
	require.NoError(t, writeRaw(path, raw))

	h := &fakeHandler{}
	err := Replay(path, h)
	require.Error(t, err)
}

func TestRewriteProducesMinimalLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.aol")

	w, err := NewWriter(path, Always, silentLogger())
	require.NoError(t, err)
	require.NoError(t, w.Append(EncodeSet([]byte("a"), []byte("1"), -1)))
	require.NoError(t, w.Append(EncodeSet([]byte("a"), []byte("2"), -1)))
	require.NoError(t, w.Append(EncodeDel([]byte("a"))))

	require.NoError(t, w.Rewrite([]Entry{
		{Key: []byte("x"), Value: []byte("y"), ExpiresAtMS: -1},
	}))
	require.NoError(t, w.Append(EncodeSet([]byte("z"), []byte("w"), -1)))
	require.NoError(t, w.Close())

	h := &fakeHandler{}
	require.NoError(t, Replay(path, h))
	require.Len(t, h.sets, 2)
	require.Equal(t, []byte("x"), h.sets[0].key)
	require.Equal(t, []byte("z"), h.sets[1].key)

	stats := w.Stats()
	require.Equal(t, int64(1), stats.RewriteCount)
	require.Equal(t, int64(0), stats.RewriteFailures)
}

func TestEverySecPolicyBuffersUntilClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "buffered.aol")

	w, err := NewWriter(path, EverySec, silentLogger())
	require.NoError(t, err)
	require.NoError(t, w.Append(EncodeSet([]byte("k"), []byte("v"), -1)))
	require.NoError(t, w.Close())

	h := &fakeHandler{}
	require.NoError(t, Replay(path, h))
	require.Len(t, h.sets, 1)
}

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
