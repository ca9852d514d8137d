package store

import (
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fedis/internal/aol"
)

func newTestStore(t *testing.T) (*Store, *aol.Writer) {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	w, err := aol.NewWriter(filepath.Join(dir, "test.aol"), aol.Always, log)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	return New(w, filepath.Join(dir, "dump.fsnp"), log), w
}

func TestSetNXThenGet(t *testing.T) {
	s, _ := newTestStore(t)

	ok, err := s.Set("a", []byte("1"), -1, CondNX)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Set("a", []byte("2"), -1, CondNX)
	require.NoError(t, err)
	require.False(t, ok)

	v, found := s.Get("a")
	require.True(t, found)
	require.Equal(t, []byte("1"), v)
}

func TestMSetThenGetDel(t *testing.T) {
	s, _ := newTestStore(t)

	require.NoError(t, s.MSet(map[string][]byte{"a": []byte("value")}))

	prev, found, err := s.GetDel("a")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value"), prev)

	_, found = s.Get("a")
	require.False(t, found)
}

func TestMSetNXAllOrNothing(t *testing.T) {
	s, _ := newTestStore(t)

	ok, err := s.Set("a", []byte("old"), -1, CondNone)
	require.NoError(t, err)
	require.True(t, ok)

	wrote, err := s.MSetNX(map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	require.NoError(t, err)
	require.False(t, wrote)
	_, found := s.Get("b")
	require.False(t, found)

	_, err = s.Del([]string{"a"})
	require.NoError(t, err)

	wrote, err = s.MSetNX(map[string][]byte{"a": []byte("1"), "b": []byte("2")})
	require.NoError(t, err)
	require.True(t, wrote)

	va, _ := s.Get("a")
	vb, _ := s.Get("b")
	require.Equal(t, []byte("1"), va)
	require.Equal(t, []byte("2"), vb)
}

func TestDelAndExists(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("a", []byte("1"), -1, CondNone)
	s.Set("b", []byte("2"), -1, CondNone)

	n, err := s.Del([]string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 0, s.Exists([]string{"a", "b"}))
}

func TestExistsCountsDuplicates(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("a", []byte("1"), -1, CondNone)
	require.Equal(t, 2, s.Exists([]string{"a", "a", "missing"}))
}

func TestIncrByParsesAndOverflows(t *testing.T) {
	s, _ := newTestStore(t)

	v, err := s.IncrBy("counter", 5)
	require.NoError(t, err)
	require.Equal(t, int64(5), v)

	s.Set("notanumber", []byte("abc"), -1, CondNone)
	_, err = s.IncrBy("notanumber", 1)
	require.ErrorIs(t, err, ErrNotInteger)

	s.Set("max", formatInt64(9223372036854775807), -1, CondNone)
	_, err = s.IncrBy("max", 1)
	require.ErrorIs(t, err, ErrOutOfRange)
}

func TestIncrByPreservesExpiry(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("k", []byte("1"), nowMS()+100000, CondNone)
	_, err := s.IncrBy("k", 1)
	require.NoError(t, err)
	require.Greater(t, s.PTTL("k"), int64(0))
}

func TestGetRangeNegativeIndexNormalization(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("s", []byte("hello"), -1, CondNone)

	require.Equal(t, []byte("ell"), s.GetRange("s", 1, 3))
	require.Equal(t, []byte("llo"), s.GetRange("s", -3, -1))
	require.Equal(t, []byte(""), s.GetRange("s", 10, 20))
	require.Equal(t, []byte(""), s.GetRange("empty", 0, -1))
}

func TestSetRangeZeroPads(t *testing.T) {
	s, _ := newTestStore(t)
	n, err := s.SetRange("x", 3, []byte("ab"))
	require.NoError(t, err)
	require.Equal(t, 5, n)

	v, _ := s.Get("x")
	require.Equal(t, []byte("\x00\x00\x00ab"), v)
}

func TestSetRangeOverlaysExisting(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("s", []byte("hello"), -1, CondNone)
	n, err := s.SetRange("s", 1, []byte("ZZ"))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	v, _ := s.Get("s")
	require.Equal(t, []byte("hZZlo"), v)
}

func TestExpireAndTTL(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("k", []byte("v"), -1, CondNone)

	require.Equal(t, int64(-1), s.TTL("k"))
	require.Equal(t, int64(-2), s.TTL("missing"))

	ok, err := s.Expire("k", nowMS()+60000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Greater(t, s.TTL("k"), int64(0))

	ok, err = s.Persist("k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(-1), s.TTL("k"))
}

func TestExpiredKeyIsAbsent(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("k", []byte("v"), nowMS()-1, CondNone)
	_, found := s.Get("k")
	require.False(t, found)
	require.Equal(t, 0, s.Exists([]string{"k"}))
}

func TestKeysAndScanGlob(t *testing.T) {
	s, _ := newTestStore(t)
	s.Set("foo1", []byte("1"), -1, CondNone)
	s.Set("foo2", []byte("2"), -1, CondNone)
	s.Set("bar", []byte("3"), -1, CondNone)

	keys := s.Keys("foo*")
	require.ElementsMatch(t, []string{"foo1", "foo2"}, keys)

	var all []string
	cursor := uint64(0)
	for {
		var page []string
		cursor, page = s.Scan(cursor, "*", 1)
		all = append(all, page...)
		if cursor == 0 {
			break
		}
	}
	require.ElementsMatch(t, []string{"foo1", "foo2", "bar"}, all)
}

func TestGlobMatch(t *testing.T) {
	require.True(t, globMatch("*", "anything"))
	require.True(t, globMatch("h?llo", "hello"))
	require.False(t, globMatch("h?llo", "heello"))
	require.True(t, globMatch("foo*bar", "foobazbar"))
	require.False(t, globMatch("foo*bar", "foobaz"))
}

func TestSnapshotAndAOLReplayRoundtrip(t *testing.T) {
	dir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	aolPath := filepath.Join(dir, "test.aol")

	w, err := aol.NewWriter(aolPath, aol.Always, log)
	require.NoError(t, err)
	s := New(w, filepath.Join(dir, "dump.fsnp"), log)

	s.Set("a", []byte("1"), -1, CondNone)
	s.Set("b", []byte("2"), -1, CondNone)
	_, err = s.Del([]string{"b"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	w2, err := aol.NewWriter(aolPath, aol.Always, log)
	require.NoError(t, err)
	defer w2.Close()

	s2 := New(w2, filepath.Join(dir, "dump.fsnp"), log)
	require.NoError(t, s2.ReplayAOL(aolPath))

	v, found := s2.Get("a")
	require.True(t, found)
	require.Equal(t, []byte("1"), v)
	_, found = s2.Get("b")
	require.False(t, found)
}
