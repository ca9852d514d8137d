package protocol

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, raw string, limits Limits) ([][]byte, error) {
	t.Helper()
	p := NewParser(limits)
	r := bufio.NewReader(strings.NewReader(raw))
	return p.ReadCommand(r)
}

func TestParseArrayCommand(t *testing.T) {
	args, err := parse(t, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n", DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("GET"), []byte("k")}, args)
}

func TestParseBulkMayContainNUL(t *testing.T) {
	args, err := parse(t, "*2\r\n$3\r\nSET\r\n$3\r\na\x00b\r\n", DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, []byte("a\x00b"), args[1])
}

func TestParseNoFrameOnCleanEOF(t *testing.T) {
	_, err := parse(t, "", DefaultLimits())
	require.ErrorIs(t, err, ErrNoFrame)
}

func TestParseMidFrameEOFIsProtocolError(t *testing.T) {
	_, err := parse(t, "*2\r\n$3\r\nGET", DefaultLimits())
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestParseArrayLenExceedsLimit(t *testing.T) {
	_, err := parse(t, "*5\r\n", Limits{MaxLineBytes: 64, MaxBulkBytes: 64, MaxArrayLen: 4})
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestParseBulkLenExceedsLimit(t *testing.T) {
	_, err := parse(t, "*1\r\n$100\r\n", Limits{MaxLineBytes: 64, MaxBulkBytes: 10, MaxArrayLen: 64})
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestParseLineExceedsLimit(t *testing.T) {
	_, err := parse(t, "*"+strings.Repeat("1", 100)+"\r\n", Limits{MaxLineBytes: 8, MaxBulkBytes: 64, MaxArrayLen: 64})
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
}

func TestParseInlineCommand(t *testing.T) {
	args, err := parse(t, "PING hello\r\n", DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("PING"), []byte("hello")}, args)
}

func TestEncodeRoundtripKinds(t *testing.T) {
	cases := []Frame{
		SimpleString("OK"),
		ErrorFrame("ERR bad"),
		Integer(-42),
		BulkStringS("hello"),
		NullBulk(),
		Array([]Frame{Integer(1), Integer(2)}),
	}
	for _, f := range cases {
		out := Encode(f, Proto2)
		require.NotEmpty(t, out)
	}
}

func TestEncodeMapProto3VsProto2(t *testing.T) {
	m := MapFrame([]Frame{BulkStringS("a"), Integer(1), BulkStringS("b"), Integer(2)})
	p3 := Encode(m, Proto3)
	p2 := Encode(m, Proto2)
	require.True(t, bytes.HasPrefix(p3, []byte("%2\r\n")))
	require.True(t, bytes.HasPrefix(p2, []byte("*4\r\n")))
}

func TestEncodeNeverFails(t *testing.T) {
	// An invalid Kind must still serialize to something, never panic.
	f := Frame{Kind: Kind(99)}
	require.NotPanics(t, func() { Encode(f, Proto2) })
}
