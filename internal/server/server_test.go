package server

import (
	"bufio"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"fedis/internal/aol"
	"fedis/internal/auth"
	"fedis/internal/command"
	"fedis/internal/stats"
	"fedis/internal/store"
)

func newTestServer(t *testing.T, cfg *Config) *Server {
	t.Helper()
	dir := t.TempDir()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	w, err := aol.NewWriter(filepath.Join(dir, "test.aol"), aol.Always, log)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })

	st := store.New(w, "", log)
	authTable := auth.NewTable("default", &auth.User{Name: "default", Enabled: true, Permission: auth.AllowAllPermission()})
	dispatcher := command.New(st, authTable, stats.New(), w, "", log)

	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg.ListenAddr = "127.0.0.1:0"
	return New(cfg, dispatcher, log)
}

func startListening(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", srv.cfg.ListenAddr)
	require.NoError(t, err)
	srv.listener = ln
	go srv.acceptLoopForTest()
	t.Cleanup(srv.Shutdown)
	return ln.Addr().String()
}

// acceptLoopForTest mirrors Serve's loop body without re-binding the
// listener, so the test can learn the ephemeral port first.
func (s *Server) acceptLoopForTest() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func TestServerRoundTripsSetAndGet(t *testing.T) {
	srv := newTestServer(t, nil)
	addr := startListening(t, srv)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	reader := bufio.NewReader(conn)

	conn.Write([]byte("*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"))
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "+OK\r\n", line)

	conn.Write([]byte("*2\r\n$3\r\nGET\r\n$1\r\nk\r\n"))
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "$1\r\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "v\r\n", line)
}

func TestServerRejectsOverMaxConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	srv := newTestServer(t, cfg)
	addr := startListening(t, srv)

	first, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer first.Close()

	time.Sleep(20 * time.Millisecond)

	second, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer second.Close()

	reader := bufio.NewReader(second)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, line, "max number of clients reached")
}

func TestIdleTimeoutClosesConnection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = 30 * time.Millisecond
	srv := newTestServer(t, cfg)
	addr := startListening(t, srv)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	require.Error(t, err) // connection closed without a response
}

func TestDebugResponseIDWrapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NonRedisMode = true
	cfg.DebugResponseIDs = true
	srv := newTestServer(t, cfg)
	addr := startListening(t, srv)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	conn.Write([]byte("*1\r\n$4\r\nPING\r\n"))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "*3\r\n", line)

	line, _ = reader.ReadString('\n')
	require.Equal(t, "$3\r\n", line)
	line, _ = reader.ReadString('\n')
	require.Equal(t, "RID\r\n", line)

	line, _ = reader.ReadString('\n')
	require.Equal(t, ":1\r\n", line)

	line, _ = reader.ReadString('\n')
	require.Equal(t, "+PONG\r\n", line)
}
