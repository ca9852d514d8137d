package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConnectionCounters(t *testing.T) {
	s := New()
	s.ClientConnected()
	s.ClientConnected()
	s.ClientDisconnected()

	snap := s.Snapshot()
	require.Equal(t, int64(1), snap.ConnectedClients)
	require.Equal(t, int64(2), snap.TotalConnections)
}

func TestRecordCommandAccumulates(t *testing.T) {
	s := New()
	s.RecordCommand("GET", 10*time.Microsecond)
	s.RecordCommand("GET", 20*time.Microsecond)
	s.RecordCommand("SET", 5*time.Microsecond)

	snap := s.Snapshot()
	require.Equal(t, int64(3), snap.TotalCommands)

	byName := map[string]CommandStat{}
	for _, c := range snap.Commands {
		byName[c.Name] = c
	}
	require.Equal(t, int64(2), byName["GET"].Calls)
	require.Equal(t, int64(30), byName["GET"].Micros)
	require.Equal(t, int64(1), byName["SET"].Calls)
}
