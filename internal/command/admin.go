package command

import (
	"fmt"
	"strings"
	"time"

	"fedis/internal/protocol"
)

func handleAuth(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	var user, pass string
	switch len(args) {
	case 2:
		pass = string(args[1])
	case 3:
		user, pass = string(args[1]), string(args[2])
	default:
		return protocol.ErrorFrameFor(protocol.NewErr("wrong number of arguments for 'auth' command")), Continue
	}

	u, err := d.Auth.Authenticate(user, pass)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	sess.User = u
	sess.Authenticated = true
	return protocol.SimpleString("OK"), Continue
}

func handlePing(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if len(args) >= 2 {
		return protocol.BulkString(args[1]), Continue
	}
	return protocol.SimpleString("PONG"), Continue
}

func handleEcho(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.BulkString(args[1]), Continue
}

func handleQuit(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	sess.Closing = true
	return protocol.SimpleString("OK"), Close
}

func handleSelect(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	idx, ok := parseInt64Arg(args[1])
	if !ok {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	if idx != 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("DB index is out of range")), Continue
	}
	return protocol.SimpleString("OK"), Continue
}

func handleCommand(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if len(args) >= 2 && eqFold(args[1], "COUNT") {
		return protocol.Integer(int64(len(d.commands))), Continue
	}
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	return protocol.StringArray(names), Continue
}

// handleHello negotiates the wire protocol. On a bare HELLO it reports
// the currently negotiated dialect; a numeric first argument of 2 or 3
// switches sess.Proto, and trailing AUTH/SETNAME options apply before
// the reply is shaped in the (possibly just-changed) dialect.
func handleHello(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	i := 1
	if i < len(args) {
		ver, ok := parseInt64Arg(args[i])
		if !ok || (ver != 2 && ver != 3) {
			return protocol.ErrorFrameFor(protocol.NewNoProto("unsupported protocol version")), Continue
		}
		sess.Proto = protocol.Proto(ver)
		i++
	}

	for i < len(args) {
		switch {
		case eqFold(args[i], "AUTH") && i+2 < len(args):
			u, err := d.Auth.Authenticate(string(args[i+1]), string(args[i+2]))
			if err != nil {
				return protocol.ErrorFrameFor(err), Continue
			}
			sess.User = u
			sess.Authenticated = true
			i += 3
		case eqFold(args[i], "SETNAME") && i+1 < len(args):
			sess.Name = string(args[i+1])
			i += 2
		default:
			return protocol.ErrorFrameFor(protocol.NewErr("syntax error")), Continue
		}
	}

	if d.Auth.RequiresAuth() && !sess.Authenticated {
		return protocol.ErrorFrameFor(protocol.NewNoAuth("Authentication required.")), Continue
	}

	pairs := []protocol.Frame{
		protocol.BulkStringS("server"), protocol.BulkStringS("fedis"),
		protocol.BulkStringS("version"), protocol.BulkStringS("1.0.0"),
		protocol.BulkStringS("proto"), protocol.Integer(int64(sess.Proto)),
		protocol.BulkStringS("id"), protocol.Integer(sess.ID),
		protocol.BulkStringS("mode"), protocol.BulkStringS("standalone"),
		protocol.BulkStringS("role"), protocol.BulkStringS("master"),
		protocol.BulkStringS("modules"), protocol.Array(nil),
	}
	return protocol.MapFrame(pairs), Continue
}

var configDefaults = map[string]func(d *Dispatcher) string{
	"maxmemory": func(d *Dispatcher) string {
		return fmt.Sprintf("%d", d.MaxMemoryBytes)
	},
	"appendonly": func(d *Dispatcher) string {
		if d.AppendOnly {
			return "yes"
		}
		return "no"
	},
	"appendfsync": func(d *Dispatcher) string { return d.AppendFsync },
	"save":        func(d *Dispatcher) string { return d.SaveSchedule },
}

// handleConfig supports the fixed read-only subset of CONFIG GET/SET
// named in spec §12: reconfiguration at runtime is not offered, so SET
// always reports the parameter unknown rather than silently no-oping.
func handleConfig(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	switch {
	case eqFold(args[1], "GET") && len(args) == 3:
		name := strings.ToLower(string(args[2]))
		get, ok := configDefaults[name]
		if !ok {
			return protocol.Array([]protocol.Frame{}), Continue
		}
		return protocol.Array([]protocol.Frame{
			protocol.BulkStringS(name),
			protocol.BulkStringS(get(d)),
		}), Continue
	case eqFold(args[1], "SET"):
		return protocol.ErrorFrameFor(protocol.NewErr("unsupported CONFIG parameter")), Continue
	default:
		return protocol.ErrorFrameFor(protocol.NewErr("unknown subcommand '%s'", string(args[1]))), Continue
	}
}

func handleInfo(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	snap := d.Stats.Snapshot()
	uptime := time.Now().Unix() - d.StartUnix
	save := d.Store.SaveStats()

	var b strings.Builder
	fmt.Fprintf(&b, "# Server\r\n")
	fmt.Fprintf(&b, "fedis_version:1.0.0\r\n")
	fmt.Fprintf(&b, "run_id:%s\r\n", d.RunID)
	fmt.Fprintf(&b, "uptime_in_seconds:%d\r\n", uptime)
	fmt.Fprintf(&b, "\r\n# Clients\r\n")
	fmt.Fprintf(&b, "connected_clients:%d\r\n", snap.ConnectedClients)
	fmt.Fprintf(&b, "\r\n# Persistence\r\n")
	fmt.Fprintf(&b, "aof_enabled:%d\r\n", boolToInt(d.AppendOnly))
	fmt.Fprintf(&b, "rdb_bgsave_in_progress:%d\r\n", boolToInt(save.InProgress))
	fmt.Fprintf(&b, "rdb_last_save_time:%d\r\n", save.LastSaveUnix)
	fmt.Fprintf(&b, "aof_rewrite_in_progress:%d\r\n", boolToInt(d.Store.RewriteInProgress()))
	fmt.Fprintf(&b, "\r\n# Stats\r\n")
	fmt.Fprintf(&b, "total_connections_received:%d\r\n", snap.TotalConnections)
	fmt.Fprintf(&b, "total_commands_processed:%d\r\n", snap.TotalCommands)
	fmt.Fprintf(&b, "instantaneous_ops_per_sec:%d\r\n", snap.OpsPerSec)
	fmt.Fprintf(&b, "\r\n# Keyspace\r\n")
	fmt.Fprintf(&b, "db0:keys=%d,expires=0,avg_ttl=0\r\n", d.Store.DBSize())

	return protocol.BulkStringS(b.String()), Continue
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func handleClient(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	switch {
	case eqFold(args[1], "SETNAME") && len(args) == 3:
		sess.Name = string(args[2])
		return protocol.SimpleString("OK"), Continue
	case eqFold(args[1], "GETNAME") && len(args) == 2:
		if sess.Name == "" {
			return protocol.NullBulk(), Continue
		}
		return protocol.BulkStringS(sess.Name), Continue
	case eqFold(args[1], "ID") && len(args) == 2:
		return protocol.Integer(sess.ID), Continue
	default:
		return protocol.ErrorFrameFor(protocol.NewErr("unknown subcommand or wrong number of arguments for '%s'", string(args[1]))), Continue
	}
}

func handleLastSave(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.Integer(d.Store.SaveStats().LastSaveUnix), Continue
}

func handleBGRewriteAOF(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if !d.Store.TryBGRewriteAOF() {
		return protocol.SimpleString("Background append only file rewriting already in progress"), Continue
	}
	return protocol.SimpleString("Background append only file rewriting started"), Continue
}

func handleBGSave(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if !d.Store.TryBGSave() {
		return protocol.SimpleString("Background save already in progress"), Continue
	}
	return protocol.SimpleString("Background saving started"), Continue
}

// handleDebug supports DEBUG SLEEP <seconds>, used to exercise the
// absence of a per-command timeout (spec §12).
func handleDebug(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if !eqFold(args[1], "SLEEP") || len(args) != 3 {
		return protocol.ErrorFrameFor(protocol.NewErr("unknown subcommand or wrong number of arguments for '%s'", string(args[1]))), Continue
	}
	secs, err := parseFloatArg(args[2])
	if err != nil {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not a valid float")), Continue
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	return protocol.SimpleString("OK"), Continue
}
