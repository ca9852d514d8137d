package command

import (
	"time"

	"fedis/internal/protocol"
)

func argsToKeys(args [][]byte) []string {
	keys := make([]string, len(args)-1)
	for i, a := range args[1:] {
		keys[i] = string(a)
	}
	return keys
}

func handleDel(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	n, err := d.Store.Del(argsToKeys(args))
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	return protocol.Integer(int64(n)), Continue
}

func handleExists(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.Integer(int64(d.Store.Exists(argsToKeys(args)))), Continue
}

func handleType(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if _, ok := d.Store.Get(string(args[1])); !ok {
		return protocol.SimpleString("none"), Continue
	}
	return protocol.SimpleString("string"), Continue
}

func handleExpire(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	secs, ok := parseInt64Arg(args[2])
	if !ok || secs < 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	return expireAndShape(d, string(args[1]), time.Now().UnixMilli()+secs*1000)
}

func handlePExpire(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	ms, ok := parseInt64Arg(args[2])
	if !ok || ms < 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	return expireAndShape(d, string(args[1]), time.Now().UnixMilli()+ms)
}

func handleExpireAt(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	secs, ok := parseInt64Arg(args[2])
	if !ok || secs < 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	return expireAndShape(d, string(args[1]), secs*1000)
}

func handlePExpireAt(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	ms, ok := parseInt64Arg(args[2])
	if !ok || ms < 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	return expireAndShape(d, string(args[1]), ms)
}

func expireAndShape(d *Dispatcher, key string, expiresAtMS int64) (protocol.Frame, Action) {
	ok, err := d.Store.Expire(key, expiresAtMS)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if ok {
		return protocol.Integer(1), Continue
	}
	return protocol.Integer(0), Continue
}

func handlePersist(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	ok, err := d.Store.Persist(string(args[1]))
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if ok {
		return protocol.Integer(1), Continue
	}
	return protocol.Integer(0), Continue
}

func handleTTL(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.Integer(d.Store.TTL(string(args[1]))), Continue
}

func handlePTTL(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.Integer(d.Store.PTTL(string(args[1]))), Continue
}

func handleKeys(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.StringArray(d.Store.Keys(string(args[1]))), Continue
}

func handleScan(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	cursor, ok := parseUint64Arg(args[1])
	if !ok {
		return protocol.ErrorFrameFor(protocol.NewErr("invalid cursor")), Continue
	}

	pattern := "*"
	count := 10
	for i := 2; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return protocol.ErrorFrameFor(protocol.NewErr("syntax error")), Continue
		}
		switch {
		case eqFold(args[i], "MATCH"):
			pattern = string(args[i+1])
		case eqFold(args[i], "COUNT"):
			n, ok := parseInt64Arg(args[i+1])
			if !ok {
				return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
			}
			count = int(n)
		default:
			return protocol.ErrorFrameFor(protocol.NewErr("syntax error")), Continue
		}
	}

	nextCursor, page := d.Store.Scan(cursor, pattern, count)
	return protocol.Array([]protocol.Frame{
		protocol.BulkStringS(formatUint64(nextCursor)),
		protocol.StringArray(page),
	}), Continue
}

func formatUint64(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}

func handleDBSize(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.Integer(int64(d.Store.DBSize())), Continue
}

func handleMemoryUsage(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if len(args) < 3 || !eqFold(args[1], "USAGE") {
		return protocol.ErrorFrameFor(protocol.NewErr("unknown subcommand '%s'", string(args[1]))), Continue
	}
	n, ok := d.Store.MemoryUsage(string(args[2]))
	if !ok {
		return protocol.NullBulk(), Continue
	}
	return protocol.Integer(int64(n)), Continue
}

func handleObject(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if len(args) < 3 || !eqFold(args[1], "ENCODING") {
		return protocol.ErrorFrameFor(protocol.NewErr("unknown subcommand '%s'", string(args[1]))), Continue
	}
	enc, ok := d.Store.ObjectEncoding(string(args[2]))
	if !ok {
		return protocol.NullBulk(), Continue
	}
	return protocol.BulkStringS(enc), Continue
}
