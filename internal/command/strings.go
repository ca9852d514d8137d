package command

import (
	"time"

	"fedis/internal/protocol"
	"fedis/internal/store"
)

func handleGet(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	v, ok := d.Store.Get(string(args[1]))
	if !ok {
		return protocol.NullBulk(), Continue
	}
	return protocol.BulkString(v), Continue
}

// parseSetOptions parses the SET option grammar starting at args[3]:
// EX/PX are mutually exclusive, NX/XX are mutually exclusive, each may
// appear at most once, and unknown tokens are a syntax error.
func parseSetOptions(args [][]byte) (expiresAtMS int64, cond store.SetCond, err error) {
	expiresAtMS = -1
	cond = store.CondNone
	exSet, pxSet := false, false

	i := 3
	for i < len(args) {
		switch {
		case eqFold(args[i], "EX"):
			if exSet || pxSet || i+1 >= len(args) {
				return 0, 0, protocol.NewErr("syntax error")
			}
			secs, ok := parseInt64Arg(args[i+1])
			if !ok {
				return 0, 0, protocol.NewErr("value is not an integer or out of range")
			}
			expiresAtMS = time.Now().UnixMilli() + secs*1000
			exSet = true
			i += 2
		case eqFold(args[i], "PX"):
			if exSet || pxSet || i+1 >= len(args) {
				return 0, 0, protocol.NewErr("syntax error")
			}
			ms, ok := parseInt64Arg(args[i+1])
			if !ok {
				return 0, 0, protocol.NewErr("value is not an integer or out of range")
			}
			expiresAtMS = time.Now().UnixMilli() + ms
			pxSet = true
			i += 2
		case eqFold(args[i], "NX"):
			if cond != store.CondNone {
				return 0, 0, protocol.NewErr("syntax error")
			}
			cond = store.CondNX
			i++
		case eqFold(args[i], "XX"):
			if cond != store.CondNone {
				return 0, 0, protocol.NewErr("syntax error")
			}
			cond = store.CondXX
			i++
		default:
			return 0, 0, protocol.NewErr("syntax error")
		}
	}
	return expiresAtMS, cond, nil
}

func handleSet(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	expiresAtMS, cond, err := parseSetOptions(args)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}

	ok, err := d.Store.Set(string(args[1]), args[2], expiresAtMS, cond)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if !ok {
		return protocol.NullBulk(), Continue
	}
	return protocol.SimpleString("OK"), Continue
}

func handleSetNX(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	ok, err := d.Store.Set(string(args[1]), args[2], -1, store.CondNX)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if ok {
		return protocol.Integer(1), Continue
	}
	return protocol.Integer(0), Continue
}

func handleSetEx(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	secs, ok := parseInt64Arg(args[2])
	if !ok || secs <= 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("invalid expire time in 'setex' command")), Continue
	}
	expiresAtMS := time.Now().UnixMilli() + secs*1000
	if _, err := d.Store.Set(string(args[1]), args[3], expiresAtMS, store.CondNone); err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	return protocol.SimpleString("OK"), Continue
}

func handlePSetEx(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	ms, ok := parseInt64Arg(args[2])
	if !ok || ms <= 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("invalid expire time in 'psetex' command")), Continue
	}
	expiresAtMS := time.Now().UnixMilli() + ms
	if _, err := d.Store.Set(string(args[1]), args[3], expiresAtMS, store.CondNone); err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	return protocol.SimpleString("OK"), Continue
}

func handleGetSet(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	prev, found, err := d.Store.GetSet(string(args[1]), args[2])
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if !found {
		return protocol.NullBulk(), Continue
	}
	return protocol.BulkString(prev), Continue
}

func handleGetDel(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	prev, found, err := d.Store.GetDel(string(args[1]))
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if !found {
		return protocol.NullBulk(), Continue
	}
	return protocol.BulkString(prev), Continue
}

func handleGetEx(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	mode := store.ExpireNone
	var expiresAtMS int64 = -1

	if len(args) > 2 {
		switch {
		case eqFold(args[2], "PERSIST") && len(args) == 3:
			mode = store.ExpirePersist
		case eqFold(args[2], "EX") && len(args) == 4:
			secs, ok := parseInt64Arg(args[3])
			if !ok {
				return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
			}
			mode = store.ExpireEX
			expiresAtMS = time.Now().UnixMilli() + secs*1000
		case eqFold(args[2], "PX") && len(args) == 4:
			ms, ok := parseInt64Arg(args[3])
			if !ok {
				return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
			}
			mode = store.ExpirePX
			expiresAtMS = ms + time.Now().UnixMilli()
		default:
			return protocol.ErrorFrameFor(protocol.NewErr("syntax error")), Continue
		}
	}

	v, found, err := d.Store.GetEx(string(args[1]), mode, expiresAtMS)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if !found {
		return protocol.NullBulk(), Continue
	}
	return protocol.BulkString(v), Continue
}

func handleMSet(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if (len(args)-1)%2 != 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("wrong number of arguments for 'mset' command")), Continue
	}
	pairs := make(map[string][]byte, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		pairs[string(args[i])] = args[i+1]
	}
	if err := d.Store.MSet(pairs); err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	return protocol.SimpleString("OK"), Continue
}

func handleMSetNX(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	if (len(args)-1)%2 != 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("wrong number of arguments for 'msetnx' command")), Continue
	}
	pairs := make(map[string][]byte, (len(args)-1)/2)
	for i := 1; i < len(args); i += 2 {
		pairs[string(args[i])] = args[i+1]
	}
	wrote, err := d.Store.MSetNX(pairs)
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	if wrote {
		return protocol.Integer(1), Continue
	}
	return protocol.Integer(0), Continue
}

func handleIncr(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return incrByAndShape(d, string(args[1]), 1)
}

func handleDecr(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return incrByAndShape(d, string(args[1]), -1)
}

func handleIncrBy(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	delta, ok := parseInt64Arg(args[2])
	if !ok {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	return incrByAndShape(d, string(args[1]), delta)
}

func handleDecrBy(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	delta, ok := parseInt64Arg(args[2])
	if !ok {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	v, err := d.Store.DecrBy(string(args[1]), delta)
	if err != nil {
		return protocol.ErrorFrameFor(wrapNumericErr(err)), Continue
	}
	return protocol.Integer(v), Continue
}

func incrByAndShape(d *Dispatcher, key string, delta int64) (protocol.Frame, Action) {
	v, err := d.Store.IncrBy(key, delta)
	if err != nil {
		return protocol.ErrorFrameFor(wrapNumericErr(err)), Continue
	}
	return protocol.Integer(v), Continue
}

func wrapNumericErr(err error) error {
	if we, ok := err.(*protocol.WireError); ok {
		return we
	}
	return protocol.NewErr("value is not an integer or out of range")
}

func handleAppend(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	n, err := d.Store.Append(string(args[1]), args[2])
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	return protocol.Integer(int64(n)), Continue
}

func handleGetRange(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	start, ok1 := parseInt64Arg(args[2])
	end, ok2 := parseInt64Arg(args[3])
	if !ok1 || !ok2 {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	return protocol.BulkString(d.Store.GetRange(string(args[1]), start, end)), Continue
}

func handleSetRange(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	offset, ok := parseUint64Arg(args[2])
	if !ok {
		return protocol.ErrorFrameFor(protocol.NewErr("value is not an integer or out of range")), Continue
	}
	n, err := d.Store.SetRange(string(args[1]), offset, args[3])
	if err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}
	return protocol.Integer(int64(n)), Continue
}

func handleStrlen(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action) {
	return protocol.Integer(int64(d.Store.Strlen(string(args[1])))), Continue
}
