// Package command implements the per-connection dispatcher: arity and
// option parsing, the auth/permission gate, routing to the keyspace
// engine, and response shaping, per spec §4.7.
package command

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"fedis/internal/aol"
	"fedis/internal/auth"
	"fedis/internal/protocol"
	"fedis/internal/stats"
	"fedis/internal/store"
)

// Action tells the connection loop what to do after a response is written.
type Action int

const (
	Continue Action = iota
	Close
)

// HandlerFunc executes one already-arity-checked command. args[0] is
// the command name.
type HandlerFunc func(d *Dispatcher, sess *Session, args [][]byte) (protocol.Frame, Action)

// Spec describes one command table entry. Positive Arity means
// exactly that many arguments (including the name); negative means at
// least that many.
type Spec struct {
	Arity   int
	Handler HandlerFunc
}

// Dispatcher owns every collaborator a command handler may need and
// the static command table.
type Dispatcher struct {
	Store        *store.Store
	Auth         *auth.Table
	Stats        *stats.Stats
	AOL          *aol.Writer
	SnapshotPath string
	Log          logrus.FieldLogger

	MaxMemoryBytes  int64
	AppendOnly      bool
	AppendFsync     string
	SaveSchedule    string
	MaxConnections  int

	StartUnix int64
	RunID     string

	commands map[string]*Spec
}

// New builds a Dispatcher with the full command table wired in.
func New(st *store.Store, authTable *auth.Table, statsCollector *stats.Stats, w *aol.Writer, snapshotPath string, log logrus.FieldLogger) *Dispatcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	d := &Dispatcher{
		Store:        st,
		Auth:         authTable,
		Stats:        statsCollector,
		AOL:          w,
		SnapshotPath: snapshotPath,
		Log:          log,
		StartUnix:    time.Now().Unix(),
		RunID:        uuid.NewString(),
	}
	d.commands = buildCommandTable()
	return d
}

// Dispatch routes one already-framed command through the gates and
// its handler, returning the response frame and the resulting
// connection action.
func (d *Dispatcher) Dispatch(sess *Session, args [][]byte) (protocol.Frame, Action) {
	if len(args) == 0 {
		return protocol.ErrorFrameFor(protocol.NewErr("empty command")), Continue
	}

	name := strings.ToUpper(string(args[0]))
	start := time.Now()
	defer func() {
		d.Stats.RecordCommand(name, time.Since(start))
	}()

	if err := d.Auth.CheckCommand(sess.AuthUser(), name); err != nil {
		return protocol.ErrorFrameFor(err), Continue
	}

	spec, ok := d.commands[name]
	if !ok {
		return protocol.ErrorFrameFor(protocol.NewErr("unknown command '%s'", name)), Continue
	}

	if !arityOK(spec.Arity, len(args)) {
		return protocol.ErrorFrameFor(protocol.NewErr("wrong number of arguments for '%s' command", strings.ToLower(name))), Continue
	}

	return spec.Handler(d, sess, args)
}

func arityOK(arity, got int) bool {
	if arity >= 0 {
		return got == arity
	}
	return got >= -arity
}
