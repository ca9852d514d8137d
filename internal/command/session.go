package command

import (
	"fedis/internal/auth"
	"fedis/internal/protocol"
)

// Session is per-connection state, never shared across connections.
type Session struct {
	ID int64

	User          *auth.User
	Authenticated bool

	Name string // CLIENT SETNAME
	Proto protocol.Proto

	reqID int64

	// Closing is set by QUIT. The connection loop closes on the Close
	// action QUIT returns, after writing the response.
	Closing bool
}

// NewSession starts a fresh session for connection id.
func NewSession(id int64) *Session {
	return &Session{ID: id, Proto: protocol.Proto2}
}

// NextRequestID returns the next per-connection monotonic request id,
// used by the optional debug RID wrapping.
func (s *Session) NextRequestID() int64 {
	s.reqID++
	return s.reqID
}

// AuthUser returns the session's authenticated user, or nil.
func (s *Session) AuthUser() *auth.User {
	if !s.Authenticated {
		return nil
	}
	return s.User
}
