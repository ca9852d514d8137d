package protocol

import "fmt"

// ErrKind names one of the stable wire error prefixes commands use.
type ErrKind string

const (
	KindErr      ErrKind = "ERR"
	KindWrongPass ErrKind = "WRONGPASS"
	KindNoAuth   ErrKind = "NOAUTH"
	KindNoPerm   ErrKind = "NOPERM"
	KindNoProto  ErrKind = "NOPROTO"
)

// WireError is a command error carrying the taxonomy kind it must be
// rendered with on the wire (§7): "<KIND> <message>" for anything but
// plain ERR, which is rendered as just "ERR <message>".
type WireError struct {
	Kind    ErrKind
	Message string
}

func (e *WireError) Error() string {
	return e.WireString()
}

// WireString renders the error exactly as it must appear after the
// leading '-' on the wire.
func (e *WireError) WireString() string {
	if e.Kind == KindErr {
		return fmt.Sprintf("ERR %s", e.Message)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Message)
}

// NewErr builds a generic ERR-kind wire error.
func NewErr(format string, args ...any) *WireError {
	return &WireError{Kind: KindErr, Message: fmt.Sprintf(format, args...)}
}

// NewWrongPass builds a WRONGPASS-kind wire error.
func NewWrongPass(message string) *WireError {
	return &WireError{Kind: KindWrongPass, Message: message}
}

// NewNoAuth builds a NOAUTH-kind wire error.
func NewNoAuth(message string) *WireError {
	return &WireError{Kind: KindNoAuth, Message: message}
}

// NewNoPerm builds a NOPERM-kind wire error.
func NewNoPerm(message string) *WireError {
	return &WireError{Kind: KindNoPerm, Message: message}
}

// NewNoProto builds a NOPROTO-kind wire error.
func NewNoProto(message string) *WireError {
	return &WireError{Kind: KindNoProto, Message: message}
}

// ErrorFrameFor renders err as an error Frame, using its wire form if
// it is a *WireError, or wrapping it as a generic ERR otherwise.
func ErrorFrameFor(err error) Frame {
	if we, ok := err.(*WireError); ok {
		return ErrorFrame(we.WireString())
	}
	return ErrorFrame(fmt.Sprintf("ERR %s", err.Error()))
}
