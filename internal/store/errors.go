package store

import "errors"

// ErrNotInteger is returned when a stored value fails strict signed
// 64-bit ASCII decimal parsing for an INCR-family command.
var ErrNotInteger = errors.New("value is not an integer or out of range")

// ErrOutOfRange is returned when an INCR-family computation overflows
// a signed 64-bit integer.
var ErrOutOfRange = errors.New("increment or decrement would overflow")

// ErrSyntax signals a malformed option grammar (e.g. conflicting SET flags).
var ErrSyntax = errors.New("syntax error")
