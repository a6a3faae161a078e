package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a runtime failure. Script kinds describe mistakes in the
// Aquila program being executed; Invariant marks a broken engine-side
// precondition (corrupted tracer use, context stack imbalance and the like).
type Kind int

const (
	Syntax Kind = iota
	Name
	Type
	Assignment
	Index
	Recursion
	Arithmetic
	Invariant
)

var kindNames = [...]string{
	"SyntaxError",
	"NameError",
	"TypeError",
	"AssignmentError",
	"IndexError",
	"RecursionError",
	"ArithmeticError",
	"InvariantViolation",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "UnknownError"
	}
	return kindNames[k]
}

// Error is the single error value produced by the interpreter core. Line is
// zero until the statement engine attributes the failure to a position.
type Error struct {
	Kind Kind
	Msg  string
	Line int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Kind, e.Msg, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func Errorf(kind Kind, format string, a ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, a...)}
}

// KindOf extracts the kind from any error in the chain.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return 0, false
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// AtLine stamps the failing statement's position onto err. A line already
// attributed by a nested statement is kept.
func AtLine(err error, line int) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) && fe.Line == 0 {
		fe.Line = line
	}
	return err
}
