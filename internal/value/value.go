package value

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags a runtime value. Every operator and built-in dispatches on the
// tag with an exhaustive switch; adding a kind must be answered everywhere
// the compiler flags a missing case.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	List
	PendingCall
)

var kindNames = [...]string{"NULL", "BOOLEAN", "INTEGER", "FLOAT", "LIST", "PENDING_CALL"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// ListData is the shared payload of a List value. Two values built from the
// same declaration alias the same ListData, so in-place mutation through one
// name is visible through the other; the `copy` built-in breaks the alias.
type ListData struct {
	Elems []Value
}

// Pending carries an unresolved function call: the callee name plus the raw
// argument expressions, exactly as the evaluator split them.
type Pending struct {
	Name string
	Args []string
}

// Value is the tagged variant for every Aquila runtime value. Only the field
// selected by Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int   int32
	Float float32
	List  *ListData
	Call  *Pending
}

var NullValue = Value{Kind: Null}

func BoolValue(b bool) Value     { return Value{Kind: Bool, Bool: b} }
func IntValue(i int32) Value     { return Value{Kind: Int, Int: i} }
func FloatValue(f float32) Value { return Value{Kind: Float, Float: f} }

func ListValue(elems ...Value) Value {
	return Value{Kind: List, List: &ListData{Elems: elems}}
}

func PendingValue(name string, args []string) Value {
	return Value{Kind: PendingCall, Call: &Pending{Name: name, Args: args}}
}

// DefaultFor returns the placeholder value a typed declaration starts with.
func DefaultFor(kind Kind) Value {
	switch kind {
	case Null:
		return NullValue
	case Bool:
		return BoolValue(false)
	case Int:
		return IntValue(0)
	case Float:
		return FloatValue(0)
	case List:
		return ListValue()
	case PendingCall:
		return NullValue
	}
	return NullValue
}

// Copy returns a value that shares nothing mutable with the receiver. Scalars
// copy by assignment; lists are duplicated element by element.
func (v Value) Copy() Value {
	switch v.Kind {
	case Null, Bool, Int, Float, PendingCall:
		return v
	case List:
		elems := make([]Value, len(v.List.Elems))
		for i, e := range v.List.Elems {
			elems[i] = e.Copy()
		}
		return Value{Kind: List, List: &ListData{Elems: elems}}
	}
	return v
}

// Inspect renders the value the way programs print it.
func (v Value) Inspect() string {
	switch v.Kind {
	case Null:
		return "null"
	case Bool:
		return fmt.Sprintf("%t", v.Bool)
	case Int:
		return strconv.FormatInt(int64(v.Int), 10)
	case Float:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case List:
		parts := make([]string, len(v.List.Elems))
		for i, e := range v.List.Elems {
			parts[i] = e.Inspect()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case PendingCall:
		return fmt.Sprintf("<pending %s/%d>", v.Call.Name, len(v.Call.Args))
	}
	return "<invalid>"
}

// Compatible reports whether two tags may meet in a binary operator. Null is
// the universal placeholder and pairs with anything.
func Compatible(a, b Kind) bool {
	if a == Null || b == Null {
		return true
	}
	return a == b
}
