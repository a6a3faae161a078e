package value

import (
	"math"

	"aquila/internal/fault"
)

// Operator symbols, loosest binding first. The evaluator splits an expression
// on the first symbol of this list with a top-level occurrence, so order here
// is precedence: logical, comparison, additive, multiplicative.
var Operators = []string{
	"|", "&", "~",
	"<=", ">=", ":", "=", "<", ">",
	"+", "-",
	"*", "/", "%",
}

// Apply evaluates one binary operator over two operands. Both operands must
// share a tag (Null pairs with anything but satisfies no operator), division
// and modulo reject zero divisors, and every mismatch is a typed fault rather
// than a host-level panic.
func Apply(op string, left, right Value) (Value, error) {
	if !Compatible(left.Kind, right.Kind) {
		return NullValue, fault.Errorf(fault.Type,
			"operator '%s' requires matching operand types, got %s and %s",
			op, left.Kind, right.Kind)
	}

	switch op {
	case "|", "&", "~":
		return applyLogical(op, left, right)
	case "<", ">", "<=", ">=", "=", ":":
		return applyComparison(op, left, right)
	case "+", "-", "*", "/", "%":
		return applyArithmetic(op, left, right)
	}
	return NullValue, fault.Errorf(fault.Syntax, "unknown operator '%s'", op)
}

func applyLogical(op string, left, right Value) (Value, error) {
	if left.Kind != Bool || right.Kind != Bool {
		return NullValue, fault.Errorf(fault.Type,
			"operator '%s' is defined for BOOLEAN only, got %s and %s",
			op, left.Kind, right.Kind)
	}
	switch op {
	case "|":
		return BoolValue(left.Bool || right.Bool), nil
	case "&":
		return BoolValue(left.Bool && right.Bool), nil
	case "~":
		return BoolValue(left.Bool != right.Bool), nil
	}
	return NullValue, fault.Errorf(fault.Syntax, "unknown logical operator '%s'", op)
}

func applyComparison(op string, left, right Value) (Value, error) {
	switch left.Kind {
	case Int:
		if right.Kind != Int {
			break
		}
		return BoolValue(compareInts(op, left.Int, right.Int)), nil
	case Float:
		if right.Kind != Float {
			break
		}
		return BoolValue(compareFloats(op, left.Float, right.Float)), nil
	case Null, Bool, List, PendingCall:
		// fall through to the type fault below
	}
	return NullValue, fault.Errorf(fault.Type,
		"operator '%s' is defined for INTEGER and FLOAT only, got %s and %s",
		op, left.Kind, right.Kind)
}

func compareInts(op string, a, b int32) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	case "=":
		return a == b
	case ":":
		return a != b
	}
	return false
}

func compareFloats(op string, a, b float32) bool {
	switch op {
	case "<":
		return a < b
	case ">":
		return a > b
	case "<=":
		return a <= b
	case ">=":
		return a >= b
	case "=":
		return a == b
	case ":":
		return a != b
	}
	return false
}

func applyArithmetic(op string, left, right Value) (Value, error) {
	switch left.Kind {
	case Int:
		if right.Kind != Int {
			break
		}
		return applyIntArithmetic(op, left.Int, right.Int)
	case Float:
		if right.Kind != Float {
			break
		}
		return applyFloatArithmetic(op, left.Float, right.Float)
	case Null, Bool, List, PendingCall:
		// fall through to the type fault below
	}
	return NullValue, fault.Errorf(fault.Type,
		"operator '%s' is defined for INTEGER and FLOAT only, got %s and %s",
		op, left.Kind, right.Kind)
}

func applyIntArithmetic(op string, a, b int32) (Value, error) {
	switch op {
	case "+":
		return IntValue(a + b), nil
	case "-":
		return IntValue(a - b), nil
	case "*":
		return IntValue(a * b), nil
	case "/":
		if b == 0 {
			return NullValue, fault.Errorf(fault.Arithmetic, "division by zero")
		}
		return IntValue(a / b), nil
	case "%":
		if b == 0 {
			return NullValue, fault.Errorf(fault.Arithmetic, "modulo by zero")
		}
		return IntValue(a % b), nil
	}
	return NullValue, fault.Errorf(fault.Syntax, "unknown arithmetic operator '%s'", op)
}

func applyFloatArithmetic(op string, a, b float32) (Value, error) {
	switch op {
	case "+":
		return FloatValue(a + b), nil
	case "-":
		return FloatValue(a - b), nil
	case "*":
		return FloatValue(a * b), nil
	case "/":
		if b == 0 {
			return NullValue, fault.Errorf(fault.Arithmetic, "division by zero")
		}
		return FloatValue(a / b), nil
	case "%":
		if b == 0 {
			return NullValue, fault.Errorf(fault.Arithmetic, "modulo by zero")
		}
		return FloatValue(float32(math.Mod(float64(a), float64(b)))), nil
	}
	return NullValue, fault.Errorf(fault.Syntax, "unknown arithmetic operator '%s'", op)
}
