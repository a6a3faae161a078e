package eval

import (
	"log/slog"
	"strconv"
	"strings"

	"aquila/internal/fault"
	"aquila/internal/scope"
	"aquila/internal/value"
)

// Caller resolves names against the function registry and invokes them with
// their raw argument expressions. The session implements it.
type Caller interface {
	Invoke(name string, argExprs []string) (value.Value, error)
	IsFunction(name string) bool
}

// Evaluator parses and evaluates expression strings against the current scope
// stack. There is no token stream: the pipeline works on the raw string,
// splitting at top-level delimiters only.
type Evaluator struct {
	Scopes *scope.Stack
	Calls  Caller
}

// Evaluate runs the fixed resolution pipeline: delimiter checks, literal
// list, literal scalars, binary operators by priority, negation, function
// call, variable reference.
func (e *Evaluator) Evaluate(expr string) (value.Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return value.NullValue, fault.Errorf(fault.Syntax, "empty expression")
	}
	if err := checkBalanced(expr); err != nil {
		return value.NullValue, err
	}
	expr = stripOuter(expr)
	if expr == "" {
		return value.NullValue, fault.Errorf(fault.Syntax, "empty parentheses")
	}

	if wrapsWhole(expr, '[', ']') {
		return e.evalListLiteral(expr)
	}

	if v, ok := parseScalar(expr); ok {
		return v, nil
	}

	for _, op := range value.Operators {
		parts := splitOnOperator(expr, op)
		if parts == nil {
			continue
		}
		return e.foldOperator(op, parts)
	}

	if strings.HasPrefix(expr, "!") {
		return e.evalNegation(expr)
	}

	if name, args, ok := ParseCall(expr); ok {
		if !e.Calls.IsFunction(name) {
			return value.NullValue, fault.Errorf(fault.Name, "unknown function '%s'", name)
		}
		return e.Calls.Invoke(name, args)
	}

	if strings.HasPrefix(expr, "$") {
		return e.evalVariable(expr)
	}

	return value.NullValue, fault.Errorf(fault.Syntax, "cannot evaluate '%s'", expr)
}

func (e *Evaluator) evalListLiteral(expr string) (value.Value, error) {
	inner := strings.TrimSpace(expr[1 : len(expr)-1])
	if inner == "" {
		return value.ListValue(), nil
	}
	var elems []value.Value
	for _, part := range SplitTopLevel(inner, ',') {
		v, err := e.Evaluate(part)
		if err != nil {
			return value.NullValue, err
		}
		elems = append(elems, v)
	}
	return value.ListValue(elems...), nil
}

// parseScalar attempts, in order, integer, boolean keyword, then float. The
// float form accepts both '.' and the locale ',' separator plus an optional
// trailing 'f'.
func parseScalar(expr string) (value.Value, bool) {
	if i, err := strconv.ParseInt(expr, 10, 32); err == nil {
		return value.IntValue(int32(i)), true
	}
	switch expr {
	case "true":
		return value.BoolValue(true), true
	case "false":
		return value.BoolValue(false), true
	}
	s := strings.TrimSuffix(expr, "f")
	s = strings.Replace(s, ",", ".", 1)
	if f, err := strconv.ParseFloat(s, 32); err == nil {
		return value.FloatValue(float32(f)), true
	}
	return value.NullValue, false
}

// foldOperator evaluates each fragment and folds the binary operator left to
// right, which gives left-associative evaluation within a priority tier.
func (e *Evaluator) foldOperator(op string, parts []string) (value.Value, error) {
	slog.Debug("operator split",
		slog.String("operator", op),
		slog.Int("fragments", len(parts)))
	acc, err := e.Evaluate(parts[0])
	if err != nil {
		return value.NullValue, err
	}
	for _, part := range parts[1:] {
		next, err := e.Evaluate(part)
		if err != nil {
			return value.NullValue, err
		}
		acc, err = value.Apply(op, acc, next)
		if err != nil {
			return value.NullValue, err
		}
	}
	return acc, nil
}

func (e *Evaluator) evalNegation(expr string) (value.Value, error) {
	operand := strings.TrimSpace(expr[1:])
	if !wrapsWhole(operand, '(', ')') {
		return value.NullValue, fault.Errorf(fault.Syntax,
			"negation requires a parenthesized operand, got '%s'", expr)
	}
	v, err := e.Evaluate(operand)
	if err != nil {
		return value.NullValue, err
	}
	if v.Kind != value.Bool {
		return value.NullValue, fault.Errorf(fault.Type,
			"negation operand must be BOOLEAN, got %s", v.Kind)
	}
	return value.BoolValue(!v.Bool), nil
}

// ParseCall matches name(arg1, arg2, ...) where the parentheses wrap the
// whole remainder of the expression.
func ParseCall(expr string) (string, []string, bool) {
	open := strings.IndexByte(expr, '(')
	if open <= 0 {
		return "", nil, false
	}
	name := expr[:open]
	if !isIdent(name) {
		return "", nil, false
	}
	if !wrapsWhole(expr[open:], '(', ')') {
		return "", nil, false
	}
	inner := strings.TrimSpace(expr[open+1 : len(expr)-1])
	if inner == "" {
		return name, nil, true
	}
	return name, SplitTopLevel(inner, ','), true
}

func (e *Evaluator) evalVariable(expr string) (value.Value, error) {
	name := expr[1:]
	if strings.ContainsAny(name, "[]") {
		// kept deliberately: subscripts bypass the tracer, element access
		// goes through the get built-in instead
		return value.NullValue, fault.Errorf(fault.Syntax,
			"subscript expressions are not supported, use get($list, index)")
	}
	if !isIdent(name) {
		return value.NullValue, fault.Errorf(fault.Syntax, "invalid variable reference '%s'", expr)
	}
	v, err := e.Scopes.Resolve(name)
	if err != nil {
		return value.NullValue, err
	}
	if !v.Assigned {
		return value.NullValue, fault.Errorf(fault.Assignment,
			"variable '$%s' is declared but has no assigned value", name)
	}
	return v.Val, nil
}

// ResolveTarget resolves a simple $name designator to its variable without
// the assigned-read gate. Statement targets and built-ins that mutate their
// argument in place go through here.
func (e *Evaluator) ResolveTarget(expr string) (*scope.Variable, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "$") || !isIdent(expr[1:]) {
		return nil, fault.Errorf(fault.Syntax, "expected a variable designator, got '%s'", expr)
	}
	return e.Scopes.Resolve(expr[1:])
}
