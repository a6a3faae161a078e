package interp

import (
	"log/slog"
	"sort"
	"strings"

	"aquila/internal/eval"
	"aquila/internal/fault"
	"aquila/internal/program"
	"aquila/internal/scope"
	"aquila/internal/state"
	"aquila/internal/trace"
	"aquila/internal/value"
)

// Param is one declared parameter of a user function, optionally typed.
type Param struct {
	Name  string
	Kind  value.Kind
	Typed bool
}

// UserFunc is a function defined by the program. Recursion is only legal
// when declared; active counts live invocations for the re-entry check.
type UserFunc struct {
	Name      string
	Params    []Param
	Recursive bool
	Body      []*program.Node

	active int
}

// CallArgs is what a built-in receives: the evaluated argument values, the
// raw expressions they came from, and the resolved variable where an
// argument was a simple $name designator.
type CallArgs struct {
	S     *Session
	Vals  []value.Value
	Exprs []string
	Vars  []*scope.Variable
}

// Builtin is a native callable with a fixed arity. Raw built-ins receive
// their arguments unevaluated and take over resolution themselves.
type Builtin struct {
	Name  string
	Arity int
	Void  bool
	Raw   bool
	Fn    func(c *CallArgs) (value.Value, error)
}

// Registry maps names to built-in and user-defined callables.
type Registry struct {
	builtins map[string]*Builtin
	users    map[string]*UserFunc
}

func newRegistry() *Registry {
	r := &Registry{
		builtins: map[string]*Builtin{},
		users:    map[string]*UserFunc{},
	}
	for _, b := range builtinCatalog() {
		r.builtins[b.Name] = b
	}
	return r
}

func (r *Registry) builtinNames() []string {
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) resetUsers() {
	r.users = map[string]*UserFunc{}
}

// IsFunction reports whether name resolves to a callable. Control forms are
// statements, not expressions, and are handled by the engine.
func (s *Session) IsFunction(name string) bool {
	if _, ok := s.Funcs.builtins[name]; ok {
		return true
	}
	_, ok := s.Funcs.users[name]
	return ok
}

// defineFunction registers a user function from its header remainder, e.g.
// `pow($x, $n)` with an optional type on each parameter.
func (s *Session) defineFunction(rest string, body []*program.Node, recursive bool) error {
	name, rawParams, ok := eval.ParseCall(rest)
	if !ok {
		return fault.Errorf(fault.Syntax, "malformed function header '%s'", rest)
	}
	if _, exists := s.Funcs.builtins[name]; exists {
		return fault.Errorf(fault.Name, "'%s' is a built-in and cannot be redefined", name)
	}
	if _, exists := s.Funcs.users[name]; exists {
		return fault.Errorf(fault.Name, "function '%s' is already defined", name)
	}

	params := make([]Param, 0, len(rawParams))
	for _, rp := range rawParams {
		p, err := parseParam(rp)
		if err != nil {
			return err
		}
		params = append(params, p)
	}

	s.Funcs.users[name] = &UserFunc{
		Name:      name,
		Params:    params,
		Recursive: recursive,
		Body:      body,
	}
	slog.Debug("function defined",
		slog.String("name", name),
		slog.Int("params", len(params)),
		slog.Bool("recursive", recursive))
	return nil
}

func parseParam(raw string) (Param, error) {
	fields := strings.Fields(raw)
	switch len(fields) {
	case 1:
		if !strings.HasPrefix(fields[0], "$") {
			return Param{}, fault.Errorf(fault.Syntax, "parameter must be a $name, got '%s'", raw)
		}
		return Param{Name: fields[0][1:]}, nil
	case 2:
		kind, typed := declaredKind(fields[0])
		if !typed {
			return Param{}, fault.Errorf(fault.Syntax, "unknown parameter type '%s'", fields[0])
		}
		if !strings.HasPrefix(fields[1], "$") {
			return Param{}, fault.Errorf(fault.Syntax, "parameter must be a $name, got '%s'", raw)
		}
		return Param{Name: fields[1][1:], Kind: kind, Typed: true}, nil
	}
	return Param{}, fault.Errorf(fault.Syntax, "malformed parameter '%s'", raw)
}

// Invoke resolves a call by name. This is both the evaluator's Caller hook
// and the engine's void-call dispatch; the pending-call value carries the
// callee and its raw argument expressions into resolution.
func (s *Session) Invoke(name string, argExprs []string) (value.Value, error) {
	pending := value.PendingValue(name, argExprs)
	if b, ok := s.Funcs.builtins[name]; ok {
		return s.callBuiltin(b, pending)
	}
	if fn, ok := s.Funcs.users[name]; ok {
		return s.callUser(fn, pending)
	}
	return value.NullValue, fault.Errorf(fault.Name, "unknown function '%s'", name)
}

func (s *Session) callBuiltin(b *Builtin, pending value.Value) (value.Value, error) {
	args := pending.Call.Args
	if len(args) != b.Arity {
		return value.NullValue, fault.Errorf(fault.Type,
			"wrong number of arguments to %s: got %d, want %d", b.Name, len(args), b.Arity)
	}

	c := &CallArgs{
		S:     s,
		Exprs: args,
		Vals:  make([]value.Value, len(args)),
		Vars:  make([]*scope.Variable, len(args)),
	}
	for i, expr := range args {
		c.Vars[i] = s.designator(expr)
	}
	if !b.Raw {
		// arguments are evaluated left to right, exactly once
		for i, expr := range args {
			v, err := s.Eval.Evaluate(expr)
			if err != nil {
				return value.NullValue, err
			}
			c.Vals[i] = v
		}
	}

	var result value.Value
	err := s.within(state.BuiltinCall, b.Name, func() error {
		var callErr error
		result, callErr = b.Fn(c)
		return callErr
	})
	if err != nil {
		return value.NullValue, err
	}
	if b.Void {
		return value.NullValue, nil
	}
	return result, nil
}

func (s *Session) callUser(fn *UserFunc, pending value.Value) (value.Value, error) {
	args := pending.Call.Args
	if len(args) != len(fn.Params) {
		return value.NullValue, fault.Errorf(fault.Type,
			"wrong number of arguments to %s: got %d, want %d", fn.Name, len(args), len(fn.Params))
	}
	if fn.active > 0 && !fn.Recursive {
		return value.NullValue, fault.Errorf(fault.Recursion,
			"function '%s' is not marked recursive and is already active", fn.Name)
	}

	// caller-side variables, kept for function-tracer reconciliation
	argVars := make([]*scope.Variable, len(args))
	vals := make([]value.Value, len(args))
	for i, expr := range args {
		argVars[i] = s.designator(expr)
		v, err := s.Eval.Evaluate(expr)
		if err != nil {
			return value.NullValue, err
		}
		vals[i] = v
	}
	for i, p := range fn.Params {
		if p.Typed && vals[i].Kind != p.Kind && vals[i].Kind != value.Null {
			return value.NullValue, fault.Errorf(fault.Type,
				"argument %d of %s must be %s, got %s", i+1, fn.Name, p.Kind, vals[i].Kind)
		}
	}

	s.Scopes.PushCall(fn.Name)
	fn.active++

	var fl flow
	var paramVars []*scope.Variable
	err := s.within(state.FunctionCall, fn.Name, func() error {
		for i, p := range fn.Params {
			pv, declErr := s.Scopes.Declare(p.Name)
			if declErr != nil {
				return declErr
			}
			pv.Val = vals[i]
			pv.Assigned = true
			pv.Usable = true
			// mutations through the parameter belong to the origin's history
			if argVars[i] != nil {
				s.Traces.Alias(pv, argVars[i])
				paramVars = append(paramVars, pv)
			}
		}
		var bodyErr error
		fl, bodyErr = s.execNodes(fn.Body)
		return bodyErr
	})
	for _, pv := range paramVars {
		s.Traces.Unalias(pv)
	}

	fn.active--
	if popErr := s.Scopes.PopCall(); popErr != nil && err == nil {
		err = popErr
	}
	if err != nil {
		return value.NullValue, err
	}

	switch fl.sig {
	case sigBreak, sigContinue:
		return value.NullValue, fault.Errorf(fault.Invariant,
			"loop control escaped function '%s'", fn.Name)
	case sigReturn, sigNone:
	}

	if _, traced := s.Traces.OfFunc(fn.Name); traced {
		ev := s.makeEvent(trace.Alteration{Op: "call:" + fn.Name, Before: value.NullValue, Args: vals})
		if recErr := s.Traces.RecordCall(fn.Name, ev, argVars); recErr != nil {
			return value.NullValue, recErr
		}
	}

	if fl.sig == sigReturn {
		return fl.val, nil
	}
	return value.NullValue, nil
}

// designator resolves expr to a variable when it is a simple $name, nil
// otherwise.
func (s *Session) designator(expr string) *scope.Variable {
	v, err := s.Eval.ResolveTarget(expr)
	if err != nil {
		return nil
	}
	return v
}
