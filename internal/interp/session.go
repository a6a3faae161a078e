package interp

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"aquila/internal/eval"
	"aquila/internal/fault"
	"aquila/internal/scope"
	"aquila/internal/state"
	"aquila/internal/trace"
	"aquila/internal/util"
	"aquila/internal/value"
)

// Session aggregates everything one program run owns: the scope stack, the
// tracer registry, the function registry and the execution context. Sessions
// are independent; nothing is ambient process state.
type Session struct {
	Scopes *scope.Stack
	Ctx    *state.Context
	Traces *trace.Registry
	Funcs  *Registry
	Eval   *eval.Evaluator
	Config util.Configuration
	Out    io.Writer

	rng  *rand.Rand
	line int
}

func NewSession(cfg util.Configuration) *Session {
	s := &Session{
		Scopes: scope.NewStack(),
		Ctx:    state.NewContext(),
		Config: cfg,
		Out:    os.Stdout,
	}
	s.Traces = trace.NewRegistry(s.Ctx)
	s.Funcs = newRegistry()
	s.Eval = &eval.Evaluator{Scopes: s.Scopes, Calls: s}

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	s.rng = rand.New(rand.NewPCG(seed, seed))
	return s
}

// EvalExpr is the entry point for one-off expression evaluation.
func (s *Session) EvalExpr(expr string) (value.Value, error) {
	return s.Eval.Evaluate(expr)
}

// Line reports the running statement position, updated at every checkpoint.
func (s *Session) Line() int { return s.line }

// SetObserver registers the hook invoked with each committed event. Absence
// of an observer is not an error.
func (s *Session) SetObserver(fn trace.Observer) {
	s.Traces.SetObserver(fn)
}

// StartTracing attaches a tracer to the named variable. The name may carry
// the sigil or not.
func (s *Session) StartTracing(name string) error {
	name = strings.TrimPrefix(strings.TrimSpace(name), "$")
	v, err := s.Scopes.Resolve(name)
	if err != nil {
		return err
	}
	return s.attachTracer(v)
}

func (s *Session) attachTracer(v *scope.Variable) error {
	return s.within(state.TraceDirective, v.Name, func() error {
		ev := s.makeEvent(trace.Alteration{Op: "trace", Before: v.Val})
		_, err := s.Traces.Attach(v, ev)
		return err
	})
}

// TraceFunction attaches a function tracer. The affected map names which
// argument positions a call mutates and how many trailing events of each
// argument's log one call absorbs.
func (s *Session) TraceFunction(name string, affected map[int]int) error {
	if !s.IsFunction(name) {
		return fault.Errorf(fault.Name, "unknown function '%s'", name)
	}
	_, err := s.Traces.AttachFunc(name, affected)
	return err
}

// Rewind pops n trailing entries from the named variable's history and
// force-sets the variable to the last-popped value, outside normal tracing.
func (s *Session) Rewind(name string, n int) error {
	name = strings.TrimPrefix(strings.TrimSpace(name), "$")
	v, err := s.Scopes.Resolve(name)
	if err != nil {
		return err
	}
	t, ok := s.Traces.Of(v)
	if !ok {
		return fault.Errorf(fault.Invariant, "variable '%s' is not traced", name)
	}
	val, err := t.Rewind(n)
	if err != nil {
		return err
	}
	v.ForceSet(val)
	slog.Debug("rewind applied",
		slog.String("variable", name),
		slog.Int("depth", n),
		slog.String("value", val.Inspect()))
	return nil
}

// Reset destroys the whole environment: scopes, tracers, user functions and
// the execution context. Built-ins survive.
func (s *Session) Reset() {
	s.Scopes.Reset()
	s.Traces.Reset()
	s.Ctx.Clear()
	s.Funcs.resetUsers()
	s.line = 0
}

// within brackets fn between a context set and reset, keeping the pair
// matched on error paths too.
func (s *Session) within(st state.Status, info string, fn func() error) error {
	s.Ctx.Set(st, info)
	err := fn()
	if rerr := s.Ctx.Reset(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// makeEvent snapshots the execution context around an alteration.
func (s *Session) makeEvent(alt trace.Alteration) trace.Event {
	cur := s.Ctx.Current()
	return trace.Event{Status: cur.Status, Info: cur.Info, Line: s.line, Alt: alt}
}

// noteMutation records a primitive mutation of v. Under a frozen context the
// write is superseded: the orchestrating built-in owns the log and lands one
// consolidated event through the deferred path instead.
func (s *Session) noteMutation(v *scope.Variable, op string, before value.Value, args ...value.Value) error {
	if s.Ctx.IsFrozen() {
		return nil
	}
	t, ok := s.Traces.Of(v)
	if !ok {
		return nil
	}
	return t.Record(v.Val, s.makeEvent(trace.Alteration{Op: op, Before: before, Args: args}))
}

// checkpoint runs the post-statement protocol: advance the line counter,
// mark newly-assigned values usable, flush awaiting events, surface new
// events to the observer.
func (s *Session) checkpoint() error {
	s.line++
	return s.Traces.Checkpoint(s.Scopes)
}

// Keywords returns the reserved words the text-processing stage must not
// accept as identifiers.
func Keywords() []string {
	return []string{
		"int", "float", "bool", "list", "var",
		"while", "for", "if", "else",
		"function", "recursive", "trace",
		"true", "false", "null",
	}
}

// BuiltinNames returns every built-in callable name, control forms included.
func (s *Session) BuiltinNames() []string {
	names := s.Funcs.builtinNames()
	return append(names, "return", "break", "continue")
}
