package trace

import (
	"log/slog"

	"aquila/internal/fault"
	"aquila/internal/scope"
	"aquila/internal/state"
	"aquila/internal/value"
)

// Observer receives each committed event as it is surfaced at a checkpoint.
type Observer func(Event)

// Registry owns every tracer of a session. Tracers are created by explicit
// directives and live until the session is reset in full.
type Registry struct {
	ctx      *state.Context
	vars     map[*scope.Variable]*Tracer
	funcs    map[string]*Tracer
	order    []*Tracer
	observer Observer
}

func NewRegistry(ctx *state.Context) *Registry {
	return &Registry{
		ctx:   ctx,
		vars:  map[*scope.Variable]*Tracer{},
		funcs: map[string]*Tracer{},
	}
}

func (r *Registry) SetObserver(fn Observer) { r.observer = fn }

// Attach starts tracing a variable. The creation event seeds the log, so a
// freshly traced variable already has height 1.
func (r *Registry) Attach(v *scope.Variable, creation Event) (*Tracer, error) {
	if _, exists := r.vars[v]; exists {
		return nil, fault.Errorf(fault.Invariant, "variable '%s' is already traced", v.Name)
	}
	t := &Tracer{ctx: r.ctx, target: v}
	t.push(v.Val, creation)
	r.vars[v] = t
	r.order = append(r.order, t)
	slog.Debug("tracer attached", slog.String("variable", v.Name))
	return t, nil
}

// AttachFunc starts tracing a function name. The affected map says which
// argument positions each call mutates and how many trailing events of that
// argument's log one call absorbs.
func (r *Registry) AttachFunc(name string, affected map[int]int) (*Tracer, error) {
	if _, exists := r.funcs[name]; exists {
		return nil, fault.Errorf(fault.Invariant, "function '%s' is already traced", name)
	}
	t := &Tracer{ctx: r.ctx, fnName: name, affected: affected}
	r.funcs[name] = t
	r.order = append(r.order, t)
	slog.Debug("function tracer attached", slog.String("function", name))
	return t, nil
}

// Alias lets a callee-frame parameter record onto the tracer of the caller
// variable it was bound from, so mutations inside the function land in the
// same history the call-level squeeze reconciles. Dropped when the call
// returns.
func (r *Registry) Alias(param, origin *scope.Variable) {
	if t, ok := r.vars[origin]; ok {
		r.vars[param] = t
	}
}

func (r *Registry) Unalias(param *scope.Variable) {
	delete(r.vars, param)
}

func (r *Registry) Of(v *scope.Variable) (*Tracer, bool) {
	t, ok := r.vars[v]
	return t, ok
}

func (r *Registry) OfFunc(name string) (*Tracer, bool) {
	t, ok := r.funcs[name]
	return t, ok
}

// RecordCall logs one invocation of a traced function and squeezes every
// affected argument's log down to the single higher-level event.
func (r *Registry) RecordCall(name string, ev Event, argVars []*scope.Variable) error {
	ft, ok := r.funcs[name]
	if !ok {
		return fault.Errorf(fault.Invariant, "function '%s' is not traced", name)
	}
	if err := ft.check(); err != nil {
		return err
	}
	ft.push(value.NullValue, ev)

	for idx, count := range ft.affected {
		if idx < 0 || idx >= len(argVars) || argVars[idx] == nil {
			return fault.Errorf(fault.Invariant,
				"traced function '%s' affects argument %d, but the call site passed no variable there",
				name, idx)
		}
		vt, traced := r.vars[argVars[idx]]
		if !traced {
			return fault.Errorf(fault.Invariant,
				"traced function '%s' affects '%s', which is not traced",
				name, argVars[idx].Name)
		}
		if err := vt.Squeeze(count, argVars[idx].Val, ev); err != nil {
			return err
		}
	}
	return nil
}

// Checkpoint is the post-statement synchronization point:
//  1. newly-assigned non-null values become usable,
//  2. awaiting events are committed in FIFO order,
//  3. tracers that grew surface their newest event to the observer.
func (r *Registry) Checkpoint(scopes *scope.Stack) error {
	scopes.ForEach(func(v *scope.Variable) {
		if v.Assigned && !v.Usable && v.Val.Kind != value.Null {
			v.Usable = true
		}
	})

	for _, t := range r.order {
		if t.corrupted {
			continue
		}
		t.flush()
	}

	for _, t := range r.order {
		if t.corrupted {
			continue
		}
		if t.Height() > t.observed {
			if r.observer != nil {
				ev := t.events[len(t.events)-1]
				r.observer(ev)
			}
			t.observed = t.Height()
		}
	}
	return nil
}

// Reset destroys every tracer; part of a full environment reset only.
func (r *Registry) Reset() {
	r.vars = map[*scope.Variable]*Tracer{}
	r.funcs = map[string]*Tracer{}
	r.order = nil
}
