package trace

import (
	"aquila/internal/fault"
	"aquila/internal/scope"
	"aquila/internal/state"
	"aquila/internal/value"
)

// Alteration describes one semantic mutation: the operation, the primary
// value before it ran, and any minor arguments (indices, inserted elements).
type Alteration struct {
	Op     string
	Before value.Value
	Args   []value.Value
}

// Event is an Alteration plus the execution-context snapshot at the moment it
// occurred. Events are the unit of replay and rewind.
type Event struct {
	Status state.Status
	Info   string
	Line   int
	Alt    Alteration
}

type pendingPair struct {
	val value.Value
	ev  Event
}

// Tracer owns the paired LIFO value and event logs of one traced entity.
// Variable tracers record every mutation of their target; function tracers
// log invocations and squeeze the targets their calls are known to affect.
type Tracer struct {
	ctx    *state.Context
	target *scope.Variable

	fnName   string
	affected map[int]int // argument position -> trailing events to absorb

	vals    []value.Value
	events  []Event
	pending []pendingPair

	corrupted bool
	observed  int // log height already surfaced to the observer hook
}

func (t *Tracer) IsFunction() bool { return t.target == nil }

func (t *Tracer) Height() int { return len(t.events) }

func (t *Tracer) Corrupted() bool { return t.corrupted }

// Target returns the traced variable, nil for function tracers.
func (t *Tracer) Target() *scope.Variable { return t.target }

func (t *Tracer) check() error {
	if t.corrupted {
		return fault.Errorf(fault.Invariant, "use of a corrupted tracer")
	}
	return nil
}

// Record commits one primitive mutation immediately. It must never run while
// the context is frozen; a compound built-in owns the logs during a freeze
// and goes through the deferred path instead.
func (t *Tracer) Record(val value.Value, ev Event) error {
	if err := t.check(); err != nil {
		return err
	}
	if t.ctx.IsFrozen() {
		return fault.Errorf(fault.Invariant, "tracer write while the context is frozen")
	}
	t.push(val, ev)
	return nil
}

// Await defers a mutation until the next checkpoint flush. This is how a
// compound built-in lands as a single consolidated event.
func (t *Tracer) Await(val value.Value, ev Event) error {
	if err := t.check(); err != nil {
		return err
	}
	t.pending = append(t.pending, pendingPair{val: val.Copy(), ev: ev})
	return nil
}

// flush commits the awaiting entries in FIFO order.
func (t *Tracer) flush() int {
	n := len(t.pending)
	for _, p := range t.pending {
		t.push(p.val, p.ev)
	}
	t.pending = nil
	return n
}

func (t *Tracer) push(val value.Value, ev Event) {
	t.vals = append(t.vals, val.Copy())
	t.events = append(t.events, ev)
}

// Squeeze pops count trailing (value, event) pairs and replaces them with a
// single pair carrying the current state and the consolidated event.
func (t *Tracer) Squeeze(count int, current value.Value, ev Event) error {
	if err := t.check(); err != nil {
		return err
	}
	if count < 1 {
		return fault.Errorf(fault.Invariant, "squeeze count must be at least 1, got %d", count)
	}
	if count >= len(t.events) {
		return fault.Errorf(fault.Invariant,
			"squeeze of %d entries would drain a log of height %d", count, len(t.events))
	}
	t.vals = t.vals[:len(t.vals)-count]
	t.events = t.events[:len(t.events)-count]
	if t.observed > len(t.events) {
		t.observed = len(t.events)
	}
	t.push(current, ev)
	return nil
}

// Rewind pops n trailing pairs and returns the last-popped value, which the
// caller force-sets onto the variable outside normal mutation tracing.
// Function call history is not individually replayable.
func (t *Tracer) Rewind(n int) (value.Value, error) {
	if err := t.check(); err != nil {
		return value.NullValue, err
	}
	if t.IsFunction() {
		return value.NullValue, fault.Errorf(fault.Invariant,
			"function '%s' has no replayable history, only the variables it affected do", t.fnName)
	}
	if n <= 1 {
		return value.NullValue, fault.Errorf(fault.Invariant, "rewind depth must exceed 1, got %d", n)
	}
	if n > len(t.events) {
		return value.NullValue, fault.Errorf(fault.Invariant,
			"rewind depth %d exceeds log height %d", n, len(t.events))
	}
	val := t.vals[len(t.vals)-n]
	t.vals = t.vals[:len(t.vals)-n]
	t.events = t.events[:len(t.events)-n]
	if t.observed > len(t.events) {
		t.observed = len(t.events)
	}
	return val, nil
}

// Latest returns the newest committed event.
func (t *Tracer) Latest() (Event, error) {
	if err := t.check(); err != nil {
		return Event{}, err
	}
	if len(t.events) == 0 {
		return Event{}, fault.Errorf(fault.Invariant, "tracer has no events")
	}
	return t.events[len(t.events)-1], nil
}

// Events returns a snapshot of the committed event log, oldest first.
func (t *Tracer) Events() ([]Event, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out, nil
}

// Drain hands over both logs for inspection and marks the tracer corrupted;
// every later operation on it fails fast rather than reading emptied history.
func (t *Tracer) Drain() ([]value.Value, []Event, error) {
	if err := t.check(); err != nil {
		return nil, nil, err
	}
	vals, events := t.vals, t.events
	t.vals, t.events, t.pending = nil, nil, nil
	t.corrupted = true
	return vals, events, nil
}
