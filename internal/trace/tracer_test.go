package trace

import (
	"testing"

	"aquila/internal/fault"
	"aquila/internal/scope"
	"aquila/internal/state"
	"aquila/internal/value"
)

func newTestTracer(t *testing.T) (*state.Context, *Registry, *scope.Variable, *Tracer) {
	t.Helper()
	ctx := state.NewContext()
	r := NewRegistry(ctx)
	v := &scope.Variable{Name: "x", Val: value.IntValue(0), Assigned: true, Usable: true}
	tr, err := r.Attach(v, Event{Status: state.TraceDirective, Info: "x", Alt: Alteration{Op: "trace"}})
	if err != nil {
		t.Fatalf("attach failed: %v", err)
	}
	return ctx, r, v, tr
}

func record(t *testing.T, tr *Tracer, v *scope.Variable, val value.Value) {
	t.Helper()
	v.Val = val
	err := tr.Record(val, Event{Status: state.Assignment, Info: v.Name, Alt: Alteration{Op: "set"}})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
}

func TestCreationEventSeedsHeight(t *testing.T) {
	_, _, _, tr := newTestTracer(t)

	if tr.Height() != 1 {
		t.Fatalf("freshly attached tracer has height %d, want 1", tr.Height())
	}
	ev, err := tr.Latest()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Alt.Op != "trace" {
		t.Errorf("creation event carries op %q", ev.Alt.Op)
	}
}

func TestRecordGrowsBothLogs(t *testing.T) {
	_, _, v, tr := newTestTracer(t)

	for i := int32(1); i <= 3; i++ {
		record(t, tr, v, value.IntValue(i))
	}
	if tr.Height() != 4 {
		t.Errorf("after 3 mutations height is %d, want 4", tr.Height())
	}
}

func TestRecordRejectedWhileFrozen(t *testing.T) {
	ctx, _, v, tr := newTestTracer(t)

	if err := ctx.Freeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := tr.Record(v.Val, Event{Status: state.BuiltinCall})
	if !fault.Is(err, fault.Invariant) {
		t.Errorf("record under a frozen context must fail, got %v", err)
	}
	if tr.Height() != 1 {
		t.Errorf("rejected record still grew the log to %d", tr.Height())
	}
}

func TestAwaitCommitsAtFlush(t *testing.T) {
	_, r, v, tr := newTestTracer(t)

	err := tr.Await(value.IntValue(5), Event{Status: state.BuiltinCall, Alt: Alteration{Op: "swap"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Height() != 1 {
		t.Fatalf("awaiting event committed early, height %d", tr.Height())
	}

	scopes := scope.NewStack()
	if err := r.Checkpoint(scopes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Height() != 2 {
		t.Fatalf("awaiting event not committed at the checkpoint, height %d", tr.Height())
	}
	ev, _ := tr.Latest()
	if ev.Alt.Op != "swap" {
		t.Errorf("flushed event carries op %q", ev.Alt.Op)
	}
	_ = v
}

func TestRecordedValuesAreSnapshots(t *testing.T) {
	_, _, v, tr := newTestTracer(t)

	list := value.ListValue(value.IntValue(1))
	record(t, tr, v, list)
	list.List.Elems[0] = value.IntValue(99)

	vals, _, err := tr.Drain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := vals[1].Inspect(); got != "[1]" {
		t.Fatalf("logged value mutated after the fact, got %s", got)
	}
}

func TestSqueeze(t *testing.T) {
	_, _, v, tr := newTestTracer(t)

	record(t, tr, v, value.IntValue(1))
	record(t, tr, v, value.IntValue(2))
	record(t, tr, v, value.IntValue(3))

	err := tr.Squeeze(2, v.Val, Event{Status: state.FunctionCall, Alt: Alteration{Op: "call:grow"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.Height() != 3 {
		t.Errorf("squeeze of 2 from height 4 gives %d, want 3", tr.Height())
	}
	ev, _ := tr.Latest()
	if ev.Alt.Op != "call:grow" {
		t.Errorf("consolidated event carries op %q", ev.Alt.Op)
	}
}

func TestSqueezeBounds(t *testing.T) {
	_, _, v, tr := newTestTracer(t)
	record(t, tr, v, value.IntValue(1))

	if err := tr.Squeeze(0, v.Val, Event{}); !fault.Is(err, fault.Invariant) {
		t.Errorf("squeeze of 0 must fail, got %v", err)
	}
	if err := tr.Squeeze(2, v.Val, Event{}); !fault.Is(err, fault.Invariant) {
		t.Errorf("squeeze that would drain the log must fail, got %v", err)
	}
}

func TestRewind(t *testing.T) {
	_, _, v, tr := newTestTracer(t)

	record(t, tr, v, value.IntValue(10))
	record(t, tr, v, value.IntValue(20))
	record(t, tr, v, value.IntValue(30))

	val, err := tr.Rewind(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != value.IntValue(20) {
		t.Errorf("rewind(2) returned %s, want 20", val.Inspect())
	}
	if tr.Height() != 2 {
		t.Errorf("rewind(2) left height %d, want 2", tr.Height())
	}
}

func TestRewindBounds(t *testing.T) {
	_, _, v, tr := newTestTracer(t)
	record(t, tr, v, value.IntValue(1))

	if _, err := tr.Rewind(1); !fault.Is(err, fault.Invariant) {
		t.Errorf("rewind to the current state must fail, got %v", err)
	}
	if _, err := tr.Rewind(3); !fault.Is(err, fault.Invariant) {
		t.Errorf("rewind past the log height must fail, got %v", err)
	}
}

func TestFunctionTracerRefusesRewind(t *testing.T) {
	ctx := state.NewContext()
	r := NewRegistry(ctx)

	ft, err := r.AttachFunc("grow", map[int]int{0: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ft.Rewind(2); !fault.Is(err, fault.Invariant) {
		t.Errorf("function history must not be replayable, got %v", err)
	}
}

func TestDrainCorruptsTracer(t *testing.T) {
	_, _, v, tr := newTestTracer(t)
	record(t, tr, v, value.IntValue(1))

	vals, events, err := tr.Drain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vals) != 2 || len(events) != 2 {
		t.Fatalf("drain returned %d values and %d events, want 2 and 2", len(vals), len(events))
	}

	if !tr.Corrupted() {
		t.Fatalf("drained tracer not marked corrupted")
	}
	if err := tr.Record(v.Val, Event{}); !fault.Is(err, fault.Invariant) {
		t.Errorf("record on a corrupted tracer must fail, got %v", err)
	}
	if _, err := tr.Latest(); !fault.Is(err, fault.Invariant) {
		t.Errorf("latest on a corrupted tracer must fail, got %v", err)
	}
	if _, _, err := tr.Drain(); !fault.Is(err, fault.Invariant) {
		t.Errorf("double drain must fail, got %v", err)
	}
}

func TestDoubleAttach(t *testing.T) {
	_, r, v, _ := newTestTracer(t)
	if _, err := r.Attach(v, Event{}); !fault.Is(err, fault.Invariant) {
		t.Errorf("double attach must fail, got %v", err)
	}
}

func TestRecordCallSqueezesAffectedArgs(t *testing.T) {
	ctx := state.NewContext()
	r := NewRegistry(ctx)

	v := &scope.Variable{Name: "data", Val: value.IntValue(0), Assigned: true, Usable: true}
	vt, err := r.Attach(v, Event{Alt: Alteration{Op: "trace"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.AttachFunc("grow", map[int]int{0: 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// the call body performed two primitive mutations
	for i := int32(1); i <= 2; i++ {
		v.Val = value.IntValue(i)
		if err := vt.Record(v.Val, Event{Alt: Alteration{Op: "set"}}); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	callEv := Event{Status: state.FunctionCall, Info: "grow", Alt: Alteration{Op: "call:grow"}}
	if err := r.RecordCall("grow", callEv, []*scope.Variable{v}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vt.Height() != 2 {
		t.Errorf("affected argument log has height %d, want 2", vt.Height())
	}
	ev, _ := vt.Latest()
	if ev.Alt.Op != "call:grow" {
		t.Errorf("argument log top is %q, want the consolidated call event", ev.Alt.Op)
	}

	ft, _ := r.OfFunc("grow")
	if ft.Height() != 1 {
		t.Errorf("function log has height %d, want 1", ft.Height())
	}
}

func TestRecordCallRejectsUntracedArgument(t *testing.T) {
	ctx := state.NewContext()
	r := NewRegistry(ctx)

	if _, err := r.AttachFunc("grow", map[int]int{0: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := &scope.Variable{Name: "data", Val: value.IntValue(0)}

	err := r.RecordCall("grow", Event{}, []*scope.Variable{v})
	if !fault.Is(err, fault.Invariant) {
		t.Errorf("untraced affected argument must fail, got %v", err)
	}

	err = r.RecordCall("grow", Event{}, nil)
	if !fault.Is(err, fault.Invariant) {
		t.Errorf("missing affected argument must fail, got %v", err)
	}
}

func TestCheckpointSurfacesNewEvents(t *testing.T) {
	_, r, v, tr := newTestTracer(t)

	var seen []Event
	r.SetObserver(func(ev Event) { seen = append(seen, ev) })

	scopes := scope.NewStack()
	if err := r.Checkpoint(scopes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 || seen[0].Alt.Op != "trace" {
		t.Fatalf("creation event not surfaced, saw %d events", len(seen))
	}

	// nothing new: the observer stays quiet
	if err := r.Checkpoint(scopes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 1 {
		t.Fatalf("checkpoint resurfaced an old event")
	}

	record(t, tr, v, value.IntValue(1))
	if err := r.Checkpoint(scopes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 2 || seen[1].Alt.Op != "set" {
		t.Fatalf("new event not surfaced, saw %d events", len(seen))
	}
}

func TestObserverDeliveryAcrossSqueeze(t *testing.T) {
	_, r, v, tr := newTestTracer(t)
	scopes := scope.NewStack()

	var ops []string
	r.SetObserver(func(ev Event) { ops = append(ops, ev.Alt.Op) })

	checkpoint := func() {
		t.Helper()
		if err := r.Checkpoint(scopes); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	checkpoint()
	record(t, tr, v, value.IntValue(1))
	checkpoint()
	record(t, tr, v, value.IntValue(2))
	checkpoint()
	if len(ops) != 3 {
		t.Fatalf("expected 3 surfaced events before the squeeze, saw %v", ops)
	}

	err := tr.Squeeze(2, v.Val, Event{Status: state.FunctionCall, Alt: Alteration{Op: "call:grow"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checkpoint()
	if len(ops) != 4 || ops[3] != "call:grow" {
		t.Fatalf("consolidated event not surfaced after the squeeze, saw %v", ops)
	}

	// the log shrank below the already-surfaced height; later commits must
	// still reach the observer
	record(t, tr, v, value.IntValue(3))
	checkpoint()
	if len(ops) != 5 || ops[4] != "set" {
		t.Fatalf("mutation after the squeeze withheld from the observer, saw %v", ops)
	}
}

func TestCheckpointMarksUsable(t *testing.T) {
	ctx := state.NewContext()
	r := NewRegistry(ctx)
	scopes := scope.NewStack()

	v, err := scopes.Declare("x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v.Val = value.IntValue(1)
	v.Assigned = true

	if err := r.Checkpoint(scopes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Usable {
		t.Errorf("assigned variable not marked usable at the checkpoint")
	}
}
