package state

import (
	"testing"

	"aquila/internal/fault"
)

func TestStatusStack(t *testing.T) {
	ctx := NewContext()

	if ctx.Current().Status != Idle {
		t.Fatalf("fresh context is not idle")
	}

	ctx.Set(Declaration, "int")
	ctx.Set(Assignment, "$x")
	if ctx.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", ctx.Depth())
	}
	if cur := ctx.Current(); cur.Status != Assignment || cur.Info != "$x" {
		t.Errorf("expected innermost assignment entry, got %v", cur)
	}

	if err := ctx.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.Current().Status != Declaration {
		t.Errorf("pop did not expose the outer entry")
	}

	if err := ctx.Reset(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ctx.Reset(); !fault.Is(err, fault.Invariant) {
		t.Errorf("reset of an empty stack must be an invariant violation, got %v", err)
	}
}

func TestFreezePairing(t *testing.T) {
	ctx := NewContext()

	if err := ctx.Freeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ctx.Freeze(); !fault.Is(err, fault.Invariant) {
		t.Errorf("double freeze must fail, got %v", err)
	}
	if err := ctx.Unfreeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ctx.Unfreeze(); !fault.Is(err, fault.Invariant) {
		t.Errorf("unfreeze without a freeze must fail, got %v", err)
	}
}

func TestFrozenSetAndResetAreNoOps(t *testing.T) {
	ctx := NewContext()
	ctx.Set(LoopBody, "loop")

	if err := ctx.Freeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx.Set(BuiltinCall, "removeAt")
	if ctx.Depth() != 1 {
		t.Errorf("set while frozen must not grow the stack, depth %d", ctx.Depth())
	}
	if err := ctx.Reset(); err != nil {
		t.Errorf("reset while frozen must be a silent no-op, got %v", err)
	}
	if ctx.Depth() != 1 {
		t.Errorf("reset while frozen must not shrink the stack, depth %d", ctx.Depth())
	}
	if err := ctx.Unfreeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWhileFrozen(t *testing.T) {
	ctx := NewContext()

	ran := false
	err := ctx.WhileFrozen(func() error {
		ran = true
		if !ctx.IsFrozen() {
			t.Errorf("body must run under the freeze")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran {
		t.Fatalf("body never ran")
	}
	if ctx.IsFrozen() {
		t.Errorf("freeze not released on the success path")
	}
}

func TestWhileFrozenReleasesOnFailure(t *testing.T) {
	ctx := NewContext()

	err := ctx.WhileFrozen(func() error {
		return fault.Errorf(fault.Index, "boom")
	})
	if !fault.Is(err, fault.Index) {
		t.Fatalf("body error not propagated, got %v", err)
	}
	if ctx.IsFrozen() {
		t.Errorf("freeze not released on the failure path")
	}
	// the context must be reusable afterwards
	if err := ctx.Freeze(); err != nil {
		t.Errorf("context unusable after a failed frozen section: %v", err)
	}
}

func TestClear(t *testing.T) {
	ctx := NewContext()
	ctx.Set(Conditional, "x")
	if err := ctx.Freeze(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx.Clear()
	if ctx.Depth() != 0 || ctx.IsFrozen() {
		t.Errorf("clear left state behind: depth %d frozen %t", ctx.Depth(), ctx.IsFrozen())
	}
}
