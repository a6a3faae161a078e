package state

import (
	"log/slog"

	"aquila/internal/fault"
)

// Status names where execution currently is. Entries are pushed on statement
// entry and popped on exit.
type Status int

const (
	Idle Status = iota
	Declaration
	Assignment
	LoopHead
	LoopBody
	Conditional
	FunctionCall
	BuiltinCall
	TraceDirective
)

var statusNames = [...]string{
	"idle", "declaration", "assignment", "loop-head", "loop-body",
	"conditional", "function-call", "builtin-call", "trace-directive",
}

func (s Status) String() string {
	if int(s) < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

type Entry struct {
	Status Status
	Info   string
}

// Context is the process-wide record of where execution is. While frozen,
// Set and Reset are no-ops and low-level tracer writers must stay away; a
// compound built-in acquires the freeze around its primitive steps so no
// intermediate state leaks into a trace.
type Context struct {
	stack  []Entry
	frozen bool
}

func NewContext() *Context {
	return &Context{}
}

func (c *Context) Set(status Status, info string) {
	if c.frozen {
		return
	}
	c.stack = append(c.stack, Entry{Status: status, Info: info})
}

func (c *Context) Reset() error {
	if c.frozen {
		return nil
	}
	if len(c.stack) == 0 {
		return fault.Errorf(fault.Invariant, "context reset with empty status stack")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// Current returns the innermost entry, or an Idle entry when nothing is set.
func (c *Context) Current() Entry {
	if len(c.stack) == 0 {
		return Entry{Status: Idle}
	}
	return c.stack[len(c.stack)-1]
}

func (c *Context) Depth() int { return len(c.stack) }

func (c *Context) IsFrozen() bool { return c.frozen }

func (c *Context) Freeze() error {
	if c.frozen {
		return fault.Errorf(fault.Invariant, "freeze on an already-frozen context")
	}
	c.frozen = true
	slog.Debug("context frozen", slog.String("at", c.Current().Status.String()))
	return nil
}

func (c *Context) Unfreeze() error {
	if !c.frozen {
		return fault.Errorf(fault.Invariant, "unfreeze on a non-frozen context")
	}
	c.frozen = false
	slog.Debug("context unfrozen")
	return nil
}

// WhileFrozen runs fn under the freeze and guarantees release on every exit
// path, including when fn fails.
func (c *Context) WhileFrozen(fn func() error) error {
	if err := c.Freeze(); err != nil {
		return err
	}
	defer func() {
		c.frozen = false
	}()
	if err := fn(); err != nil {
		return err
	}
	return c.markUnfrozen()
}

func (c *Context) markUnfrozen() error {
	if !c.frozen {
		return fault.Errorf(fault.Invariant, "freeze released inside a frozen section")
	}
	return nil
}

// Clear drops every entry and the freeze flag; used only on full session reset.
func (c *Context) Clear() {
	c.stack = nil
	c.frozen = false
}
