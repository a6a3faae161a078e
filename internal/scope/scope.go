package scope

import (
	"log/slog"

	"aquila/internal/fault"
	"aquila/internal/value"
)

// NullName is the constant binding every call frame starts with.
const NullName = "null"

// Variable is a named slot in the scope stack. Assigned distinguishes a real
// value from the placeholder a bare declaration leaves behind; Usable is
// flipped at the first checkpoint after assignment so observers never see a
// placeholder.
type Variable struct {
	Name     string
	Val      value.Value
	Assigned bool
	Usable   bool
}

// ForceSet overwrites the value without any bookkeeping. This is the rewind
// backdoor, not a normal write.
func (v *Variable) ForceSet(val value.Value) {
	v.Val = val
	v.Assigned = true
	v.Usable = true
}

type blockFrame struct {
	vars map[string]*Variable
}

// CallFrame is one active function invocation. Lookups never leave the
// current call frame: Aquila has call-local scoping, not lexical closures.
type CallFrame struct {
	Name   string
	blocks []*blockFrame
}

func newCallFrame(name string) *CallFrame {
	f := &CallFrame{Name: name}
	f.blocks = append(f.blocks, &blockFrame{vars: map[string]*Variable{}})
	f.blocks[0].vars[NullName] = &Variable{
		Name:     NullName,
		Val:      value.NullValue,
		Assigned: true,
		Usable:   true,
	}
	return f
}

// Stack is the two-level scope stack: call frames outside, block frames
// inside. The innermost call frame is the only one visible to lookups.
type Stack struct {
	frames []*CallFrame
}

func NewStack() *Stack {
	return &Stack{frames: []*CallFrame{newCallFrame("main")}}
}

func (s *Stack) current() *CallFrame {
	return s.frames[len(s.frames)-1]
}

func (s *Stack) PushCall(name string) {
	slog.Debug("push call frame", slog.String("function", name))
	s.frames = append(s.frames, newCallFrame(name))
}

func (s *Stack) PopCall() error {
	if len(s.frames) <= 1 {
		return fault.Errorf(fault.Invariant, "pop of the outermost call frame")
	}
	s.frames = s.frames[:len(s.frames)-1]
	return nil
}

func (s *Stack) PushBlock() {
	f := s.current()
	f.blocks = append(f.blocks, &blockFrame{vars: map[string]*Variable{}})
}

func (s *Stack) PopBlock() error {
	f := s.current()
	if len(f.blocks) <= 1 {
		return fault.Errorf(fault.Invariant, "pop of a call frame's root block")
	}
	f.blocks = f.blocks[:len(f.blocks)-1]
	return nil
}

// Declare registers a name in the innermost block frame, holding the Null
// placeholder until the declaration's initializer is stored.
func (s *Stack) Declare(name string) (*Variable, error) {
	f := s.current()
	block := f.blocks[len(f.blocks)-1]
	if _, exists := block.vars[name]; exists {
		return nil, fault.Errorf(fault.Name, "'%s' is already declared in this scope", name)
	}
	v := &Variable{Name: name, Val: value.NullValue}
	block.vars[name] = v
	return v, nil
}

// Resolve walks block frames innermost-out within the current call frame.
func (s *Stack) Resolve(name string) (*Variable, error) {
	f := s.current()
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if v, ok := f.blocks[i].vars[name]; ok {
			return v, nil
		}
	}
	return nil, fault.Errorf(fault.Name, "unknown variable '%s'", name)
}

// Delete removes a binding from whichever block frame of the current call
// frame holds it.
func (s *Stack) Delete(name string) error {
	if name == NullName {
		return fault.Errorf(fault.Name, "'%s' is a constant and cannot be deleted", name)
	}
	f := s.current()
	for i := len(f.blocks) - 1; i >= 0; i-- {
		if _, ok := f.blocks[i].vars[name]; ok {
			delete(f.blocks[i].vars, name)
			return nil
		}
	}
	return fault.Errorf(fault.Name, "unknown variable '%s'", name)
}

// ForEach visits every variable in every frame, outermost first. The tracer
// checkpoint uses this to discover newly-assigned values.
func (s *Stack) ForEach(fn func(*Variable)) {
	for _, frame := range s.frames {
		for _, block := range frame.blocks {
			for _, v := range block.vars {
				fn(v)
			}
		}
	}
}

// Depth reports the number of active call frames.
func (s *Stack) Depth() int { return len(s.frames) }

// Reset drops everything back to a single fresh call frame.
func (s *Stack) Reset() {
	s.frames = []*CallFrame{newCallFrame("main")}
}
