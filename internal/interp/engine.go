package interp

import (
	"strings"

	"aquila/internal/eval"
	"aquila/internal/fault"
	"aquila/internal/program"
	"aquila/internal/state"
	"aquila/internal/value"
)

// signal is the distinguished control-flow result a statement may produce.
// It is not an error and not a value: it unwinds execution until the
// enclosing loop or function call catches it.
type signal int

const (
	sigNone signal = iota
	sigReturn
	sigBreak
	sigContinue
)

type flow struct {
	sig signal
	val value.Value
}

var flowNone = flow{val: value.NullValue}

// Execute runs a full program tree and returns its declared return value,
// Null when execution falls off the end.
func (s *Session) Execute(nodes []*program.Node) (value.Value, error) {
	for _, n := range nodes {
		fl, err := s.execNode(n)
		if err != nil {
			return value.NullValue, fault.AtLine(err, s.line)
		}
		if err := s.checkpoint(); err != nil {
			return value.NullValue, fault.AtLine(err, s.line)
		}
		switch fl.sig {
		case sigReturn:
			return fl.val, nil
		case sigBreak, sigContinue:
			return value.NullValue, fault.AtLine(fault.Errorf(fault.Invariant,
				"loop control escaped to the top level"), s.line)
		case sigNone:
		}
	}
	return value.NullValue, nil
}

// execNodes runs an ordered statement list inside a fresh block frame, with
// the tracer checkpoint after every statement.
func (s *Session) execNodes(nodes []*program.Node) (flow, error) {
	s.Scopes.PushBlock()
	defer func() { _ = s.Scopes.PopBlock() }()

	for _, n := range nodes {
		fl, err := s.execNode(n)
		if err != nil {
			return flowNone, err
		}
		if err := s.checkpoint(); err != nil {
			return flowNone, err
		}
		if fl.sig != sigNone {
			return fl, nil
		}
	}
	return flowNone, nil
}

func (s *Session) execNode(n *program.Node) (flow, error) {
	line := strings.TrimSpace(n.Line)
	word, rest := leadingWord(line)

	switch word {
	case "while":
		cond, err := headerCondition(line, word)
		if err != nil {
			return flowNone, err
		}
		return s.execWhile(cond, n.Body)

	case "for":
		return s.execFor(line, n.Body)

	case "if":
		cond, err := headerCondition(line, word)
		if err != nil {
			return flowNone, err
		}
		return s.execIf(cond, n.Body, n.Else)

	case "function":
		return flowNone, s.defineFunction(rest, n.Body, false)

	case "recursive":
		inner, rest2 := leadingWord(rest)
		if inner != "function" {
			return flowNone, fault.Errorf(fault.Syntax, "expected 'function' after 'recursive' in '%s'", line)
		}
		return flowNone, s.defineFunction(rest2, n.Body, true)

	case "trace":
		return flowNone, s.execTrace(rest)

	case "int", "float", "bool", "list", "var":
		return flowNone, s.execDeclaration(word, rest)
	}

	if n.IsBlock() {
		return flowNone, fault.Errorf(fault.Invariant, "statement '%s' cannot carry a nested body", line)
	}
	if strings.HasPrefix(line, "$") {
		return flowNone, s.execAssignment(line)
	}
	return s.execVoidCall(line)
}

// execDeclaration registers the name with a placeholder before evaluating
// the initializer, so later-rebinding code already sees the name.
func (s *Session) execDeclaration(typeWord, rest string) error {
	return s.within(state.Declaration, typeWord, func() error {
		target, init, hasInit := cutAssign(rest)
		if !strings.HasPrefix(target, "$") {
			return fault.Errorf(fault.Syntax, "declaration target must be a $name, got '%s'", target)
		}
		name := target[1:]

		v, err := s.Scopes.Declare(name)
		if err != nil {
			return err
		}

		declared, typed := declaredKind(typeWord)
		if !hasInit {
			if typed {
				v.Val = value.DefaultFor(declared)
			}
			v.Assigned = false
			return nil
		}

		val, err := s.Eval.Evaluate(init)
		if err != nil {
			return err
		}
		if typed && val.Kind != declared && val.Kind != value.Null {
			return fault.Errorf(fault.Type,
				"cannot initialize %s '$%s' with a %s value", declared, name, val.Kind)
		}
		v.Val = val
		v.Assigned = true
		return nil
	})
}

func declaredKind(typeWord string) (value.Kind, bool) {
	switch typeWord {
	case "int":
		return value.Int, true
	case "float":
		return value.Float, true
	case "bool":
		return value.Bool, true
	case "list":
		return value.List, true
	}
	return value.Null, false // var: inferred
}

func (s *Session) execAssignment(line string) error {
	target, expr, ok := cutAssign(line)
	if !ok {
		return fault.Errorf(fault.Syntax, "malformed assignment '%s'", line)
	}
	return s.within(state.Assignment, target, func() error {
		val, err := s.Eval.Evaluate(expr)
		if err != nil {
			return err
		}
		if val.Kind == value.PendingCall {
			return fault.Errorf(fault.Assignment, "cannot assign an unresolved call result")
		}
		v, err := s.Eval.ResolveTarget(target)
		if err != nil {
			return err
		}
		before := v.Val
		v.Val = val
		v.Assigned = true
		return s.noteMutation(v, "set", before, val)
	})
}

func (s *Session) execWhile(cond string, body []*program.Node) (flow, error) {
	for {
		proceed, err := s.evalCondition(cond, state.LoopHead)
		if err != nil {
			return flowNone, err
		}
		if !proceed {
			return flowNone, nil
		}

		var fl flow
		err = s.within(state.LoopBody, cond, func() error {
			var bodyErr error
			fl, bodyErr = s.execNodes(body)
			return bodyErr
		})
		if err != nil {
			return flowNone, err
		}
		switch fl.sig {
		case sigBreak:
			return flowNone, nil
		case sigReturn:
			return fl, nil
		case sigContinue, sigNone:
		}
	}
}

// execFor desugars to init; while(cond){ body; step }. The init binding
// lives in a block wrapped around the whole loop.
func (s *Session) execFor(line string, body []*program.Node) (flow, error) {
	inner, err := headerCondition(line, "for")
	if err != nil {
		return flowNone, err
	}
	parts := eval.SplitTopLevel(inner, ';')
	if len(parts) != 3 {
		return flowNone, fault.Errorf(fault.Syntax,
			"for header needs 'init ; condition ; step', got '%s'", inner)
	}
	init, cond, step := parts[0], parts[1], parts[2]

	s.Scopes.PushBlock()
	defer func() { _ = s.Scopes.PopBlock() }()

	if _, err := s.execNode(&program.Node{Line: init}); err != nil {
		return flowNone, err
	}
	if err := s.checkpoint(); err != nil {
		return flowNone, err
	}

	looped := make([]*program.Node, 0, len(body)+1)
	looped = append(looped, body...)
	looped = append(looped, &program.Node{Line: step})
	return s.execWhile(cond, looped)
}

func (s *Session) execIf(cond string, then, other []*program.Node) (flow, error) {
	proceed, err := s.evalCondition(cond, state.Conditional)
	if err != nil {
		return flowNone, err
	}
	branch := then
	if !proceed {
		branch = other
	}
	if len(branch) == 0 {
		return flowNone, nil
	}

	var fl flow
	err = s.within(state.Conditional, cond, func() error {
		var branchErr error
		fl, branchErr = s.execNodes(branch)
		return branchErr
	})
	return fl, err
}

func (s *Session) evalCondition(cond string, st state.Status) (bool, error) {
	var result bool
	err := s.within(st, cond, func() error {
		v, err := s.Eval.Evaluate(cond)
		if err != nil {
			return err
		}
		if v.Kind != value.Bool {
			return fault.Errorf(fault.Type, "condition must evaluate to BOOLEAN, got %s", v.Kind)
		}
		result = v.Bool
		return nil
	})
	return result, err
}

// execTrace attaches a tracer to each listed variable.
func (s *Session) execTrace(rest string) error {
	if strings.TrimSpace(rest) == "" {
		return fault.Errorf(fault.Syntax, "trace directive names no variables")
	}
	for _, part := range eval.SplitTopLevel(rest, ',') {
		v, err := s.Eval.ResolveTarget(part)
		if err != nil {
			return err
		}
		if err := s.attachTracer(v); err != nil {
			return err
		}
	}
	return nil
}

// execVoidCall handles the leaf call statement forms. return, break and
// continue become control-flow signals; everything else is dispatched
// through the registry and its result discarded.
func (s *Session) execVoidCall(line string) (flow, error) {
	name, args, ok := eval.ParseCall(line)
	if !ok {
		return flowNone, fault.Errorf(fault.Syntax, "cannot execute statement '%s'", line)
	}

	switch name {
	case "return":
		switch len(args) {
		case 0:
			return flow{sig: sigReturn, val: value.NullValue}, nil
		case 1:
			val, err := s.Eval.Evaluate(args[0])
			if err != nil {
				return flowNone, err
			}
			return flow{sig: sigReturn, val: val}, nil
		default:
			return flowNone, fault.Errorf(fault.Syntax, "return takes at most one argument, got %d", len(args))
		}
	case "break":
		if len(args) != 0 {
			return flowNone, fault.Errorf(fault.Syntax, "break takes no arguments")
		}
		return flow{sig: sigBreak, val: value.NullValue}, nil
	case "continue":
		if len(args) != 0 {
			return flowNone, fault.Errorf(fault.Syntax, "continue takes no arguments")
		}
		return flow{sig: sigContinue, val: value.NullValue}, nil
	}

	// a value-returning built-in has no effect as a bare statement
	if b, ok := s.Funcs.builtins[name]; ok && !b.Void {
		return flowNone, fault.Errorf(fault.Type,
			"'%s' returns a value and cannot stand alone as a statement", name)
	}

	_, err := s.Invoke(name, args)
	return flowNone, err
}

// leadingWord splits the first identifier off a statement line.
func leadingWord(line string) (string, string) {
	i := 0
	for i < len(line) {
		c := line[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			i++
			continue
		}
		break
	}
	word := line[:i]
	rest := strings.TrimSpace(line[i:])
	// a call like format(...) is not the keyword "for"
	if strings.HasPrefix(rest, "(") && word != "" && !isHeaderKeyword(word) {
		return "", line
	}
	return word, rest
}

func isHeaderKeyword(word string) bool {
	switch word {
	case "while", "for", "if", "function", "recursive", "trace",
		"int", "float", "bool", "list", "var":
		return true
	}
	return false
}

// headerCondition extracts the parenthesized condition of a block header.
func headerCondition(line, keyword string) (string, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, keyword))
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", fault.Errorf(fault.Syntax, "%s header needs a parenthesized condition, got '%s'", keyword, line)
	}
	return strings.TrimSpace(rest[1 : len(rest)-1]), nil
}

// cutAssign splits a line at its first top-level '=' that is an assignment,
// not part of '<=' or '>='.
func cutAssign(line string) (string, string, bool) {
	depth := 0
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case '=':
			if depth != 0 {
				continue
			}
			if i > 0 && (line[i-1] == '<' || line[i-1] == '>') {
				continue
			}
			return strings.TrimSpace(line[:i]), strings.TrimSpace(line[i+1:]), true
		}
	}
	return strings.TrimSpace(line), "", false
}
