package interp

import (
	"fmt"
	"strings"

	"aquila/internal/fault"
	"aquila/internal/trace"
	"aquila/internal/value"
)

// printable renders a raw print argument: a double-quoted string prints its
// text verbatim, anything else evaluates as an expression.
func printable(c *CallArgs, expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if len(expr) >= 2 && strings.HasPrefix(expr, `"`) && strings.HasSuffix(expr, `"`) {
		return expr[1 : len(expr)-1], nil
	}
	v, err := c.S.Eval.Evaluate(expr)
	if err != nil {
		return "", err
	}
	return v.Inspect(), nil
}

func funcPrint() *Builtin {
	return &Builtin{
		Name:  "print",
		Arity: 1,
		Void:  true,
		Raw:   true,
		Fn: func(c *CallArgs) (value.Value, error) {
			text, err := printable(c, c.Exprs[0])
			if err != nil {
				return value.NullValue, err
			}
			fmt.Fprint(c.S.Out, text)
			return value.NullValue, nil
		},
	}
}

func funcPrintLn() *Builtin {
	return &Builtin{
		Name:  "println",
		Arity: 1,
		Void:  true,
		Raw:   true,
		Fn: func(c *CallArgs) (value.Value, error) {
			text, err := printable(c, c.Exprs[0])
			if err != nil {
				return value.NullValue, err
			}
			fmt.Fprintln(c.S.Out, text)
			return value.NullValue, nil
		},
	}
}

func funcDelete() *Builtin {
	return &Builtin{
		Name:  "delete",
		Arity: 1,
		Void:  true,
		Raw:   true, // the target may be unassigned, never evaluate it
		Fn: func(c *CallArgs) (value.Value, error) {
			expr := strings.TrimSpace(c.Exprs[0])
			if !strings.HasPrefix(expr, "$") {
				return value.NullValue, fault.Errorf(fault.Syntax,
					"argument to delete must be a $name, got '%s'", expr)
			}
			return value.NullValue, c.S.Scopes.Delete(expr[1:])
		},
	}
}

func funcAppend() *Builtin {
	return &Builtin{
		Name:  "append",
		Arity: 2,
		Void:  true,
		Fn: func(c *CallArgs) (value.Value, error) {
			ld, err := listArg(c, 0, "append")
			if err != nil {
				return value.NullValue, err
			}
			before := c.Vals[0].Copy()
			ld.Elems = append(ld.Elems, c.Vals[1])
			if c.Vars[0] != nil {
				return value.NullValue, c.S.noteMutation(c.Vars[0], "append", before, c.Vals[1])
			}
			return value.NullValue, nil
		},
	}
}

func funcRemoveAt() *Builtin {
	return &Builtin{
		Name:  "removeAt",
		Arity: 2,
		Void:  true,
		Fn: func(c *CallArgs) (value.Value, error) {
			ld, err := listArg(c, 0, "removeAt")
			if err != nil {
				return value.NullValue, err
			}
			idx, err := intArg(c, 1, "removeAt")
			if err != nil {
				return value.NullValue, err
			}
			if err := checkIndex(ld, idx, "removeAt"); err != nil {
				return value.NullValue, err
			}
			before := c.Vals[0].Copy()
			removed := removeIdx(ld, idx)
			if c.Vars[0] != nil {
				return value.NullValue, c.S.noteMutation(c.Vars[0], "removeAt", before,
					value.IntValue(idx), removed)
			}
			return value.NullValue, nil
		},
	}
}

func funcInsertAt() *Builtin {
	return &Builtin{
		Name:  "insertAt",
		Arity: 3,
		Void:  true,
		Fn: func(c *CallArgs) (value.Value, error) {
			ld, err := listArg(c, 0, "insertAt")
			if err != nil {
				return value.NullValue, err
			}
			idx, err := intArg(c, 1, "insertAt")
			if err != nil {
				return value.NullValue, err
			}
			if idx < 0 || int(idx) > len(ld.Elems) {
				return value.NullValue, fault.Errorf(fault.Index,
					"index %d out of range for insertAt, list has %d elements", idx, len(ld.Elems))
			}
			before := c.Vals[0].Copy()
			insertIdx(ld, idx, c.Vals[2])
			if c.Vars[0] != nil {
				return value.NullValue, c.S.noteMutation(c.Vars[0], "insertAt", before,
					value.IntValue(idx), c.Vals[2])
			}
			return value.NullValue, nil
		},
	}
}

// funcSwap is the compound built-in: it freezes the context, runs the
// remove+insert primitive steps while their low-level events are superseded,
// then lands one consolidated event through the deferred path.
func funcSwap() *Builtin {
	return &Builtin{
		Name:  "swap",
		Arity: 3,
		Void:  true,
		Fn: func(c *CallArgs) (value.Value, error) {
			ld, err := listArg(c, 0, "swap")
			if err != nil {
				return value.NullValue, err
			}
			i, err := intArg(c, 1, "swap")
			if err != nil {
				return value.NullValue, err
			}
			j, err := intArg(c, 2, "swap")
			if err != nil {
				return value.NullValue, err
			}
			if err := checkIndex(ld, i, "swap"); err != nil {
				return value.NullValue, err
			}
			if err := checkIndex(ld, j, "swap"); err != nil {
				return value.NullValue, err
			}

			before := c.Vals[0].Copy()
			err = c.S.Ctx.WhileFrozen(func() error {
				a := ld.Elems[i]
				b := ld.Elems[j]
				removeIdx(ld, i)
				insertIdx(ld, i, b)
				removeIdx(ld, j)
				insertIdx(ld, j, a)
				return nil
			})
			if err != nil {
				return value.NullValue, err
			}

			if c.Vars[0] != nil {
				if t, traced := c.S.Traces.Of(c.Vars[0]); traced {
					ev := c.S.makeEvent(trace.Alteration{
						Op:     "swap",
						Before: before,
						Args:   []value.Value{value.IntValue(i), value.IntValue(j)},
					})
					return value.NullValue, t.Await(c.Vars[0].Val, ev)
				}
			}
			return value.NullValue, nil
		},
	}
}

func removeIdx(ld *value.ListData, i int32) value.Value {
	removed := ld.Elems[i]
	ld.Elems = append(ld.Elems[:i], ld.Elems[i+1:]...)
	return removed
}

func insertIdx(ld *value.ListData, i int32, v value.Value) {
	ld.Elems = append(ld.Elems, value.NullValue)
	copy(ld.Elems[i+1:], ld.Elems[i:])
	ld.Elems[i] = v
}
