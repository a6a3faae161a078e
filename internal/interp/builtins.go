package interp

import (
	"math"

	"aquila/internal/fault"
	"aquila/internal/value"
)

// builtinCatalog lists every native callable. Arity and evaluation order are
// part of the contract; Raw built-ins defer argument handling to their body.
func builtinCatalog() []*Builtin {
	return []*Builtin{
		// value-returning
		funcLength(),
		funcGet(),
		funcCopy(),
		funcInt(),
		funcFloat(),
		funcSqrt(),
		funcRandom(),
		// void
		funcPrint(),
		funcPrintLn(),
		funcDelete(),
		funcAppend(),
		funcRemoveAt(),
		funcInsertAt(),
		funcSwap(),
	}
}

func listArg(c *CallArgs, i int, name string) (*value.ListData, error) {
	if c.Vals[i].Kind != value.List {
		return nil, fault.Errorf(fault.Type,
			"argument %d of %s must be LIST, got %s", i+1, name, c.Vals[i].Kind)
	}
	return c.Vals[i].List, nil
}

func intArg(c *CallArgs, i int, name string) (int32, error) {
	if c.Vals[i].Kind != value.Int {
		return 0, fault.Errorf(fault.Type,
			"argument %d of %s must be INTEGER, got %s", i+1, name, c.Vals[i].Kind)
	}
	return c.Vals[i].Int, nil
}

func checkIndex(ld *value.ListData, i int32, name string) error {
	if i < 0 || int(i) >= len(ld.Elems) {
		return fault.Errorf(fault.Index,
			"index %d out of range for %s, list has %d elements", i, name, len(ld.Elems))
	}
	return nil
}

func funcLength() *Builtin {
	return &Builtin{
		Name:  "length",
		Arity: 1,
		Fn: func(c *CallArgs) (value.Value, error) {
			ld, err := listArg(c, 0, "length")
			if err != nil {
				return value.NullValue, err
			}
			return value.IntValue(int32(len(ld.Elems))), nil
		},
	}
}

func funcGet() *Builtin {
	return &Builtin{
		Name:  "get",
		Arity: 2,
		Fn: func(c *CallArgs) (value.Value, error) {
			ld, err := listArg(c, 0, "get")
			if err != nil {
				return value.NullValue, err
			}
			idx, err := intArg(c, 1, "get")
			if err != nil {
				return value.NullValue, err
			}
			if err := checkIndex(ld, idx, "get"); err != nil {
				return value.NullValue, err
			}
			return ld.Elems[idx], nil
		},
	}
}

func funcCopy() *Builtin {
	return &Builtin{
		Name:  "copy",
		Arity: 1,
		Fn: func(c *CallArgs) (value.Value, error) {
			if _, err := listArg(c, 0, "copy"); err != nil {
				return value.NullValue, err
			}
			return c.Vals[0].Copy(), nil
		},
	}
}

func funcInt() *Builtin {
	return &Builtin{
		Name:  "int",
		Arity: 1,
		Fn: func(c *CallArgs) (value.Value, error) {
			v := c.Vals[0]
			switch v.Kind {
			case value.Int:
				return v, nil
			case value.Float:
				return value.IntValue(int32(v.Float)), nil
			case value.Bool:
				if v.Bool {
					return value.IntValue(1), nil
				}
				return value.IntValue(0), nil
			case value.Null, value.List, value.PendingCall:
			}
			return value.NullValue, fault.Errorf(fault.Type, "cannot convert %s to INTEGER", v.Kind)
		},
	}
}

func funcFloat() *Builtin {
	return &Builtin{
		Name:  "float",
		Arity: 1,
		Fn: func(c *CallArgs) (value.Value, error) {
			v := c.Vals[0]
			switch v.Kind {
			case value.Float:
				return v, nil
			case value.Int:
				return value.FloatValue(float32(v.Int)), nil
			case value.Null, value.Bool, value.List, value.PendingCall:
			}
			return value.NullValue, fault.Errorf(fault.Type, "cannot convert %s to FLOAT", v.Kind)
		},
	}
}

func funcSqrt() *Builtin {
	return &Builtin{
		Name:  "sqrt",
		Arity: 1,
		Fn: func(c *CallArgs) (value.Value, error) {
			var f float64
			switch c.Vals[0].Kind {
			case value.Int:
				f = float64(c.Vals[0].Int)
			case value.Float:
				f = float64(c.Vals[0].Float)
			case value.Null, value.Bool, value.List, value.PendingCall:
				return value.NullValue, fault.Errorf(fault.Type,
					"argument to sqrt must be numeric, got %s", c.Vals[0].Kind)
			}
			if f < 0 {
				return value.NullValue, fault.Errorf(fault.Arithmetic, "square root of negative %g", f)
			}
			return value.FloatValue(float32(math.Sqrt(f))), nil
		},
	}
}

func funcRandom() *Builtin {
	return &Builtin{
		Name:  "random",
		Arity: 1,
		Fn: func(c *CallArgs) (value.Value, error) {
			n, err := intArg(c, 0, "random")
			if err != nil {
				return value.NullValue, err
			}
			if n <= 0 {
				return value.NullValue, fault.Errorf(fault.Arithmetic,
					"random bound must be positive, got %d", n)
			}
			return value.IntValue(c.S.rng.Int32N(n)), nil
		},
	}
}
