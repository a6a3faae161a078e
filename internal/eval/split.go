package eval

import (
	"strings"

	"aquila/internal/fault"
)

// operator characters, used to tell a unary minus from a binary one
const operatorChars = "|&~<>=:+-*/%(,"

// checkBalanced verifies () and [] nest properly across the expression.
func checkBalanced(expr string) error {
	var stack []byte
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(', '[':
			stack = append(stack, expr[i])
		case ')':
			if len(stack) == 0 || stack[len(stack)-1] != '(' {
				return fault.Errorf(fault.Syntax, "unbalanced ')' in '%s'", expr)
			}
			stack = stack[:len(stack)-1]
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != '[' {
				return fault.Errorf(fault.Syntax, "unbalanced ']' in '%s'", expr)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fault.Errorf(fault.Syntax, "unclosed '%c' in '%s'", stack[len(stack)-1], expr)
	}
	return nil
}

// wrapsWhole reports whether the delimiter pair at the ends of expr encloses
// the full expression. A running nesting depth decides it; a naive
// prefix/suffix check would wrongly strip "(a) + (b)".
func wrapsWhole(expr string, open, close byte) bool {
	if len(expr) < 2 || expr[0] != open || expr[len(expr)-1] != close {
		return false
	}
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 && i != len(expr)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// stripOuter removes redundant wrapping parentheses until none remain.
func stripOuter(expr string) string {
	for wrapsWhole(expr, '(', ')') {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}

// SplitTopLevel cuts expr at every top-level occurrence of sep, respecting
// nested () and [].
func SplitTopLevel(expr string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		default:
			if depth == 0 && expr[i] == sep {
				parts = append(parts, strings.TrimSpace(expr[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(expr[start:]))
	return parts
}

// splitOnOperator cuts expr at every top-level occurrence of op. It returns
// nil when op never occurs at the top level. Occurrences that would start a
// fragment or that follow another operator symbol are sign positions, not
// binary operators, and are skipped.
func splitOnOperator(expr string, op string) []string {
	var cuts []int
	depth := 0
	for i := 0; i+len(op) <= len(expr); i++ {
		switch expr[i] {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			depth--
			continue
		}
		if depth != 0 || expr[i:i+len(op)] != op {
			continue
		}
		if !operatorAt(expr, i, op) {
			continue
		}
		cuts = append(cuts, i)
	}
	if len(cuts) == 0 {
		return nil
	}

	var parts []string
	start := 0
	for _, c := range cuts {
		parts = append(parts, strings.TrimSpace(expr[start:c]))
		start = c + len(op)
	}
	parts = append(parts, strings.TrimSpace(expr[start:]))
	return parts
}

// operatorAt decides whether the op occurrence at position i is a genuine
// binary operator.
func operatorAt(expr string, i int, op string) bool {
	// '<' and '>' followed by '=' belong to the two-character comparison
	if (op == "<" || op == ">") && i+1 < len(expr) && expr[i+1] == '=' {
		return false
	}
	// '=' preceded by '<' or '>' belongs to the two-character comparison
	if op == "=" && i > 0 && (expr[i-1] == '<' || expr[i-1] == '>') {
		return false
	}
	if op == "+" || op == "-" {
		prev := previousMeaningful(expr, i)
		if prev == 0 || strings.IndexByte(operatorChars, prev) >= 0 {
			return false // sign of a literal, not a binary operator
		}
	}
	return true
}

func previousMeaningful(expr string, i int) byte {
	for j := i - 1; j >= 0; j-- {
		if expr[j] != ' ' && expr[j] != '\t' {
			return expr[j]
		}
	}
	return 0
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
