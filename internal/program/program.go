package program

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"aquila/internal/fault"
)

// Node is one statement descriptor handed over by the text-processing stage:
// either a leaf instruction string, or a block header with its nested
// statements. Else bodies only ever appear on if headers.
type Node struct {
	Line string  `yaml:"line"`
	Body []*Node `yaml:"body,omitempty"`
	Else []*Node `yaml:"else,omitempty"`
}

// IsBlock reports whether the node carries a nested body.
func (n *Node) IsBlock() bool { return len(n.Body) > 0 || len(n.Else) > 0 }

// Parse decodes a YAML statement tree. The document is a sequence of nodes.
func Parse(r io.Reader) ([]*Node, error) {
	var nodes []*Node
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&nodes); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fault.Errorf(fault.Syntax, "malformed program tree: %v", err)
	}
	return nodes, nil
}

// Load reads and decodes a program file.
func Load(path string) ([]*Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open program: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Validate rejects program shapes the engine refuses to run: break or
// continue outside a loop, else bodies on non-if headers, block bodies on
// headers that take none, and function definitions below the top level.
func Validate(nodes []*Node) error {
	return validateNodes(nodes, false, true)
}

func validateNodes(nodes []*Node, inLoop, topLevel bool) error {
	for _, n := range nodes {
		if err := validateNode(n, inLoop, topLevel); err != nil {
			return err
		}
	}
	return nil
}

func validateNode(n *Node, inLoop, topLevel bool) error {
	line := strings.TrimSpace(n.Line)
	switch headerKeyword(line) {
	case "while", "for":
		if len(n.Else) > 0 {
			return fault.Errorf(fault.Invariant, "loop '%s' cannot carry an else body", line)
		}
		return validateNodes(n.Body, true, false)

	case "if":
		if err := validateNodes(n.Body, inLoop, false); err != nil {
			return err
		}
		return validateNodes(n.Else, inLoop, false)

	case "function", "recursive":
		if !topLevel {
			return fault.Errorf(fault.Invariant, "function '%s' must be defined at the top level", line)
		}
		if len(n.Else) > 0 {
			return fault.Errorf(fault.Invariant, "function '%s' cannot carry an else body", line)
		}
		// a function body starts a fresh loop context
		return validateNodes(n.Body, false, false)

	default:
		if n.IsBlock() {
			return fault.Errorf(fault.Invariant, "statement '%s' cannot carry a nested body", line)
		}
		if !inLoop && (strings.HasPrefix(line, "break(") || strings.HasPrefix(line, "continue(")) {
			return fault.Errorf(fault.Invariant, "'%s' outside of any loop", line)
		}
	}
	return nil
}

// headerKeyword extracts the leading identifier and reports it only when it
// is a block-header keyword, so a call like format(...) is never mistaken
// for a for header.
func headerKeyword(line string) string {
	i := 0
	for i < len(line) {
		c := line[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' {
			i++
			continue
		}
		break
	}
	switch line[:i] {
	case "while", "for", "if", "function", "recursive":
		return line[:i]
	}
	return ""
}
