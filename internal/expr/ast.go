package expr

import (
	"fmt"
	"strings"
)

// Expr is a parsed expression.
type Expr interface {
	String() string
}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	if l.Value == nil {
		return "null"
	}
	if f, ok := l.Value.(float64); ok {
		return FormatNumber(f)
	}
	return fmt.Sprint(l.Value)
}

// StepKind identifies a traversal step.
type StepKind int

const (
	// StepAttr selects a named attribute.
	StepAttr StepKind = iota
	// StepIndex selects a list element.
	StepIndex
	// StepSplat maps the remaining steps over every list element.
	StepSplat
)

// Step is a single attribute access, index or splat.
type Step struct {
	Kind  StepKind
	Name  string
	Index int
}

// Traversal is a root identifier followed by steps, e.g. aws_vpc.main.id.
type Traversal struct {
	Root  string
	Steps []Step
}

func (t *Traversal) String() string {
	var sb strings.Builder
	sb.WriteString(t.Root)
	for _, s := range t.Steps {
		switch s.Kind {
		case StepAttr:
			sb.WriteString("." + s.Name)
		case StepIndex:
			fmt.Fprintf(&sb, "[%d]", s.Index)
		case StepSplat:
			sb.WriteString("[*]")
		}
	}
	return sb.String()
}

// Call is a function invocation.
type Call struct {
	Name string
	Args []Expr
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(args, ", "))
}
