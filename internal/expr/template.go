package expr

import (
	"fmt"
	"strings"
)

type part struct {
	lit  string
	expr Expr
}

// Template is a parsed string that may contain ${...} interpolations.
type Template struct {
	src   string
	parts []part
}

// ParseTemplate parses s into literal and expression parts.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{src: s}
	var lit strings.Builder
	i := 0
	for i < len(s) {
		if strings.HasPrefix(s[i:], "$${") {
			lit.WriteString("${")
			i += 3
			continue
		}
		if !strings.HasPrefix(s[i:], "${") {
			lit.WriteByte(s[i])
			i++
			continue
		}

		p, err := newParser(s, i+2)
		if err != nil {
			return nil, fmt.Errorf("in %q: %w", s, err)
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, fmt.Errorf("in %q: %w", s, err)
		}
		if p.tok.kind != tokRBrace {
			return nil, fmt.Errorf("in %q: expected '}' at offset %d", s, p.tok.pos)
		}
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{lit: lit.String()})
			lit.Reset()
		}
		t.parts = append(t.parts, part{expr: e})
		i = p.tok.pos + 1
	}
	if lit.Len() > 0 || len(t.parts) == 0 {
		t.parts = append(t.parts, part{lit: lit.String()})
	}
	return t, nil
}

// IsLiteral reports whether the template contains no expressions.
func (t *Template) IsLiteral() bool {
	return len(t.parts) == 1 && t.parts[0].expr == nil
}

// Exprs returns every expression in the template.
func (t *Template) Exprs() []Expr {
	var out []Expr
	for _, p := range t.parts {
		if p.expr != nil {
			out = append(out, p.expr)
		}
	}
	return out
}

// Eval evaluates the template. A template made of a single expression
// returns that expression's value unchanged.
func (t *Template) Eval(s Scope) (any, error) {
	if len(t.parts) == 1 {
		if t.parts[0].expr == nil {
			return t.parts[0].lit, nil
		}
		return Eval(t.parts[0].expr, s)
	}

	var sb strings.Builder
	unknown := false
	for _, p := range t.parts {
		if p.expr == nil {
			sb.WriteString(p.lit)
			continue
		}
		v, err := Eval(p.expr, s)
		if err != nil {
			return nil, err
		}
		if ContainsUnknown(v) {
			unknown = true
			continue
		}
		str, err := Stringify(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.expr, err)
		}
		sb.WriteString(str)
	}
	if unknown {
		return UnknownValue, nil
	}
	return sb.String(), nil
}

// EvalValue evaluates every string inside a nested value.
func EvalValue(v any, s Scope) (any, error) {
	switch t := v.(type) {
	case string:
		tmpl, err := ParseTemplate(t)
		if err != nil {
			return nil, err
		}
		return tmpl.Eval(s)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			ev, err := EvalValue(e, s)
			if err != nil {
				return nil, err
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for _, k := range SortedKeys(t) {
			ev, err := EvalValue(t[k], s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	default:
		return v, nil
	}
}

// ValueExprs parses every string inside a nested value and returns the
// expressions found.
func ValueExprs(v any) ([]Expr, error) {
	var out []Expr
	var walk func(any) error
	walk = func(v any) error {
		switch t := v.(type) {
		case string:
			tmpl, err := ParseTemplate(t)
			if err != nil {
				return err
			}
			out = append(out, tmpl.Exprs()...)
		case []any:
			for _, e := range t {
				if err := walk(e); err != nil {
					return err
				}
			}
		case map[string]any:
			for _, k := range SortedKeys(t) {
				if err := walk(t[k]); err != nil {
					return err
				}
			}
		}
		return nil
	}
	err := walk(v)
	return out, err
}
