package expr

import (
	"fmt"
	"sort"
	"strings"
)

type function struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	fn               func(args []any) (any, error)
}

var functions = map[string]function{
	"cidrsubnet": {3, 3, fnCIDRSubnet},
	"cidrhost":   {2, 2, fnCIDRHost},
	"join":       {2, 2, fnJoin},
	"length":     {1, 1, fnLength},
	"element":    {2, 2, fnElement},
	"format":     {1, -1, fnFormat},
	"lower":      {1, 1, stringFn(strings.ToLower)},
	"upper":      {1, 1, stringFn(strings.ToUpper)},
	"concat":     {0, -1, fnConcat},
	"lookup":     {2, 3, fnLookup},
	"tostring":   {1, 1, fnToString},
}

// Functions returns the names of all built-in functions.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func call(name string, args []any) (any, error) {
	f, ok := functions[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}
	if len(args) < f.minArgs || (f.maxArgs >= 0 && len(args) > f.maxArgs) {
		return nil, fmt.Errorf("%s: wrong number of arguments (%d)", name, len(args))
	}
	for _, a := range args {
		if ContainsUnknown(a) {
			return UnknownValue, nil
		}
	}
	v, err := f.fn(args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %s", TypeName(v))
	}
	return s, nil
}

func asList(v any) ([]any, error) {
	l, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected list, got %s", TypeName(v))
	}
	return l, nil
}

func stringFn(f func(string) string) func([]any) (any, error) {
	return func(args []any) (any, error) {
		s, err := asString(args[0])
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func fnCIDRSubnet(args []any) (any, error) {
	prefix, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	newbits, err := AsInt(args[1])
	if err != nil {
		return nil, err
	}
	netnum, err := AsInt(args[2])
	if err != nil {
		return nil, err
	}
	return CIDRSubnet(prefix, newbits, netnum)
}

func fnCIDRHost(args []any) (any, error) {
	prefix, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	hostnum, err := AsInt(args[1])
	if err != nil {
		return nil, err
	}
	return CIDRHost(prefix, hostnum)
}

func fnJoin(args []any) (any, error) {
	sep, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	l, err := asList(args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, len(l))
	for i, e := range l {
		s, err := Stringify(e)
		if err != nil {
			return nil, err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func fnLength(args []any) (any, error) {
	switch t := args[0].(type) {
	case string:
		return float64(len([]rune(t))), nil
	case []any:
		return float64(len(t)), nil
	case map[string]any:
		return float64(len(t)), nil
	default:
		return nil, fmt.Errorf("cannot take length of %s", TypeName(t))
	}
}

// element wraps around like its Terraform counterpart.
func fnElement(args []any) (any, error) {
	l, err := asList(args[0])
	if err != nil {
		return nil, err
	}
	if len(l) == 0 {
		return nil, fmt.Errorf("cannot use element on an empty list")
	}
	idx, err := AsInt(args[1])
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("negative index %d", idx)
	}
	return l[idx%len(l)], nil
}

func fnFormat(args []any) (any, error) {
	f, err := asString(args[0])
	if err != nil {
		return nil, err
	}
	rest := make([]any, len(args)-1)
	for i, a := range args[1:] {
		// %d expects an integer type
		if n, ok := a.(float64); ok && n == float64(int64(n)) {
			rest[i] = int64(n)
			continue
		}
		rest[i] = a
	}
	return fmt.Sprintf(f, rest...), nil
}

func fnConcat(args []any) (any, error) {
	out := []any{}
	for _, a := range args {
		l, err := asList(a)
		if err != nil {
			return nil, err
		}
		out = append(out, l...)
	}
	return out, nil
}

func fnLookup(args []any) (any, error) {
	m, ok := args[0].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", TypeName(args[0]))
	}
	key, err := asString(args[1])
	if err != nil {
		return nil, err
	}
	if v, ok := m[key]; ok {
		return v, nil
	}
	if len(args) == 3 {
		return args[2], nil
	}
	return nil, fmt.Errorf("key %q not found", key)
}

func fnToString(args []any) (any, error) {
	return Stringify(args[0])
}
