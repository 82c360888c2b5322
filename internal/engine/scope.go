package engine

import (
	"errors"
	"fmt"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/config"
	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/state"
)

// scope resolves expression names. Without a stack it only knows variables.
type scope struct {
	vars  map[string]any
	index int

	stack  *config.Stack
	counts map[addrs.Resource]int
	// object returns the current value of an instance, if any.
	object func(address string) (map[string]any, bool)
}

func varScope(vars map[string]any) *scope {
	return &scope{vars: vars, index: addrs.NoIndex}
}

var errNoResources = errors.New("resources cannot be referenced here")

func (s *scope) Variable(name string) (any, error) {
	v, ok := s.vars[name]
	if !ok {
		return nil, fmt.Errorf("variable %q is not declared", name)
	}
	return v, nil
}

func (s *scope) CountIndex() (int, error) {
	if s.index == addrs.NoIndex {
		return 0, expr.ErrNoCount
	}
	return s.index, nil
}

func (s *scope) Resource(typ, name string) (any, error) {
	if s.stack == nil {
		return nil, errNoResources
	}
	res := addrs.Resource{Type: typ, Name: name}
	if s.stack.Resource(res) == nil {
		return nil, fmt.Errorf("resource %s is not declared", res)
	}

	n, counted := s.counts[res]
	if !counted || n == addrs.NoIndex {
		return s.value(res.Instance(addrs.NoIndex)), nil
	}
	list := make([]any, n)
	for i := range n {
		list[i] = s.value(res.Instance(i))
	}
	return list, nil
}

func (s *scope) value(addr addrs.Instance) any {
	if s.object == nil {
		return expr.UnknownValue
	}
	obj, ok := s.object(addr.String())
	if !ok {
		return expr.UnknownValue
	}
	return obj
}

// forInstance returns a copy of s evaluating inside instance index idx.
func (s *scope) forInstance(idx int) *scope {
	c := *s
	c.index = idx
	return &c
}

// objectOf builds the expression value of a recorded instance.
func objectOf(inst *state.Instance) map[string]any {
	obj := make(map[string]any, len(inst.Attributes)+1)
	for k, v := range inst.Attributes {
		obj[k] = v
	}
	if _, ok := obj["id"]; !ok {
		obj["id"] = inst.ID
	}
	return obj
}
