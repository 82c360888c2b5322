package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/expr"
)

type rawFile struct {
	RequiredVersion string               `yaml:"required_version"`
	Backend         yaml.Node            `yaml:"backend"`
	Variables       map[string]yaml.Node `yaml:"variables"`
	Providers       map[string]yaml.Node `yaml:"providers"`
	Resources       []yaml.Node          `yaml:"resources"`
	Outputs         map[string]yaml.Node `yaml:"outputs"`
}

type rawBackend struct {
	Type   string         `yaml:"type"`
	Config map[string]any `yaml:"config"`
}

type rawVariable struct {
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
	Default     any    `yaml:"default"`
	Sensitive   bool   `yaml:"sensitive"`
	Nullable    *bool  `yaml:"nullable"`
}

type rawResource struct {
	Type       string         `yaml:"type"`
	Name       string         `yaml:"name"`
	Provider   string         `yaml:"provider"`
	Count      any            `yaml:"count"`
	DependsOn  []string       `yaml:"depends_on"`
	Lifecycle  rawLifecycle   `yaml:"lifecycle"`
	Properties map[string]any `yaml:"properties"`
}

type rawLifecycle struct {
	PreventDestroy      bool     `yaml:"prevent_destroy"`
	CreateBeforeDestroy bool     `yaml:"create_before_destroy"`
	IgnoreChanges       []string `yaml:"ignore_changes"`
}

type rawOutput struct {
	Value       any    `yaml:"value"`
	Description string `yaml:"description"`
	Sensitive   bool   `yaml:"sensitive"`
}

// LoadFiles parses and merges the given stack files in order.
func LoadFiles(paths ...string) (*Stack, error) {
	if len(paths) == 0 {
		return nil, errors.New("no stack files given")
	}

	merged := newStack()
	for _, path := range paths {
		// #nosec G304
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read stack file: %w", err)
		}
		s, err := Parse(path, data)
		if err != nil {
			return nil, err
		}
		if err := merged.merge(s); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// Parse decodes a single stack document. name is used in positions.
func Parse(name string, data []byte) (*Stack, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var raw rawFile
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: failed to unmarshal yaml: %w", name, err)
	}

	s := newStack()
	s.Files = []string{name}
	s.RequiredVersion = strings.TrimSpace(raw.RequiredVersion)

	if raw.Backend.Kind != 0 {
		b, err := decodeBackend(name, &raw.Backend)
		if err != nil {
			return nil, err
		}
		s.Backend = b
	}

	var errs []error
	for varName, node := range raw.Variables {
		v, err := decodeVariable(name, varName, &node)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Variables[varName] = v
	}

	for provName, node := range raw.Providers {
		pos := Pos{File: name, Line: node.Line}
		var cfg map[string]any
		if err := node.Decode(&cfg); err != nil {
			errs = append(errs, fmt.Errorf("%s: provider %q: %w", pos, provName, err))
			continue
		}
		s.Providers[provName] = &Provider{Name: provName, Config: normalizeMap(cfg), Pos: pos}
	}

	for i := range raw.Resources {
		r, err := decodeResource(name, &raw.Resources[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Resources = append(s.Resources, r)
	}

	for outName, node := range raw.Outputs {
		o, err := decodeOutput(name, outName, &node)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.Outputs[outName] = o
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func newStack() *Stack {
	return &Stack{
		Variables: make(map[string]*Variable),
		Providers: make(map[string]*Provider),
		Outputs:   make(map[string]*Output),
	}
}

func decodeBackend(file string, node *yaml.Node) (*Backend, error) {
	pos := Pos{File: file, Line: node.Line}
	if err := checkKeys(node, pos, "type", "config"); err != nil {
		return nil, err
	}
	var rb rawBackend
	if err := node.Decode(&rb); err != nil {
		return nil, fmt.Errorf("%s: backend: %w", pos, err)
	}
	return &Backend{Type: rb.Type, Config: normalizeMap(rb.Config), Pos: pos}, nil
}

func decodeVariable(file, name string, node *yaml.Node) (*Variable, error) {
	pos := Pos{File: file, Line: node.Line}
	if err := checkKeys(node, pos, "type", "description", "default", "sensitive", "nullable"); err != nil {
		return nil, fmt.Errorf("variable %q: %w", name, err)
	}
	var rv rawVariable
	if err := node.Decode(&rv); err != nil {
		return nil, fmt.Errorf("%s: variable %q: %w", pos, name, err)
	}
	v := &Variable{
		Name:        name,
		Type:        rv.Type,
		Description: rv.Description,
		Sensitive:   rv.Sensitive,
		Nullable:    rv.Nullable == nil || *rv.Nullable,
		Pos:         pos,
	}
	if v.Type == "" {
		v.Type = TypeAny
	}
	if hasKey(node, "default") {
		v.HasDefault = true
		v.Default = expr.Normalize(rv.Default)
	}
	return v, nil
}

func decodeResource(file string, node *yaml.Node) (*Resource, error) {
	pos := Pos{File: file, Line: node.Line}
	if err := checkKeys(node, pos, "type", "name", "provider", "count", "depends_on", "lifecycle", "properties"); err != nil {
		return nil, err
	}
	var rr rawResource
	if err := node.Decode(&rr); err != nil {
		return nil, fmt.Errorf("%s: resource: %w", pos, err)
	}
	if !addrs.ValidType(rr.Type) {
		return nil, fmt.Errorf("%s: invalid resource type %q", pos, rr.Type)
	}
	if !addrs.ValidName(rr.Name) {
		return nil, fmt.Errorf("%s: invalid resource name %q", pos, rr.Name)
	}

	r := &Resource{
		Type:     rr.Type,
		Name:     rr.Name,
		Provider: rr.Provider,
		Count:    expr.Normalize(rr.Count),
		Lifecycle: Lifecycle{
			PreventDestroy:      rr.Lifecycle.PreventDestroy,
			CreateBeforeDestroy: rr.Lifecycle.CreateBeforeDestroy,
			IgnoreChanges:       rr.Lifecycle.IgnoreChanges,
		},
		Properties: normalizeMap(rr.Properties),
		Pos:        pos,
	}
	for _, dep := range rr.DependsOn {
		a, err := addrs.ParseResource(dep)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: depends_on: %w", pos, r.Addr(), err)
		}
		r.DependsOn = append(r.DependsOn, a)
	}
	return r, nil
}

func decodeOutput(file, name string, node *yaml.Node) (*Output, error) {
	pos := Pos{File: file, Line: node.Line}
	if err := checkKeys(node, pos, "value", "description", "sensitive"); err != nil {
		return nil, fmt.Errorf("output %q: %w", name, err)
	}
	var ro rawOutput
	if err := node.Decode(&ro); err != nil {
		return nil, fmt.Errorf("%s: output %q: %w", pos, name, err)
	}
	if !hasKey(node, "value") {
		return nil, fmt.Errorf("%s: output %q: value is required", pos, name)
	}
	return &Output{
		Name:        name,
		Value:       expr.Normalize(ro.Value),
		Description: ro.Description,
		Sensitive:   ro.Sensitive,
		Pos:         pos,
	}, nil
}

// checkKeys rejects mapping keys outside allowed.
func checkKeys(node *yaml.Node, pos Pos, allowed ...string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%s: expected a mapping", pos)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		found := false
		for _, a := range allowed {
			if key.Value == a {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%s: unknown field %q", Pos{File: pos.File, Line: key.Line}, key.Value)
		}
	}
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out, _ := expr.Normalize(m).(map[string]any)
	return out
}

// merge folds other into s, rejecting duplicate declarations.
func (s *Stack) merge(other *Stack) error {
	var errs []error

	if other.RequiredVersion != "" {
		if s.RequiredVersion == "" {
			s.RequiredVersion = other.RequiredVersion
		} else {
			s.RequiredVersion += " " + other.RequiredVersion
		}
	}

	if other.Backend != nil {
		if s.Backend != nil {
			errs = append(errs, fmt.Errorf("duplicate backend block at %s (first declared at %s)", other.Backend.Pos, s.Backend.Pos))
		} else {
			s.Backend = other.Backend
		}
	}

	for name, v := range other.Variables {
		if prev, ok := s.Variables[name]; ok {
			errs = append(errs, fmt.Errorf("duplicate variable %q at %s (first declared at %s)", name, v.Pos, prev.Pos))
			continue
		}
		s.Variables[name] = v
	}
	for name, p := range other.Providers {
		if prev, ok := s.Providers[name]; ok {
			errs = append(errs, fmt.Errorf("duplicate provider %q at %s (first declared at %s)", name, p.Pos, prev.Pos))
			continue
		}
		s.Providers[name] = p
	}
	for _, r := range other.Resources {
		if prev := s.Resource(r.Addr()); prev != nil {
			errs = append(errs, fmt.Errorf("duplicate resource %s at %s (first declared at %s)", r.Addr(), r.Pos, prev.Pos))
			continue
		}
		s.Resources = append(s.Resources, r)
	}
	for name, o := range other.Outputs {
		if prev, ok := s.Outputs[name]; ok {
			errs = append(errs, fmt.Errorf("duplicate output %q at %s (first declared at %s)", name, o.Pos, prev.Pos))
			continue
		}
		s.Outputs[name] = o
	}

	s.Files = append(s.Files, other.Files...)
	return errors.Join(errs...)
}
