package config

import (
	"fmt"
	"sort"

	"github.com/imamik/converge/internal/addrs"
)

// Variable type names accepted in a variable declaration.
const (
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeList   = "list"
	TypeMap    = "map"
	TypeAny    = "any"
)

// DefaultBackend is used when no backend block is declared.
const DefaultBackend = "local"

// Pos is a location in a stack file.
type Pos struct {
	File string
	Line int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("line %d", p.Line)
	}
	return fmt.Sprintf("%s:%d", p.File, p.Line)
}

// Stack is the merged content of one or more stack files.
type Stack struct {
	RequiredVersion string
	Backend         *Backend
	Variables       map[string]*Variable
	Providers       map[string]*Provider
	Resources       []*Resource
	Outputs         map[string]*Output

	// Files lists the parsed files in load order.
	Files []string
}

// Backend selects where state is persisted.
type Backend struct {
	Type   string
	Config map[string]any
	Pos    Pos
}

// Variable is an input variable declaration.
type Variable struct {
	Name        string
	Type        string
	Description string
	Default     any
	HasDefault  bool
	Sensitive   bool
	Nullable    bool
	Pos         Pos
}

// Provider is a provider configuration block. Config may contain expressions
// referencing variables.
type Provider struct {
	Name   string
	Config map[string]any
	Pos    Pos
}

// Lifecycle customizes how changes to a resource are applied.
type Lifecycle struct {
	PreventDestroy      bool
	CreateBeforeDestroy bool
	IgnoreChanges       []string
}

// Resource is a declared resource block.
type Resource struct {
	Type     string
	Name     string
	Provider string
	// Count is nil when the resource is not counted, otherwise a number or an
	// expression string.
	Count      any
	DependsOn  []addrs.Resource
	Lifecycle  Lifecycle
	Properties map[string]any
	Pos        Pos
}

// Addr returns the resource address.
func (r *Resource) Addr() addrs.Resource {
	return addrs.Resource{Type: r.Type, Name: r.Name}
}

// ProviderName returns the configured provider or the type prefix.
func (r *Resource) ProviderName() string {
	if r.Provider != "" {
		return r.Provider
	}
	return addrs.ProviderOf(r.Type)
}

// Output is a declared stack output.
type Output struct {
	Name        string
	Value       any
	Description string
	Sensitive   bool
	Pos         Pos
}

// Resource returns the declared resource with the given address.
func (s *Stack) Resource(addr addrs.Resource) *Resource {
	for _, r := range s.Resources {
		if r.Addr() == addr {
			return r
		}
	}
	return nil
}

// BackendType returns the declared backend type or DefaultBackend.
func (s *Stack) BackendType() string {
	if s.Backend == nil || s.Backend.Type == "" {
		return DefaultBackend
	}
	return s.Backend.Type
}

// ProviderNames returns the names of every provider used by a resource or
// configured explicitly, sorted.
func (s *Stack) ProviderNames() []string {
	seen := make(map[string]struct{}, len(s.Providers))
	for name := range s.Providers {
		seen[name] = struct{}{}
	}
	for _, r := range s.Resources {
		seen[r.ProviderName()] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutputNames returns the output names in sorted order.
func (s *Stack) OutputNames() []string {
	names := make([]string, 0, len(s.Outputs))
	for name := range s.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
