// Package state models the recorded state of managed resources and
// persists it through a pluggable Backend.
package state

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/imamik/converge/internal/addrs"
)

// FormatVersion is the current state document version.
const FormatVersion = 1

// State is the recorded view of every managed resource instance.
type State struct {
	Version         int                     `json:"version"`
	Serial          uint64                  `json:"serial"`
	Lineage         string                  `json:"lineage"`
	ConvergeVersion string                  `json:"converge_version,omitempty"`
	Resources       []*Instance             `json:"resources"`
	Outputs         map[string]*OutputValue `json:"outputs,omitempty"`
}

// Instance is one resource instance as last seen.
type Instance struct {
	Address             string         `json:"address"`
	Type                string         `json:"type"`
	Name                string         `json:"name"`
	Index               *int           `json:"index,omitempty"`
	Provider            string         `json:"provider"`
	ID                  string         `json:"id"`
	Attributes          map[string]any `json:"attributes"`
	SensitiveAttributes []string       `json:"sensitive_attributes,omitempty"`
	// Dependencies are the resource addresses (TYPE.NAME) this instance
	// depended on when it was last applied.
	Dependencies []string `json:"dependencies,omitempty"`
	Tainted      bool     `json:"tainted,omitempty"`
}

// OutputValue is a stored output.
type OutputValue struct {
	Value     any  `json:"value"`
	Sensitive bool `json:"sensitive,omitempty"`
}

// New returns an empty state with a fresh lineage.
func New() *State {
	return &State{
		Version: FormatVersion,
		Lineage: uuid.NewString(),
		Outputs: map[string]*OutputValue{},
	}
}

// NewInstance builds an instance record for addr.
func NewInstance(addr addrs.Instance, providerName string) *Instance {
	inst := &Instance{
		Address:  addr.String(),
		Type:     addr.Type,
		Name:     addr.Name,
		Provider: providerName,
	}
	if addr.Index != addrs.NoIndex {
		idx := addr.Index
		inst.Index = &idx
	}
	return inst
}

// Addr returns the parsed address of the instance.
func (i *Instance) Addr() addrs.Instance {
	idx := addrs.NoIndex
	if i.Index != nil {
		idx = *i.Index
	}
	return addrs.Instance{Resource: addrs.Resource{Type: i.Type, Name: i.Name}, Index: idx}
}

// Empty reports whether the state records nothing.
func (s *State) Empty() bool {
	return len(s.Resources) == 0 && len(s.Outputs) == 0
}

// Get returns the instance at address or nil.
func (s *State) Get(address string) *Instance {
	for _, r := range s.Resources {
		if r.Address == address {
			return r
		}
	}
	return nil
}

// Set inserts or replaces the instance with the same address, keeping the
// list sorted by address.
func (s *State) Set(inst *Instance) {
	for i, r := range s.Resources {
		if r.Address == inst.Address {
			s.Resources[i] = inst
			return
		}
	}
	s.Resources = append(s.Resources, inst)
	sort.Slice(s.Resources, func(i, j int) bool {
		return s.Resources[i].Addr().Less(s.Resources[j].Addr())
	})
}

// Remove deletes the instance at address and reports whether it existed.
func (s *State) Remove(address string) bool {
	for i, r := range s.Resources {
		if r.Address == address {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return true
		}
	}
	return false
}

// Instances returns every instance of the resource, ordered by index.
func (s *State) Instances(res addrs.Resource) []*Instance {
	var out []*Instance
	for _, r := range s.Resources {
		if r.Type == res.Type && r.Name == res.Name {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr().Index < out[j].Addr().Index })
	return out
}

// Addresses returns every instance address in order.
func (s *State) Addresses() []string {
	out := make([]string, len(s.Resources))
	for i, r := range s.Resources {
		out[i] = r.Address
	}
	return out
}

// DeepCopy returns an independent copy.
func (s *State) DeepCopy() *State {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("state is not serializable: %v", err))
	}
	out, err := Decode(data)
	if err != nil {
		panic(fmt.Sprintf("state round trip failed: %v", err))
	}
	return out
}

// Encode renders the state as indented JSON.
func Encode(s *State) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a state document.
func Decode(data []byte) (*State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	if s.Version > FormatVersion {
		return nil, fmt.Errorf("state format version %d is newer than supported version %d", s.Version, FormatVersion)
	}
	if s.Version == 0 {
		s.Version = FormatVersion
	}
	if s.Outputs == nil {
		s.Outputs = map[string]*OutputValue{}
	}
	for _, r := range s.Resources {
		if r.Attributes == nil {
			r.Attributes = map[string]any{}
		}
	}
	return &s, nil
}
