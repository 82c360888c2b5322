// Package plan holds the set of changes computed for a stack and the rules
// that decide each instance's action.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/imamik/converge/internal/addrs"
	"github.com/imamik/converge/internal/state"
)

// FormatVersion is the plan file format written by this build.
const FormatVersion = 1

// ErrStale is returned when a saved plan no longer matches the stored state.
var ErrStale = errors.New("saved plan is stale")

// Action is what apply does to one instance.
type Action string

// Planned actions.
const (
	NoOp    Action = "no-op"
	Create  Action = "create"
	Update  Action = "update"
	Replace Action = "replace"
	Delete  Action = "delete"
)

// Symbol returns the marker used when rendering the action.
func (a Action) Symbol() string {
	switch a {
	case Create:
		return "+"
	case Update:
		return "~"
	case Replace:
		return "-/+"
	case Delete:
		return "-"
	}
	return " "
}

// Change is the planned action for one resource instance.
type Change struct {
	Address  string `json:"address"`
	Type     string `json:"type"`
	Name     string `json:"name"`
	Index    *int   `json:"index,omitempty"`
	Provider string `json:"provider"`
	Action   Action `json:"action"`

	// Before holds the prior attributes, After the desired properties with
	// defaults applied. Attributes listed in Unknown are not known until
	// apply and are absent from After.
	Before  map[string]any `json:"before,omitempty"`
	After   map[string]any `json:"after,omitempty"`
	Unknown []string       `json:"unknown,omitempty"`

	// Changed lists the attributes that differ between Before and After.
	Changed []string `json:"changed,omitempty"`
	// ReplaceReasons lists the force_new attributes that changed, or
	// "tainted".
	ReplaceReasons []string `json:"replace_reasons,omitempty"`
	Sensitive      []string `json:"sensitive,omitempty"`

	// Dependencies are the instance addresses this instance depends on.
	Dependencies        []string `json:"dependencies,omitempty"`
	CreateBeforeDestroy bool     `json:"create_before_destroy,omitempty"`
}

// Addr parses the change address.
func (c *Change) Addr() addrs.Instance {
	idx := addrs.NoIndex
	if c.Index != nil {
		idx = *c.Index
	}
	return addrs.Instance{Resource: addrs.Resource{Type: c.Type, Name: c.Name}, Index: idx}
}

// IsUnknown reports whether attribute name is only known after apply.
func (c *Change) IsUnknown(name string) bool {
	for _, u := range c.Unknown {
		if u == name {
			return true
		}
	}
	return false
}

// IsSensitive reports whether attribute name must be masked when rendered.
func (c *Change) IsSensitive(name string) bool {
	for _, s := range c.Sensitive {
		if s == name {
			return true
		}
	}
	return false
}

// Plan is the full set of changes for one run.
type Plan struct {
	FormatVersion   int    `json:"format_version"`
	ConvergeVersion string `json:"converge_version,omitempty"`
	Destroy         bool   `json:"destroy,omitempty"`

	// Lineage and Serial identify the state the plan was computed against.
	Lineage string `json:"lineage,omitempty"`
	Serial  uint64 `json:"serial"`

	Targets    []string       `json:"targets,omitempty"`
	StackFiles []string       `json:"stack_files,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
	Changes    []*Change      `json:"changes"`
	CreatedAt  time.Time      `json:"created_at"`

	// Prior is the refreshed state the changes were computed from. Apply
	// starts from it so refreshed attributes are persisted.
	Prior *state.State `json:"prior_state,omitempty"`
}

// New returns an empty plan against the given state identity.
func New(lineage string, serial uint64) *Plan {
	return &Plan{
		FormatVersion: FormatVersion,
		Lineage:       lineage,
		Serial:        serial,
		CreatedAt:     time.Now().UTC(),
	}
}

// Add appends a change, keeping changes ordered by address.
func (p *Plan) Add(c *Change) {
	p.Changes = append(p.Changes, c)
	sort.SliceStable(p.Changes, func(i, j int) bool {
		return p.Changes[i].Addr().Less(p.Changes[j].Addr())
	})
}

// Change returns the change for address, or nil.
func (p *Plan) Change(address string) *Change {
	for _, c := range p.Changes {
		if c.Address == address {
			return c
		}
	}
	return nil
}

// Counts tallies a plan the way the summary line reports it.
type Counts struct {
	Add, Change, Destroy int
}

// Summary counts the planned actions. A replace counts as one add and one
// destroy.
func (p *Plan) Summary() Counts {
	var c Counts
	for _, ch := range p.Changes {
		switch ch.Action {
		case Create:
			c.Add++
		case Update:
			c.Change++
		case Replace:
			c.Add++
			c.Destroy++
		case Delete:
			c.Destroy++
		}
	}
	return c
}

// SummaryLine renders the one-line summary.
func (p *Plan) SummaryLine() string {
	c := p.Summary()
	return fmt.Sprintf("Plan: %d to add, %d to change, %d to destroy.", c.Add, c.Change, c.Destroy)
}

// HasChanges reports whether applying the plan would do anything.
func (p *Plan) HasChanges() bool {
	for _, c := range p.Changes {
		if c.Action != NoOp {
			return true
		}
	}
	return false
}

// CheckFresh refuses a plan computed against a different state. A plan
// created before any state existed carries no lineage.
func (p *Plan) CheckFresh(lineage string, serial uint64) error {
	if p.Lineage != "" && lineage != "" && p.Lineage != lineage {
		return fmt.Errorf("%w: plan was created for state lineage %s, current lineage is %s", ErrStale, p.Lineage, lineage)
	}
	if p.Serial != serial {
		return fmt.Errorf("%w: plan was created at state serial %d, current serial is %d", ErrStale, p.Serial, serial)
	}
	return nil
}

// Encode serializes the plan as indented JSON.
func Encode(p *Plan) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode plan: %w", err)
	}
	return append(data, '\n'), nil
}

// Decode parses a plan file.
func Decode(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if p.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("unsupported plan format version %d", p.FormatVersion)
	}
	return &p, nil
}

// WriteFile saves the plan to path. The file may contain sensitive values
// and is created with mode 0600.
func WriteFile(path string, p *Plan) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

// ReadFile loads a plan saved by WriteFile.
func ReadFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	return Decode(data)
}
