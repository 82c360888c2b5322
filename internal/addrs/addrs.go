// Package addrs parses and formats resource instance addresses.
//
// An address is TYPE.NAME for a single resource or TYPE.NAME[N] for one
// instance of a counted resource.
package addrs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NoIndex marks an instance of a resource without count.
const NoIndex = -1

var (
	typePattern = regexp.MustCompile(`^[a-z][a-z0-9]*_[a-z0-9_]+$`)
	namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)
)

// Resource identifies a declared resource block.
type Resource struct {
	Type string
	Name string
}

func (r Resource) String() string {
	return r.Type + "." + r.Name
}

// Instance returns the instance address for index (NoIndex for none).
func (r Resource) Instance(index int) Instance {
	return Instance{Resource: r, Index: index}
}

// Instance identifies a single resource instance.
type Instance struct {
	Resource
	Index int
}

func (a Instance) String() string {
	if a.Index == NoIndex {
		return a.Resource.String()
	}
	return fmt.Sprintf("%s[%d]", a.Resource.String(), a.Index)
}

// Less orders instances by resource address then index.
func (a Instance) Less(b Instance) bool {
	if a.Resource != b.Resource {
		return a.Resource.String() < b.Resource.String()
	}
	return a.Index < b.Index
}

// ValidType reports whether s is a valid resource type (provider_kind).
func ValidType(s string) bool { return typePattern.MatchString(s) }

// ValidName reports whether s is a valid resource, variable or output name.
func ValidName(s string) bool { return namePattern.MatchString(s) }

// ProviderOf returns the provider prefix of a resource type.
func ProviderOf(typ string) string {
	if i := strings.IndexByte(typ, '_'); i > 0 {
		return typ[:i]
	}
	return typ
}

// ParseResource parses TYPE.NAME.
func ParseResource(s string) (Resource, error) {
	typ, name, ok := strings.Cut(s, ".")
	if !ok || !ValidType(typ) || !ValidName(name) {
		return Resource{}, fmt.Errorf("invalid resource address %q", s)
	}
	return Resource{Type: typ, Name: name}, nil
}

// ParseInstance parses TYPE.NAME or TYPE.NAME[N].
func ParseInstance(s string) (Instance, error) {
	base, idx := s, NoIndex
	if strings.HasSuffix(s, "]") {
		open := strings.LastIndexByte(s, '[')
		if open < 0 {
			return Instance{}, fmt.Errorf("invalid resource address %q", s)
		}
		n, err := strconv.Atoi(s[open+1 : len(s)-1])
		if err != nil || n < 0 {
			return Instance{}, fmt.Errorf("invalid index in resource address %q", s)
		}
		base, idx = s[:open], n
	}
	r, err := ParseResource(base)
	if err != nil {
		return Instance{}, err
	}
	return Instance{Resource: r, Index: idx}, nil
}
