package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/imamik/converge/internal/plan"
)

// Plan writes the human-readable plan.
func (r *Renderer) Plan(w io.Writer, p *plan.Plan) error {
	var b strings.Builder
	if !p.HasChanges() {
		b.WriteString(r.style(r.bold, "No changes.") + " Infrastructure matches the configuration.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	b.WriteString("converge will perform the following actions:\n\n")
	for _, c := range p.Changes {
		if c.Action == plan.NoOp {
			continue
		}
		r.change(&b, c)
		b.WriteString("\n")
	}
	b.WriteString(r.style(r.bold, p.SummaryLine()))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) change(b *strings.Builder, c *plan.Change) {
	b.WriteString(r.style(r.bold, "  # "+header(c)))
	b.WriteString("\n")

	sym := r.style(r.actionStyle(c.Action), fmt.Sprintf("%3s", c.Action.Symbol()))
	fmt.Fprintf(b, "%s resource %q %q {\n", sym, c.Type, c.Name)

	names := attributeNames(c)
	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	for _, n := range names {
		r.attribute(b, c, n, width)
	}
	b.WriteString("    }\n")
}

func header(c *plan.Change) string {
	switch c.Action {
	case plan.Create:
		return c.Address + " will be created"
	case plan.Update:
		return c.Address + " will be updated in-place"
	case plan.Replace:
		reason := c.Address + " must be replaced"
		for _, r := range c.ReplaceReasons {
			if r == plan.TaintedReason {
				reason = c.Address + " is tainted, so must be replaced"
			}
		}
		if c.CreateBeforeDestroy {
			reason += " (create before destroy)"
		}
		return reason
	case plan.Delete:
		return c.Address + " will be destroyed"
	}
	return c.Address
}

// attributeNames lists what a change shows: everything for create and
// delete, only changed or unknown attributes otherwise.
func attributeNames(c *plan.Change) []string {
	seen := map[string]bool{}
	add := func(n string) { seen[n] = true }
	switch c.Action {
	case plan.Create:
		for n := range c.After {
			add(n)
		}
		for _, n := range c.Unknown {
			add(n)
		}
	case plan.Delete:
		for n := range c.Before {
			add(n)
		}
	default:
		for _, n := range c.Changed {
			add(n)
		}
		for _, n := range c.Unknown {
			if _, existed := c.Before[n]; existed {
				add(n)
			}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Renderer) attribute(b *strings.Builder, c *plan.Change, name string, width int) {
	before, hadBefore := c.Before[name]
	after, hasAfter := c.After[name]
	unknown := c.IsUnknown(name)
	sensitive := c.IsSensitive(name)

	show := func(v any) string {
		if sensitive {
			return SensitiveValue
		}
		return FormatValue(v)
	}
	afterText := show(after)
	if unknown {
		afterText = KnownAfterApply
	}

	var sym, text string
	switch {
	case c.Action == plan.Create || (!hadBefore && (hasAfter || unknown)):
		sym, text = r.style(r.create, "+"), afterText
	case c.Action == plan.Delete || (!hasAfter && !unknown):
		sym, text = r.style(r.destroy, "-"), show(before)+r.style(r.dim, " -> null")
	default:
		sym, text = r.style(r.update, "~"), show(before)+" -> "+afterText
	}

	line := fmt.Sprintf("      %s %-*s = %s", sym, width, name, text)
	if c.Action == plan.Replace && contains(c.ReplaceReasons, name) {
		line += r.style(r.destroy, " # forces replacement")
	}
	b.WriteString(line)
	b.WriteString("\n")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// MaskedPlan returns a copy of p with sensitive values replaced by a
// placeholder, for json and yaml output.
func MaskedPlan(p *plan.Plan) (*plan.Plan, error) {
	data, err := plan.Encode(p)
	if err != nil {
		return nil, err
	}
	out, err := plan.Decode(data)
	if err != nil {
		return nil, err
	}
	for _, c := range out.Changes {
		for _, k := range c.Sensitive {
			if _, ok := c.Before[k]; ok {
				c.Before[k] = SensitiveValue
			}
			if _, ok := c.After[k]; ok {
				c.After[k] = SensitiveValue
			}
		}
	}
	if out.Prior != nil {
		out.Prior = MaskedState(out.Prior)
	}
	return out, nil
}
