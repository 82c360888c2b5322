package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/state"
)

// StateList writes one table row per instance.
func (r *Renderer) StateList(w io.Writer, st *state.State) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "ID", "Provider", "Status"})
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	for _, addr := range st.Addresses() {
		inst := st.Get(addr)
		status := "ok"
		if inst.Tainted {
			status = "tainted"
		}
		row := []string{inst.Address, inst.ID, inst.Provider, status}
		if r.noColor {
			table.Append(row)
			continue
		}
		statusColor := tablewriter.FgGreenColor
		if inst.Tainted {
			statusColor = tablewriter.FgRedColor
		}
		table.Rich(row, []tablewriter.Colors{{}, {}, {}, {statusColor}})
	}
	table.Render()
}

// Instance writes the attributes of one instance, masking sensitive ones.
func (r *Renderer) Instance(w io.Writer, inst *state.Instance) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s", inst.Address)
	if inst.Tainted {
		b.WriteString(r.style(r.destroy, " (tainted)"))
	}
	fmt.Fprintf(&b, "\nresource %q %q {\n", inst.Type, inst.Name)

	keys := expr.SortedKeys(inst.Attributes)
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	for _, k := range keys {
		value := FormatValue(inst.Attributes[k])
		if contains(inst.SensitiveAttributes, k) {
			value = SensitiveValue
		}
		fmt.Fprintf(&b, "    %-*s = %s\n", width, k, value)
	}
	b.WriteString("}\n")
	if len(inst.Dependencies) > 0 {
		deps := append([]string(nil), inst.Dependencies...)
		sort.Strings(deps)
		b.WriteString(r.style(r.dim, "# depends on: "+strings.Join(deps, ", ")))
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Outputs writes name = value lines. Sensitive values are masked unless
// reveal is set.
func (r *Renderer) Outputs(w io.Writer, outputs map[string]*state.OutputValue, reveal bool) error {
	var b strings.Builder
	keys := expr.SortedKeys(outputs)
	width := 0
	for _, k := range keys {
		width = max(width, len(k))
	}
	for _, k := range keys {
		o := outputs[k]
		value := FormatValue(o.Value)
		if o.Sensitive && !reveal {
			value = SensitiveValue
		}
		fmt.Fprintf(&b, "%-*s = %s\n", width, k, value)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// OutputValue writes a single output raw: strings unquoted, other values
// in their single-line form.
func OutputValue(w io.Writer, o *state.OutputValue) error {
	var text string
	if s, ok := o.Value.(string); ok {
		text = s
	} else {
		text = FormatValue(o.Value)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// MaskedState returns a copy of st with sensitive attributes and outputs
// replaced by a placeholder, for json and yaml output.
func MaskedState(st *state.State) *state.State {
	out := st.DeepCopy()
	for _, inst := range out.Resources {
		for _, k := range inst.SensitiveAttributes {
			if _, ok := inst.Attributes[k]; ok {
				inst.Attributes[k] = SensitiveValue
			}
		}
	}
	for _, o := range out.Outputs {
		if o.Sensitive {
			o.Value = SensitiveValue
		}
	}
	return out
}
