// Package render formats plans, state and outputs for the terminal.
package render

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"sigs.k8s.io/yaml"

	"github.com/imamik/converge/internal/expr"
	"github.com/imamik/converge/internal/plan"
)

// Placeholders shown instead of values.
const (
	KnownAfterApply = "(known after apply)"
	SensitiveValue  = "(sensitive value)"
)

// Output formats accepted by Document.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorDim    = lipgloss.Color("#6b7280")
)

// Renderer styles output unless color is disabled.
type Renderer struct {
	noColor bool

	create  lipgloss.Style
	update  lipgloss.Style
	destroy lipgloss.Style
	dim     lipgloss.Style
	bold    lipgloss.Style
}

// New returns a renderer. With noColor set every style is a no-op.
func New(noColor bool) *Renderer {
	return &Renderer{
		noColor: noColor,
		create:  lipgloss.NewStyle().Foreground(colorGreen),
		update:  lipgloss.NewStyle().Foreground(colorYellow),
		destroy: lipgloss.NewStyle().Foreground(colorRed),
		dim:     lipgloss.NewStyle().Foreground(colorDim),
		bold:    lipgloss.NewStyle().Bold(true),
	}
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if r.noColor {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) actionStyle(a plan.Action) lipgloss.Style {
	switch a {
	case plan.Create:
		return r.create
	case plan.Update:
		return r.update
	case plan.Replace, plan.Delete:
		return r.destroy
	}
	return r.dim
}

// FormatValue renders one attribute value on a single line.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(x)
	case float64:
		return expr.FormatNumber(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	if expr.IsUnknown(v) {
		return KnownAfterApply
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// Document encodes v as json or yaml.
func Document(v any, format string) ([]byte, error) {
	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(out, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(v)
	default:
		return nil, fmt.Errorf("unsupported output format %q (use %s or %s)", format, FormatJSON, FormatYAML)
	}
}
