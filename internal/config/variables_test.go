package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const variablesStack = `
variables:
  region:
    type: string
    default: eu-west-1
  node_count:
    type: number
    default: 2
  public:
    type: bool
    default: false
  azs:
    type: list
  tags:
    type: map
    default: {}
  extra:
    type: any
    nullable: false
    default: x
`

func loadVariablesStack(t *testing.T) *Stack {
	t.Helper()
	s, err := Parse("vars.yaml", []byte(variablesStack))
	require.NoError(t, err)
	return s
}

func TestResolveVariables_Precedence(t *testing.T) {
	t.Setenv("CONVERGE_TEST_HOME", "/home/ops")
	s := loadVariablesStack(t)
	dir := t.TempDir()

	writeFile(t, dir, "a.auto.vars.yaml", "region: from-auto\nnode_count: 3\n")
	writeFile(t, dir, "b.auto.vars.toml", "azs = [\"a\", \"b\"]\n")
	varFile := writeFile(t, dir, "prod.vars.json", `{"node_count": 5, "tags": {"home": "${CONVERGE_TEST_HOME}"}}`)

	vals, err := ResolveVariables(s, VarInputs{
		AutoDir: dir,
		Files:   []string{varFile},
		Flags:   []string{"public=true", "region=from-flag"},
		Environ: []string{"CONVERGE_VAR_region=from-env", "CONVERGE_VAR_unknown=ignored", "PATH=/bin"},
	})
	require.NoError(t, err)

	assert.Equal(t, "from-flag", vals["region"])
	assert.Equal(t, float64(5), vals["node_count"])
	assert.Equal(t, true, vals["public"])
	assert.Equal(t, []any{"a", "b"}, vals["azs"])
	assert.Equal(t, map[string]any{"home": "/home/ops"}, vals["tags"])
	assert.Equal(t, "x", vals["extra"])
}

func TestResolveVariables_EnvConversion(t *testing.T) {
	t.Parallel()
	s := loadVariablesStack(t)

	vals, err := ResolveVariables(s, VarInputs{Environ: []string{
		"CONVERGE_VAR_node_count=7",
		"CONVERGE_VAR_azs=[eu-west-1a, eu-west-1b]",
		"CONVERGE_VAR_tags={team: core}",
	}})
	require.NoError(t, err)
	assert.Equal(t, float64(7), vals["node_count"])
	assert.Equal(t, []any{"eu-west-1a", "eu-west-1b"}, vals["azs"])
	assert.Equal(t, map[string]any{"team": "core"}, vals["tags"])
}

func TestResolveVariables_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      VarInputs
		wantErr string
	}{
		{"missing required", VarInputs{}, `no value for required variable "azs"`},
		{"undeclared flag", VarInputs{Flags: []string{"azs=[a]", "nope=1"}}, `undeclared variable "nope"`},
		{"malformed flag", VarInputs{Flags: []string{"azs=[a]", "novalue"}}, "expected name=value"},
		{"bad number", VarInputs{Flags: []string{"azs=[a]", "node_count=many"}}, `cannot convert "many" to number`},
		{"bad bool", VarInputs{Flags: []string{"azs=[a]", "public=maybe"}}, `cannot convert "maybe" to bool`},
		{"list for map", VarInputs{Flags: []string{"azs=[a]", "tags=[a]"}}, "expected map, got list"},
		{"missing var file", VarInputs{Flags: []string{"azs=[a]"}, Files: []string{"/nonexistent/x.yaml"}}, "failed to read var file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ResolveVariables(loadVariablesStack(t), tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolveVariables_NotNullable(t *testing.T) {
	t.Parallel()
	s := loadVariablesStack(t)
	dir := t.TempDir()
	f := writeFile(t, dir, "null.yaml", "extra: null\nazs: []\n")

	_, err := ResolveVariables(s, VarInputs{Files: []string{f}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `variable "extra" must not be null`)
}

func TestReadVarFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	f := writeFile(t, t.TempDir(), "vars.ini", "a=b")
	_, err := ReadVarFile(f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported var file extension")
}

func TestConvertValue_StringFromPrimitives(t *testing.T) {
	t.Parallel()
	v := &Variable{Name: "s", Type: TypeString}

	got, err := convertValue(v, float64(3))
	require.NoError(t, err)
	assert.Equal(t, "3", got)

	got, err = convertValue(v, true)
	require.NoError(t, err)
	assert.Equal(t, "true", got)

	_, err = convertValue(v, []any{"a"})
	assert.Error(t, err)
}
