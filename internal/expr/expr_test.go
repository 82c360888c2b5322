package expr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapScope struct {
	vars      map[string]any
	resources map[string]any
	index     *int
}

func (s mapScope) Variable(name string) (any, error) {
	v, ok := s.vars[name]
	if !ok {
		return nil, errors.New("undeclared variable")
	}
	return v, nil
}

func (s mapScope) CountIndex() (int, error) {
	if s.index == nil {
		return 0, ErrNoCount
	}
	return *s.index, nil
}

func (s mapScope) Resource(typ, name string) (any, error) {
	v, ok := s.resources[typ+"."+name]
	if !ok {
		return nil, errors.New("undeclared resource")
	}
	return v, nil
}

func testScope() mapScope {
	idx := 1
	return mapScope{
		vars: map[string]any{
			"region": "eu-west-1",
			"azs":    []any{"a", "b", "c"},
			"size":   float64(3),
			"tags":   map[string]any{"env": "prod"},
		},
		resources: map[string]any{
			"aws_vpc.main": map[string]any{"id": "vpc-123", "cidr_block": "10.0.0.0/16"},
			"aws_subnet.private": []any{
				map[string]any{"id": "subnet-a"},
				map[string]any{"id": UnknownValue},
			},
			"aws_eks_cluster.main": map[string]any{"endpoint": UnknownValue},
		},
		index: &idx,
	}
}

func eval(t *testing.T, s string) any {
	t.Helper()
	tmpl, err := ParseTemplate(s)
	require.NoError(t, err)
	v, err := tmpl.Eval(testScope())
	require.NoError(t, err)
	return v
}

func TestTemplate_Eval(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want any
	}{
		{"literal", "plain text", "plain text"},
		{"empty", "", ""},
		{"escape", "$${not.an.expr}", "${not.an.expr}"},
		{"single expression keeps type", "${var.size}", float64(3)},
		{"list preserved", "${var.azs}", []any{"a", "b", "c"}},
		{"interpolation", "vpc-${var.region}-${var.size}", "vpc-eu-west-1-3"},
		{"resource attribute", "${aws_vpc.main.id}", "vpc-123"},
		{"indexed instance", "${aws_subnet.private[0].id}", "subnet-a"},
		{"splat", "${aws_subnet.private[*].id}", []any{"subnet-a", UnknownValue}},
		{"count index", "${count.index}", float64(1)},
		{"function", "${cidrsubnet(aws_vpc.main.cidr_block, 8, count.index)}", "10.0.1.0/24"},
		{"nested function", `${upper(element(var.azs, 4))}`, "B"},
		{"map lookup", `${lookup(var.tags, "env", "dev")}`, "prod"},
		{"bracket attr", `${var.tags["env"]}`, "prod"},
		{"unknown propagates", "https://${aws_eks_cluster.main.endpoint}", UnknownValue},
		{"unknown through index", "${aws_subnet.private[1].id}", UnknownValue},
		{"booleans", "${true}", true},
		{"null", "${null}", nil},
		{"braces inside string literal", `${format("{%s}", var.region)}`, "{eu-west-1}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, eval(t, tt.in))
		})
	}
}

func TestTemplate_Errors(t *testing.T) {
	t.Parallel()
	parseErrors := []string{
		"${",
		"${var.}",
		"${aws_vpc.main.id",
		`${"unterminated}`,
		"${foo(}",
		"${a[-1]}",
	}
	for _, in := range parseErrors {
		_, err := ParseTemplate(in)
		assert.Error(t, err, in)
	}

	evalErrors := []string{
		"${var.missing}",
		"${aws_vpc.main.nope}",
		"${aws_subnet.private[5].id}",
		"${nosuch(1)}",
		"${count.other}",
		"prefix-${var.azs}",
		"${length(1)}",
	}
	for _, in := range evalErrors {
		tmpl, err := ParseTemplate(in)
		require.NoError(t, err, in)
		_, err = tmpl.Eval(testScope())
		assert.Error(t, err, in)
	}
}

func TestReferences(t *testing.T) {
	t.Parallel()
	exprs, err := ValueExprs(map[string]any{
		"vpc_id":  "${aws_vpc.main.id}",
		"subnets": []any{"${aws_subnet.private[1].id}", "${aws_subnet.public[*].id}"},
		"name":    "${var.cluster}-${count.index}",
		"cidr":    "${cidrsubnet(var.cidr, 4, 0)}",
		"plain":   "no refs",
	})
	require.NoError(t, err)

	refs := References(exprs...)
	var got []string
	for _, r := range refs {
		got = append(got, r.String()+"#"+r.Attr)
	}
	assert.ElementsMatch(t, []string{
		"aws_vpc.main#id",
		"aws_subnet.private[1]#id",
		"aws_subnet.public#id",
	}, got)
	assert.ElementsMatch(t, []string{"cluster", "cidr"}, Variables(exprs...))
	assert.True(t, UsesCount(exprs...))
}

func TestEvalValue_Nested(t *testing.T) {
	t.Parallel()
	got, err := EvalValue(map[string]any{
		"cidr": "${aws_vpc.main.cidr_block}",
		"tags": map[string]any{"Name": "net-${var.region}"},
		"n":    float64(2),
	}, testScope())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"cidr": "10.0.0.0/16",
		"tags": map[string]any{"Name": "net-eu-west-1"},
		"n":    float64(2),
	}, got)
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	got := Normalize(map[string]any{
		"i":  3,
		"l":  []any{int64(1), "x"},
		"ym": map[any]any{"k": uint8(2)},
		"s":  []string{"a"},
	})
	assert.Equal(t, map[string]any{
		"i":  float64(3),
		"l":  []any{float64(1), "x"},
		"ym": map[string]any{"k": float64(2)},
		"s":  []any{"a"},
	}, got)
}

func TestContainsUnknown(t *testing.T) {
	t.Parallel()
	assert.True(t, ContainsUnknown(map[string]any{"a": []any{"x", UnknownValue}}))
	assert.False(t, ContainsUnknown(map[string]any{"a": []any{"x"}}))
}
