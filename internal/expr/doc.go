// Package expr implements the interpolation language used inside stack files.
//
// Any string value may contain ${...} sequences. A string that consists of a
// single ${...} evaluates to the value of the expression with its type
// preserved; otherwise every piece is converted to a string and joined.
// $${ produces a literal ${.
//
// Expressions are literals, traversals (var.NAME, count.index,
// TYPE.NAME.attr, TYPE.NAME[0].attr, TYPE.NAME[*].attr) and function calls.
// Values are JSON shaped: string, float64, bool, []any, map[string]any, nil.
// Attributes that are not known until apply evaluate to [Unknown], which
// propagates through indexing, interpolation and function calls.
package expr
