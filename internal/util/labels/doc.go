// Package labels provides consistent labeling for provider resources.
//
// All managed resources carry the converge.io/stack, converge.io/address and
// converge.io/managed-by labels (AWS tags, hcloud labels), built with
// [LabelBuilder]. User supplied tags are merged on top.
package labels
