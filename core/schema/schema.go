// Package schema describes which variables a model predicts for each target
// set.
package schema

import "slices"

// VarSchema supplies the target variable IDs, one group per target set.
type VarSchema interface {
	TargetVarIDs() [][]string
}

// Static is a fixed VarSchema, typically loaded from configuration.
type Static [][]string

// TargetVarIDs implements VarSchema.
func (s Static) TargetVarIDs() [][]string {
	out := make([][]string, len(s))
	for i, g := range s {
		out[i] = slices.Clone(g)
	}
	return out
}

// Flatten returns every variable ID in target-set order.
func Flatten(s VarSchema) []string {
	var out []string
	for _, g := range s.TargetVarIDs() {
		out = append(out, g...)
	}
	return out
}

// GroupOf returns the target set holding id and its position within that set.
func GroupOf(s VarSchema, id string) (set, pos int, ok bool) {
	for i, g := range s.TargetVarIDs() {
		if j := slices.Index(g, id); j >= 0 {
			return i, j, true
		}
	}
	return -1, -1, false
}
