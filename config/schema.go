package config

import (
	"fmt"

	"github.com/kilianp07/fieldcast/core/schema"
)

// SchemaConfig lists the target variable IDs, one group per target set.
type SchemaConfig struct {
	TargetVars [][]string `json:"target_vars"`
}

// Validate requires at least one variable and unique, non-empty IDs.
func (c SchemaConfig) Validate() error {
	if len(c.TargetVars) == 0 {
		return fmt.Errorf("target_vars is required")
	}
	seen := map[string]bool{}
	for i, g := range c.TargetVars {
		if len(g) == 0 {
			return fmt.Errorf("target set %d has no variables", i)
		}
		for _, id := range g {
			if id == "" {
				return fmt.Errorf("target set %d has an empty variable id", i)
			}
			if seen[id] {
				return fmt.Errorf("duplicate variable id %s", id)
			}
			seen[id] = true
		}
	}
	return nil
}

// VarSchema returns the static schema.
func (c SchemaConfig) VarSchema() schema.Static {
	return schema.Static(c.TargetVars)
}
