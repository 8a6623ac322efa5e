package compiler

import "github.com/keyrx-dev/krx/internal/mapping"

// validateProfile enforces the per-group invariants spec.md §4.4 lists
// beyond what the grammar itself already rules out: no duplicate input
// keys within the base rules, nor within any single group (conditional
// or device-scoped).
func validateProfile(p *mapping.Profile) error {
	if err := checkDuplicateInputs(p.Base); err != nil {
		return err
	}
	for _, g := range p.Groups {
		if err := checkDuplicateInputs(g.Rules); err != nil {
			return err
		}
	}
	return nil
}

func checkDuplicateInputs(rules []mapping.Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		key := r.Input.String()
		if seen[key] {
			return newSemanticError(0, 0, "duplicate input key "+key+" within the same group")
		}
		seen[key] = true
	}
	return nil
}
