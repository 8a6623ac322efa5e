package daemon

import (
	"github.com/keyrx-dev/krx/internal/keycode"
	"github.com/keyrx-dev/krx/internal/mapping"
)

// buildBlockTable enumerates every input KeyCode referenced anywhere in
// profile — the base mappings plus every when_start/when_end group,
// regardless of which group's condition is currently satisfied — and
// collapses duplicates into a single union (spec.md §4.9 Design Notes:
// "recursively enumerates every input KeyCode... for every MD/LK
// combination; duplicates are collapsed" — a union of reachable inputs
// across all groups, not a per-combination Cartesian product, since the
// condition that gates a group can change at runtime while the block
// table is fixed for the profile's lifetime).
func buildBlockTable(profile *mapping.Profile) []keycode.Code {
	seen := make(map[keycode.Code]bool)
	var out []keycode.Code

	add := func(c keycode.Code) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}

	for _, r := range profile.Base {
		add(r.Input)
	}
	for _, g := range profile.Groups {
		for _, r := range g.Rules {
			add(r.Input)
		}
	}
	return out
}
