// Package moves implements the three neighbourhood operators the tabu
// search explores from a decoded layout: anti_serialize (pull a purely-one-
// recipe segment off the main line), parallelize (branch a segment out as a
// side line), and swap (exchange two modules' positions or roles). Every
// operator shares the same entry shape: decode a frontier layout string,
// restore the active-work assignment the caller is tracking (decode alone
// cannot recover it, since a module's active work isn't always reflected in
// its own layout fragment once other moves have touched it), then explore.
package moves

import (
	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/strset"
)

// restoreActive overwrites the active work-type set of every currently
// placed module named in active, matching the original's pattern of
// decoding a frontier string and then re-applying work assignments the
// string alone doesn't carry.
func restoreActive(uni *layout.Universe, active map[string]strset.Set) {
	for _, m := range uni.CurrentModules() {
		if w, ok := active[m.ID]; ok {
			m.ActiveWType = w.Copy()
		}
	}
}

// containsModule reports whether m appears in mods.
func containsModule(mods []*grid.Module, m *grid.Module) bool {
	for _, mm := range mods {
		if mm == m {
			return true
		}
	}
	return false
}
