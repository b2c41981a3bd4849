package moves

import (
	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/strset"
)

// swapConfigString redecodes frontier fresh and exchanges m0 and m1 in
// place, returning the resulting layout's canonical encoding. m0 and m1
// must be modules registered in uni (the same *grid.Module arena the
// decode rebuilds state onto), captured from an earlier decode of the same
// frontier.
func swapConfigString(uni *layout.Universe, frontier string, m0, m1 *grid.Module) (string, error) {
	if err := uni.Decode(frontier); err != nil {
		return "", err
	}
	if err := uni.SwapModules(m0, m1); err != nil {
		return "", err
	}
	return uni.Encode()
}

// internalSwapNeighbours pairs up placed modules performing identical
// active work and swaps their positions — a no-op on what work gets done,
// but a different physical arrangement for the oracle to re-evaluate.
func internalSwapNeighbours(uni *layout.Universe, frontier string, configModules []*grid.Module) ([]string, error) {
	var out []string
	for _, m0 := range configModules {
		if len(m0.ActiveWType) == 0 {
			continue
		}
		for _, m1 := range configModules {
			if m0 == m1 || len(m1.ActiveWType) == 0 {
				continue
			}
			if !strset.Equal(m0.ActiveWType, m1.ActiveWType) {
				continue
			}
			s, err := swapConfigString(uni, frontier, m1, m0)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// externalSwapNeighbours replaces a placed module with an unplaced one
// capable of everything the placed module was actively doing. The
// original's equivalent filter additionally required the candidate
// replacement to already carry non-empty active work of its own — which an
// unplaced, not-yet-assigned module never does, making that branch
// unreachable. spec.md's stated semantics carry no such requirement, so
// this only checks the capability superset.
func externalSwapNeighbours(uni *layout.Universe, frontier string, configModules, freeModules []*grid.Module) ([]string, error) {
	var out []string
	for _, old := range configModules {
		if len(old.ActiveWType) == 0 {
			continue
		}
		for _, candidate := range freeModules {
			if old == candidate {
				continue
			}
			if !strset.SubsetOf(old.ActiveWType, candidate.WType) {
				continue
			}
			s, err := swapConfigString(uni, frontier, old, candidate)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

// NeighboursSwap decodes frontier, restores active work, then explores both
// an internal swap (two placed modules doing identical work trade places)
// and an external swap (a placed module is replaced by an unplaced one
// capable of its work), deduplicating the resulting candidate layouts.
// Transport modules are excluded from both pools — they have no capability
// profile worth swapping.
func NeighboursSwap(uni *layout.Universe, frontier string, active map[string]strset.Set) ([]string, error) {
	if err := uni.Decode(frontier); err != nil {
		return nil, err
	}
	restoreActive(uni, active)

	configStr, err := uni.Encode()
	if err != nil {
		return nil, err
	}

	transports := map[*grid.Module]bool{}
	for _, t := range uni.TransportModules() {
		transports[t] = true
	}

	var configModules, freeModules []*grid.Module
	for _, m := range uni.CurrentModules() {
		if !transports[m] {
			configModules = append(configModules, m)
		}
	}
	for _, m := range uni.FreeModules() {
		if !transports[m] {
			freeModules = append(freeModules, m)
		}
	}

	external, err := externalSwapNeighbours(uni, configStr, configModules, freeModules)
	if err != nil {
		return nil, err
	}
	internal, err := internalSwapNeighbours(uni, configStr, configModules)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []string
	for _, s := range append(external, internal...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out, nil
}
