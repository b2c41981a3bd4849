// Package fake provides a deterministic, in-memory oracle.Oracle used to
// exercise internal/search without a real verifyta binary — this is how
// gridforge's own tests drive the tabu search end-to-end.
package fake

import (
	"context"
	"sort"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/oracle"
	"github.com/mathiascj/gridforge/internal/recipe"
	"github.com/mathiascj/gridforge/internal/strset"
)

// Oracle scores a layout by a simple, deterministic cost function instead
// of running a model checker: the number of participating modules, plus
// the total processing and transit time declared on them, plus a per-recipe
// amount weighting. Every module that performs any of a recipe's work types
// is recorded as having worked on that recipe; a module with no active work
// of its own is recorded as transporting every recipe, whatever its
// position relative to the recipes' start modules.
type Oracle struct {
	// Cost, when non-nil, overrides the default scoring function entirely —
	// used by tests that want to dictate exactly which candidate should win.
	Cost func(recipes []*recipe.Recipe, modules []*grid.Module) int
}

// Evaluate never fails: the fake never models unsatisfiability or parse
// failure, since there is no external process to fail. Tests that need to
// exercise oracle.ErrUnsatisfiable/oracle.ErrParseFailure wrap Oracle or
// provide their own oracle.Oracle implementation.
func (o *Oracle) Evaluate(_ context.Context, recipes []*recipe.Recipe, modules []*grid.Module) (oracle.Result, error) {
	sorted := append([]*grid.Module(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	makespan := 0
	if o.Cost != nil {
		makespan = o.Cost(recipes, sorted)
	} else {
		makespan = defaultCost(recipes, sorted)
	}

	worked := map[string]strset.Set{}
	transported := map[string]strset.Set{}
	active := map[string]strset.Set{}

	for _, m := range sorted {
		if len(m.ActiveWType) == 0 {
			continue
		}
		active[m.ID] = m.ActiveWType.Copy()
		for _, r := range recipes {
			for w := range m.ActiveWType {
				if _, ok := r.Dependencies[w]; ok {
					if worked[m.ID] == nil {
						worked[m.ID] = strset.New()
					}
					worked[m.ID].Add(r.Name)
				}
			}
		}
	}
	for _, m := range sorted {
		if len(m.ActiveWType) > 0 {
			continue
		}
		for _, r := range recipes {
			if transported[m.ID] == nil {
				transported[m.ID] = strset.New()
			}
			transported[m.ID].Add(r.Name)
		}
	}

	return oracle.Result{
		Makespan:    makespan,
		Worked:      worked,
		Transported: transported,
		ActiveWork:  active,
	}, nil
}

func defaultCost(recipes []*recipe.Recipe, modules []*grid.Module) int {
	cost := 0
	for _, m := range modules {
		cost++
		for _, p := range m.PTime {
			cost += p
		}
		for _, row := range m.TTime {
			for _, t := range row {
				if t > 0 {
					cost += t
				}
			}
		}
	}
	for _, r := range recipes {
		cost += r.Amount
	}
	return cost
}
