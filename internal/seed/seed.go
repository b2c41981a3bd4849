// Package seed reimplements the lazy recursive initial-layout generator as
// a goroutine feeding a channel: Go has no native yield, so the producer
// runs on its own goroutine and sends each linear seed layout it completes
// on an unbuffered channel, stopping as soon as the consumer cancels the
// context.
package seed

import (
	"context"
	"math/rand"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/recipe"
	"github.com/mathiascj/gridforge/internal/strset"
)

// Generate starts the seed producer and returns the channel it sends
// canonical layout strings on. The channel is closed once every branch has
// been explored, or as soon as ctx is canceled — the caller must drain or
// cancel to avoid leaking the goroutine.
//
// graph is composed once by the caller (recipe.NewGraph); freeModules is
// every module available to place; uni is mutated in place each time a
// branch reaches its base case (matching the original's reuse of a single
// config_string_handler across the whole search).
func Generate(ctx context.Context, graph *recipe.Graph, freeModules []*grid.Module, uni *layout.Universe, rng *rand.Rand) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		generate(ctx, graph, append([]*grid.Module(nil), freeModules...), nil, map[string]*grid.Module{}, map[*grid.Module]strset.Set{}, uni, rng, ch)
	}()
	return ch
}

func generate(
	ctx context.Context,
	g *recipe.Graph,
	freeModules []*grid.Module,
	setup []*grid.Module,
	recipeStarters map[string]*grid.Module,
	activeWorks map[*grid.Module]strset.Set,
	uni *layout.Universe,
	rng *rand.Rand,
	ch chan<- string,
) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	gCopy := g.Clone()
	recipeStartersCopy := make(map[string]*grid.Module, len(recipeStarters))
	for k, v := range recipeStarters {
		recipeStartersCopy[k] = v
	}
	activeWorksCopy := make(map[*grid.Module]strset.Set, len(activeWorks))
	for k, v := range activeWorks {
		activeWorksCopy[k] = v.Copy()
	}

	if len(setup) > 0 {
		consumeTopNodes(gCopy, setup, recipeStartersCopy, activeWorksCopy)
	}
	topNodes := gCopy.TopNodes()

	if gCopy.Empty() {
		emit(ctx, setup, recipeStartersCopy, activeWorksCopy, uni, ch)
		return
	}

	for _, work := range topNodes {
		var capable []*grid.Module
		for _, m := range freeModules {
			if m.WType.Has(work) {
				capable = append(capable, m)
			}
		}
		rng.Shuffle(len(capable), func(i, j int) { capable[i], capable[j] = capable[j], capable[i] })

		for _, m := range capable {
			select {
			case <-ctx.Done():
				return
			default:
			}
			remaining := make([]*grid.Module, 0, len(freeModules)-1)
			for _, fm := range freeModules {
				if fm != m {
					remaining = append(remaining, fm)
				}
			}
			newSetup := append(append([]*grid.Module(nil), setup...), m)
			generate(ctx, gCopy, remaining, newSetup, recipeStartersCopy, activeWorksCopy, uni, rng, ch)
		}
	}
}

// consumeTopNodes repeatedly removes every top-node work type the last
// placed module can perform, recording it as that work's performer and as
// the recipe start module for any recipe entering there, until no more
// consumption is possible.
func consumeTopNodes(g *recipe.Graph, setup []*grid.Module, recipeStarters map[string]*grid.Module, activeWorks map[*grid.Module]strset.Set) {
	current := setup[len(setup)-1]
	for {
		changed := false
		for _, work := range g.TopNodes() {
			if !current.WType.Has(work) {
				continue
			}
			changed = true
			for _, name := range g.StartsFor(work) {
				if _, already := recipeStarters[name]; !already {
					recipeStarters[name] = current
				}
			}
			if activeWorks[current] == nil {
				activeWorks[current] = strset.New()
			}
			activeWorks[current].Add(work)
			g.Remove(work)
		}
		if !changed {
			return
		}
	}
}

// emit reaches the generator's base case: the dependency graph is fully
// consumed, so setup can be wired into a complete linear layout and
// encoded. If any recipe never found a start module, the branch dead-ends
// silently, matching the original's "cyclic or unsatisfiable dependency"
// behavior.
func emit(
	ctx context.Context,
	setup []*grid.Module,
	recipeStarters map[string]*grid.Module,
	activeWorks map[*grid.Module]strset.Set,
	uni *layout.Universe,
	ch chan<- string,
) {
	uni.ResetModules()

	for i, m := range setup {
		if i+1 < len(setup) {
			m.Set(grid.Right, setup[i+1])
		}
		if w, ok := activeWorks[m]; ok {
			m.ActiveWType = w.Copy()
		}
	}

	for _, r := range uni.Recipes {
		start, ok := recipeStarters[r.Name]
		if !ok {
			return
		}
		r.StartModule = start
	}

	uni.PlaceMainLine(setup)

	s, err := uni.Encode()
	if err != nil {
		return
	}

	select {
	case ch <- s:
	case <-ctx.Done():
	}
}
