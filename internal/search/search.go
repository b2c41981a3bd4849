// Package search implements the TabuController: the short/long-term-memory,
// adaptive move-weight, backtracking local search described in spec.md §4.7,
// ported from configuration/tabu_search.py. Every iteration decodes the
// current frontier, generates neighbor layouts via internal/moves, scores
// them through an oracle.Oracle, and accepts the best one not currently
// tabu.
package search

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/moves"
	"github.com/mathiascj/gridforge/internal/oracle"
	"github.com/mathiascj/gridforge/internal/recipe"
	"github.com/mathiascj/gridforge/internal/seed"
	"github.com/mathiascj/gridforge/internal/strset"
)

// Weight constants from tabu_search.py, reproduced verbatim — spec.md §9
// requires the exact drift arithmetic since iteration 0 must pick
// anti_serialize with probability 1.
const (
	weightStart    = 200.0
	weightStrength = 1.0
	weightX        = 3 * weightStrength
	weightY        = 1 * weightStrength
)

// Config holds the tabu search's tuning parameters.
type Config struct {
	Iters             int
	ShortTermSize     int
	MaxInitialConfigs int
	Rand              *rand.Rand // nil uses a source with the fixed seed 1
}

// Result is one (layout, makespan) pair the search found tied for best.
type Result struct {
	Frontier string
	Makespan int
}

type neighbourFunc func(uni *layout.Universe, frontier string, active map[string]strset.Set, rng *rand.Rand) ([]string, error)

func antiSerializeFunc(uni *layout.Universe, frontier string, active map[string]strset.Set, rng *rand.Rand) ([]string, error) {
	return moves.NeighboursAntiSerialized(uni, frontier, active, rng)
}

func parallelizeFunc(uni *layout.Universe, frontier string, active map[string]strset.Set, _ *rand.Rand) ([]string, error) {
	return moves.NeighboursParallelize(uni, frontier, active)
}

func swapFunc(uni *layout.Universe, frontier string, active map[string]strset.Set, _ *rand.Rand) ([]string, error) {
	return moves.NeighboursSwap(uni, frontier, active)
}

type weightedOp struct {
	name   string
	fn     neighbourFunc
	weight float64
}

func initialOps() []weightedOp {
	return []weightedOp{
		{"anti_serialize", antiSerializeFunc, weightStart},
		{"parallelize", parallelizeFunc, 0},
		{"swap", swapFunc, 0},
	}
}

func cloneOps(ops []weightedOp) []weightedOp {
	out := make([]weightedOp, len(ops))
	copy(out, ops)
	return out
}

// memoryEntry is a (frontier, move_weights) checkpoint for backtracking.
type memoryEntry struct {
	frontier string
	ops      []weightedOp
}

// Controller runs the tabu search against a single layout.Universe.
type Controller struct {
	Universe *layout.Universe
	Oracle   oracle.Oracle
	Config   Config

	RunID uuid.UUID

	rng *rand.Rand

	configFitness map[string]int
	configActive  map[string]map[string]strset.Set
}

// New constructs a Controller. Config zero values fall back to the
// original's tabu_search() keyword defaults (iters=50, short_term_size=10,
// max_initial_configs=10).
func New(uni *layout.Universe, orc oracle.Oracle, cfg Config) *Controller {
	if cfg.Iters == 0 {
		cfg.Iters = 50
	}
	if cfg.ShortTermSize == 0 {
		cfg.ShortTermSize = 10
	}
	if cfg.MaxInitialConfigs == 0 {
		cfg.MaxInitialConfigs = 10
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Controller{
		Universe:      uni,
		Oracle:        orc,
		Config:        cfg,
		RunID:         uuid.New(),
		rng:           rng,
		configFitness: map[string]int{},
		configActive:  map[string]map[string]strset.Set{},
	}
}

// Run executes the search and returns every (layout, makespan) pair tying
// for the minimum makespan seen across the whole run.
func (c *Controller) Run(ctx context.Context) ([]Result, error) {
	logger := log.With().Str("run_id", c.RunID.String()).Logger()

	graph := recipe.NewGraph(c.Universe.Recipes)
	free := c.Universe.FreeModules()

	seedCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	seeds := seed.Generate(seedCtx, graph, free, c.Universe, c.rng)

	// The generator rebuilds c.Universe for every seed it emits, so all seeds
	// are collected and the generator has finished before any is decoded.
	var seedList []string
	for s := range seeds {
		if len(seedList) >= c.Config.MaxInitialConfigs {
			cancel()
			break
		}
		seedList = append(seedList, s)
	}
	for range seeds {
	}

	var longTerm []memoryEntry
	for _, s := range seedList {
		if _, err := c.evaluate(ctx, s); err != nil {
			return nil, fmt.Errorf("search: evaluating initial configuration: %w", err)
		}
		longTerm = append(longTerm, memoryEntry{frontier: s, ops: initialOps()})
	}
	if len(longTerm) == 0 {
		return nil, fmt.Errorf("search: seed generator produced zero initial configurations")
	}

	sort.SliceStable(longTerm, func(i, j int) bool {
		return c.configFitness[longTerm[i].frontier] < c.configFitness[longTerm[j].frontier]
	})
	initialMemory := append([]memoryEntry(nil), longTerm...)

	frontier := longTerm[0].frontier
	ops := cloneOps(longTerm[0].ops)

	var shortTerm []string

	backtrack := func() (string, []weightedOp) {
		if len(longTerm) > 0 {
			i := c.rng.Intn(len(longTerm))
			back := longTerm[i]
			longTerm = append(longTerm[:i], longTerm[i+1:]...)
			return back.frontier, cloneOps(back.ops)
		}
		back := initialMemory[c.rng.Intn(len(initialMemory))]
		return back.frontier, cloneOps(back.ops)
	}

	for i := 0; i < c.Config.Iters; i++ {
		chosen, opIdx := c.pickOp(ops)
		logger.Info().Int("iter", i).Str("operator", chosen.name).Msg("generating neighbours")

		active := c.configActive[frontier]
		neighbours, err := chosen.fn(c.Universe, frontier, active, c.rng)
		if err != nil {
			logger.Warn().Err(err).Msg("operator failed, backtracking")
			frontier, ops = backtrack()
			continue
		}
		c.drift(ops, opIdx)

		logger.Info().Int("count", len(neighbours)).Msg("scoring neighbours")

		type scored struct {
			frontier string
			fitness  int
		}
		var results []scored
		for _, n := range neighbours {
			fitness, err := c.evaluate(ctx, n)
			if err != nil {
				if errors.Is(err, oracle.ErrUnsatisfiable) || errors.Is(err, oracle.ErrParseFailure) {
					continue
				}
				frontier, ops = backtrack()
				continue
			}
			results = append(results, scored{n, fitness})
		}
		sort.SliceStable(results, func(i, j int) bool { return results[i].fitness < results[j].fitness })

		tabu := make(map[string]bool, len(shortTerm))
		for _, s := range shortTerm {
			tabu[s] = true
		}

		var next string
		for _, r := range results {
			if !tabu[r.frontier] {
				next = r.frontier
				break
			}
		}

		if next != "" {
			frontier = next
			if len(shortTerm) > c.Config.ShortTermSize {
				shortTerm = shortTerm[1:]
			}
			shortTerm = append(shortTerm, frontier)
			longTerm = append(longTerm, memoryEntry{frontier: frontier, ops: cloneOps(ops)})
		} else {
			logger.Info().Msg("all neighbours tabu, backtracking")
			frontier, ops = backtrack()
		}
	}

	logger.Info().Int("evaluated", len(c.configFitness)).Msg("search complete")
	return c.bestResults(), nil
}

// pickOp performs weighted_choice over ops' current weights, returning the
// chosen operator and its index (so drift can be applied against the same
// pre-selection weights).
func (c *Controller) pickOp(ops []weightedOp) (weightedOp, int) {
	weights := make([]float64, len(ops))
	for i, o := range ops {
		weights[i] = o.weight
	}
	idx := weightedChoice(c.rng, weights)
	return ops[idx], idx
}

// drift biases weight away from earlier operators toward later ones,
// mirroring get_neighbour_func's new_weights computation: up to weightX
// units move from ops[0] to ops[1], then up to weightY units move from
// ops[1] (post-shift) to ops[2]. chosenIdx is unused by the arithmetic
// itself — drift always touches all three slots, regardless of which was
// picked — but is accepted for symmetry with pickOp's pairing.
func (c *Controller) drift(ops []weightedOp, _ int) {
	if ops[0].weight < weightX {
		ops[1].weight += ops[0].weight
		ops[0].weight = 0
	} else {
		ops[1].weight += weightX
		ops[0].weight -= weightX
	}
	if ops[1].weight < weightY {
		ops[2].weight += ops[1].weight
		ops[1].weight = 0
	} else {
		ops[2].weight += weightY
		ops[1].weight -= weightY
	}
}

// weightedChoice mirrors tabu_search.py's weighted_choice: a cumulative-sum
// binary search (bisect_left) over a uniform draw scaled by the total
// weight.
func weightedChoice(rng *rand.Rand, weights []float64) int {
	cum := make([]float64, len(weights))
	total := 0.0
	for i, w := range weights {
		total += w
		cum[i] = total
	}
	x := rng.Float64() * total
	idx := sort.Search(len(cum), func(i int) bool { return cum[i] >= x })
	if idx >= len(cum) {
		idx = len(cum) - 1
	}
	return idx
}

// evaluate decodes cfg into the universe, scores it via the oracle, and
// memoizes the result — evaluate_config()'s memoized side-effecting decode.
func (c *Controller) evaluate(ctx context.Context, cfg string) (int, error) {
	if f, ok := c.configFitness[cfg]; ok {
		return f, nil
	}
	if err := c.Universe.Decode(cfg); err != nil {
		return 0, err
	}
	modulesInConfig := c.Universe.CurrentModules()

	result, err := c.Oracle.Evaluate(ctx, c.Universe.Recipes, modulesInConfig)
	if err != nil {
		return 0, err
	}

	c.configFitness[cfg] = result.Makespan
	c.configActive[cfg] = result.ActiveWork
	return result.Makespan, nil
}

// bestResults returns every (layout, makespan) pair tied for the minimum
// makespan observed across the whole run.
func (c *Controller) bestResults() []Result {
	if len(c.configFitness) == 0 {
		return nil
	}
	min := 0
	first := true
	for _, f := range c.configFitness {
		if first || f < min {
			min = f
			first = false
		}
	}
	var out []Result
	for cfg, f := range c.configFitness {
		if f == min {
			out = append(out, Result{Frontier: cfg, Makespan: f})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Frontier < out[j].Frontier })
	return out
}
