package search

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/oracle/fake"
	"github.com/mathiascj/gridforge/internal/recipe"
)

func newMod(t *testing.T, id string, wtypes ...string) *grid.Module {
	t.Helper()
	pTime := map[string]int{}
	for _, w := range wtypes {
		pTime[w] = 1
	}
	m, err := grid.New(id, pTime, [4][4]int{}, 1, false)
	require.NoError(t, err)
	return m
}

func newTestUniverse(t *testing.T) *layout.Universe {
	t.Helper()
	ma := newMod(t, "ma", "a")
	mb := newMod(t, "mb", "b")
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)

	r, err := recipe.New("widget", map[string][]string{"b": {"a"}, "a": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	uni, err := layout.NewUniverse([]*grid.Module{ma, mb}, transportProto, []*recipe.Recipe{r})
	require.NoError(t, err)
	return uni
}

func TestRunFindsMinimumMakespanOverFixedIterations(t *testing.T) {
	uni := newTestUniverse(t)
	orc := &fake.Oracle{}

	c := New(uni, orc, Config{
		Iters:             5,
		ShortTermSize:     2,
		MaxInitialConfigs: 3,
		Rand:              rand.New(rand.NewSource(7)),
	})

	results, err := c.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, results)

	min := results[0].Makespan
	for _, r := range results {
		assert.Equal(t, min, r.Makespan)
		assert.NotEmpty(t, r.Frontier)
	}
	for _, f := range c.configFitness {
		assert.GreaterOrEqual(t, f, min)
	}
}

func TestRunErrorsWhenSeedGeneratorProducesNothing(t *testing.T) {
	ma := newMod(t, "ma", "a")
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)
	// A recipe depending on a work type no module can perform: the seed
	// generator dead-ends on every branch, matching "Seed exhaustion" per
	// spec.md's error table.
	r, err := recipe.New("widget", map[string][]string{"missing": nil}, nil, grid.Right, 1)
	require.NoError(t, err)
	uni, err := layout.NewUniverse([]*grid.Module{ma}, transportProto, []*recipe.Recipe{r})
	require.NoError(t, err)

	c := New(uni, &fake.Oracle{}, Config{Iters: 1, Rand: rand.New(rand.NewSource(1))})
	_, err = c.Run(context.Background())
	assert.Error(t, err)
}

func TestWeightedChoiceFavorsHeaviestWeight(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	counts := map[int]int{}
	for i := 0; i < 200; i++ {
		idx := weightedChoice(rng, []float64{weightStart, 0, 0})
		counts[idx]++
	}
	assert.Equal(t, 200, counts[0])
}

func TestDriftMovesWeightTowardLaterOperators(t *testing.T) {
	c := &Controller{}
	ops := initialOps()
	c.drift(ops, 0)
	assert.Equal(t, weightStart-weightX, ops[0].weight)
	assert.Equal(t, weightX-weightY, ops[1].weight)
	assert.Equal(t, weightY, ops[2].weight)
}
