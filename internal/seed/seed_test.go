package seed

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
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

func collect(t *testing.T, ch <-chan string, max int) []string {
	t.Helper()
	var out []string
	for s := range ch {
		out = append(out, s)
		if len(out) >= max {
			break
		}
	}
	return out
}

func TestGenerateYieldsLinearSeed(t *testing.T) {
	ma := newMod(t, "ma", "a")
	mb := newMod(t, "mb", "b")
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)

	r, err := recipe.New("widget", map[string][]string{"b": {"a"}, "a": nil}, nil, grid.Right, 1)
	require.NoError(t, err)
	uni, err := layout.NewUniverse([]*grid.Module{ma, mb}, transportProto, []*recipe.Recipe{r})
	require.NoError(t, err)

	g := recipe.NewGraph([]*recipe.Recipe{r})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch := Generate(ctx, g, []*grid.Module{ma, mb}, uni, rand.New(rand.NewSource(1)))
	results := collect(t, ch, 1)

	require.Len(t, results, 1)
	assert.Contains(t, results[0], "ma{a}[_,mb,_,_]000")
	assert.Contains(t, results[0], "mb{b}[_,_,_,ma]000")
}

func TestGenerateDeadEndsOnCycle(t *testing.T) {
	ma := newMod(t, "ma", "a")
	mb := newMod(t, "mb", "b")
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)

	r, err := recipe.New("loop", map[string][]string{"a": {"b"}, "b": {"a"}}, nil, grid.Right, 1)
	require.NoError(t, err)
	uni, err := layout.NewUniverse([]*grid.Module{ma, mb}, transportProto, []*recipe.Recipe{r})
	require.NoError(t, err)

	g := recipe.NewGraph([]*recipe.Recipe{r})
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	ch := Generate(ctx, g, []*grid.Module{ma, mb}, uni, rand.New(rand.NewSource(1)))

	var results []string
	for s := range ch {
		results = append(results, s)
	}
	assert.Empty(t, results)
}

func TestGenerateStopsWhenContextCanceled(t *testing.T) {
	ma := newMod(t, "ma", "a")
	mb := newMod(t, "mb", "a")
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)

	r, err := recipe.New("widget", map[string][]string{"a": nil}, nil, grid.Right, 1)
	require.NoError(t, err)
	uni, err := layout.NewUniverse([]*grid.Module{ma, mb}, transportProto, []*recipe.Recipe{r})
	require.NoError(t, err)

	g := recipe.NewGraph([]*recipe.Recipe{r})
	ctx, cancel := context.WithCancel(context.Background())
	ch := Generate(ctx, g, []*grid.Module{ma, mb}, uni, rand.New(rand.NewSource(1)))

	first := <-ch
	assert.NotEmpty(t, first)
	cancel()

	for range ch {
		// drain until the goroutine observes cancellation and closes ch.
	}
}
