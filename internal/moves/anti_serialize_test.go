package moves

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/recipe"
	"github.com/mathiascj/gridforge/internal/strset"
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

func newUniverse(t *testing.T, recipes []*recipe.Recipe, modules ...*grid.Module) *layout.Universe {
	t.Helper()
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)
	u, err := layout.NewUniverse(modules, transportProto, recipes)
	require.NoError(t, err)
	return u
}

func TestAntiSerializeOpenEndedPullsPathAside(t *testing.T) {
	s := newMod(t, "s", "w")
	keep1 := newMod(t, "keep1", "w")
	pa1 := newMod(t, "pa1", "w")
	pa2 := newMod(t, "pa2", "w")
	s.Set(grid.Right, keep1)
	keep1.Set(grid.Right, pa1)
	pa1.Set(grid.Right, pa2)

	uni := newUniverse(t, nil, s, keep1, pa1, pa2)
	uni.PlaceMainLine([]*grid.Module{s, keep1, pa1, pa2})

	out, err := AntiSerialize(uni, s, []*grid.Module{pa1, pa2}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	assert.Equal(t, keep1, s.Right())
	assert.Equal(t, pa1, s.Up())
	assert.Equal(t, pa2, pa1.Right())
	assert.True(t, s.IsStart)
	assert.True(t, s.Shadowed)
	assert.True(t, keep1.Shadowed)
	assert.Equal(t, []*grid.Module{s, keep1}, uni.MainLine)
}

func TestAntiSerializeBothBoundariesReconnectsAroundShadowedPath(t *testing.T) {
	s := newMod(t, "s", "w")
	mid := newMod(t, "mid", "w")
	pa1 := newMod(t, "pa1", "w")
	pa2 := newMod(t, "pa2", "w")
	s.Set(grid.Right, pa1)
	pa1.Set(grid.Right, pa2)
	pa2.Set(grid.Right, mid)

	uni := newUniverse(t, nil, s, mid, pa1, pa2)
	uni.PlaceMainLine([]*grid.Module{s, pa1, pa2, mid})

	out, err := AntiSerialize(uni, s, []*grid.Module{pa1, pa2}, mid)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	assert.Equal(t, mid, s.Right())
	assert.Equal(t, pa1, s.Up())
	assert.Equal(t, pa2, pa1.Right())
	assert.Equal(t, mid, pa2.Down())
	assert.True(t, s.IsStart)
	assert.True(t, mid.IsEnd)
	assert.True(t, s.Shadowed)
	assert.True(t, mid.Shadowed)
}

// TestAntiSerializeBothBoundariesKeepsRealEndWhenPathLongerThanRemaining
// pins the boundary-reconciliation fix: when path is longer than the
// remaining main-line segment, the true cut-point module must become the
// new end, not a freshly minted transport picked up while padding.
func TestAntiSerializeBothBoundariesKeepsRealEndWhenPathLongerThanRemaining(t *testing.T) {
	s := newMod(t, "s", "w")
	e := newMod(t, "e", "w")
	p1 := newMod(t, "p1", "w")
	p2 := newMod(t, "p2", "w")
	p3 := newMod(t, "p3", "w")
	s.Set(grid.Right, e)

	uni := newUniverse(t, nil, s, e, p1, p2, p3)
	uni.PlaceMainLine([]*grid.Module{s, e})

	out, err := AntiSerialize(uni, s, []*grid.Module{p1, p2, p3}, e)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	assert.True(t, e.IsEnd)
	require.NotEmpty(t, uni.MainLine)
	assert.Same(t, e, uni.MainLine[len(uni.MainLine)-1])
}

// TestAntiSerializeBothBoundariesPadsPathWhenRemainingIsLonger covers the
// other side of the same fix: when remaining is longer than path, path
// (not remaining) is padded with transports, and the real end module is
// still extracted from remaining rather than replaced.
func TestAntiSerializeBothBoundariesPadsPathWhenRemainingIsLonger(t *testing.T) {
	s := newMod(t, "s", "w")
	k1 := newMod(t, "k1", "w")
	k2 := newMod(t, "k2", "w")
	p1 := newMod(t, "p1", "w")
	e := newMod(t, "e", "w")
	s.Set(grid.Right, k1)
	k1.Set(grid.Right, k2)
	k2.Set(grid.Right, p1)
	p1.Set(grid.Right, e)

	uni := newUniverse(t, nil, s, k1, k2, p1, e)
	uni.PlaceMainLine([]*grid.Module{s, k1, k2, p1, e})

	out, err := AntiSerialize(uni, s, []*grid.Module{p1}, e)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	assert.True(t, e.IsEnd)
	require.NotEmpty(t, uni.MainLine)
	assert.Same(t, e, uni.MainLine[len(uni.MainLine)-1])
}

func TestAntiSerializeRequiresStartOrEnd(t *testing.T) {
	p1 := newMod(t, "p1", "w")
	uni := newUniverse(t, nil, p1)
	_, err := AntiSerialize(uni, nil, []*grid.Module{p1}, nil)
	assert.Error(t, err)
}

func TestNeighboursAntiSerializedExtractsOnePureRecipeSegment(t *testing.T) {
	s := newMod(t, "s")
	s.ActiveWType = strset.New("a", "b")
	pa1 := newMod(t, "pa1")
	pa1.ActiveWType = strset.New("a")
	pa2 := newMod(t, "pa2")
	pa2.ActiveWType = strset.New("a")
	mid := newMod(t, "mid")
	mid.ActiveWType = strset.New("a", "b")
	pb1 := newMod(t, "pb1")
	pb1.ActiveWType = strset.New("b")
	pb2 := newMod(t, "pb2")
	pb2.ActiveWType = strset.New("b")
	e := newMod(t, "e")
	e.ActiveWType = strset.New("a", "b")

	chain := []*grid.Module{s, pa1, pa2, mid, pb1, pb2, e}
	for i := 0; i+1 < len(chain); i++ {
		chain[i].Set(grid.Right, chain[i+1])
	}

	recipeA, err := recipe.New("a-widget", map[string][]string{"a": nil}, nil, grid.Right, 1)
	require.NoError(t, err)
	recipeB, err := recipe.New("b-widget", map[string][]string{"b": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	uni := newUniverse(t, []*recipe.Recipe{recipeA, recipeB}, chain...)
	uni.PlaceMainLine(chain)

	frontier, err := uni.Encode()
	require.NoError(t, err)

	active := map[string]strset.Set{}
	for _, m := range chain {
		active[m.ID] = m.ActiveWType.Copy()
	}

	results, err := NeighboursAntiSerialized(uni, frontier, active, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestAnchoredDetectsStartOrEndModuleInPath(t *testing.T) {
	plain := newMod(t, "plain", "w")
	anchor := newMod(t, "anchor", "w")
	anchor.IsStart = true

	assert.False(t, anchored([]*grid.Module{plain}))
	assert.True(t, anchored([]*grid.Module{plain, anchor}))
}
