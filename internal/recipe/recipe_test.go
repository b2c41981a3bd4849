package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiascj/gridforge/internal/grid"
)

func TestNewRejectsEmptyName(t *testing.T) {
	_, err := New("", map[string][]string{"w1": nil}, nil, grid.Right, 1)
	assert.Error(t, err)
}

func TestNewRejectsNonPositiveAmount(t *testing.T) {
	_, err := New("r1", map[string][]string{"w1": nil}, nil, grid.Right, 0)
	assert.Error(t, err)
}

func TestRecipeString(t *testing.T) {
	m, err := grid.New("m1", map[string]int{"w1": 1}, [4][4]int{}, 1, false)
	require.NoError(t, err)
	r, err := New("widget", map[string][]string{"w1": nil}, m, grid.Right, 1)
	require.NoError(t, err)

	assert.Equal(t, "widget@m1&right", r.String())
}

func TestWorkTypesIncludesDependencies(t *testing.T) {
	r, err := New("widget", map[string][]string{"w2": {"w1"}, "w1": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"w1", "w2"}, r.WorkTypes())
}

func TestGraphTopNodesHaveNoDependencies(t *testing.T) {
	r, err := New("widget", map[string][]string{"w3": {"w2"}, "w2": {"w1"}, "w1": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	g := NewGraph([]*Recipe{r})
	assert.Equal(t, []string{"w1"}, g.TopNodes())
}

func TestGraphTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	r, err := New("widget", map[string][]string{"w3": {"w2"}, "w2": {"w1"}, "w1": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	g := NewGraph([]*Recipe{r})
	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"w1", "w2", "w3"}, order)
}

func TestGraphTopologicalSortDetectsCycle(t *testing.T) {
	r, err := New("loop", map[string][]string{"w1": {"w2"}, "w2": {"w1"}}, nil, grid.Right, 1)
	require.NoError(t, err)

	g := NewGraph([]*Recipe{r})
	_, err = g.TopologicalSort()
	assert.Error(t, err)
}

func TestGraphRemoveConsumesTopNode(t *testing.T) {
	r, err := New("widget", map[string][]string{"w2": {"w1"}, "w1": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	g := NewGraph([]*Recipe{r})
	assert.Equal(t, []string{"w1"}, g.TopNodes())

	g.Remove("w1")
	assert.Equal(t, []string{"w2"}, g.TopNodes())
	assert.False(t, g.Empty())

	g.Remove("w2")
	assert.True(t, g.Empty())
}

func TestGraphStartsForPreservedAcrossComposition(t *testing.T) {
	r1, err := New("widget", map[string][]string{"w1": nil}, nil, grid.Right, 1)
	require.NoError(t, err)
	r2, err := New("gadget", map[string][]string{"w1": nil, "w2": {"w1"}}, nil, grid.Right, 1)
	require.NoError(t, err)

	g := NewGraph([]*Recipe{r1, r2})
	starts := g.StartsFor("w1")
	assert.ElementsMatch(t, []string{"widget", "gadget"}, starts)
}

func TestGraphCloneIsIndependent(t *testing.T) {
	r, err := New("widget", map[string][]string{"w2": {"w1"}, "w1": nil}, nil, grid.Right, 1)
	require.NoError(t, err)

	g := NewGraph([]*Recipe{r})
	clone := g.Clone()
	clone.Remove("w1")

	assert.Equal(t, []string{"w1"}, g.TopNodes())
	assert.Equal(t, []string{"w2"}, clone.TopNodes())
}
