package placer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/recipe"
)

func newMod(t *testing.T, id string) *grid.Module {
	t.Helper()
	m, err := grid.New(id, map[string]int{"w1": 1}, [4][4]int{}, 1, false)
	require.NoError(t, err)
	return m
}

func newUniverse(t *testing.T, modules ...*grid.Module) *layout.Universe {
	t.Helper()
	transportProto := grid.NewTransport("transport", [4][4]int{}, 1)
	u, err := layout.NewUniverse(modules, transportProto, []*recipe.Recipe{})
	require.NoError(t, err)
	return u
}

func TestConnectModuleListChainsConsecutivePairs(t *testing.T) {
	a, b, c := newMod(t, "a"), newMod(t, "b"), newMod(t, "c")
	ConnectModuleList([]*grid.Module{a, b, c}, grid.Right)

	assert.Equal(t, b, a.Right())
	assert.Equal(t, c, b.Right())
	assert.Equal(t, a, b.InLeft())
}

func TestPushUnderneathOpenEndedNoConflict(t *testing.T) {
	m1 := newMod(t, "m1")
	p1 := newMod(t, "p1")
	uni := newUniverse(t, m1, p1)
	uni.MainLine = []*grid.Module{m1}

	err := PushUnderneath(m1, []*grid.Module{p1}, nil, uni, grid.Down)
	require.NoError(t, err)

	assert.Equal(t, p1, m1.Down())
	assert.True(t, m1.IsStart)
	assert.False(t, p1.Shadowed)
}

func TestPushUnderneathCascadesAndMarksShadow(t *testing.T) {
	m1 := newMod(t, "m1")
	blocking := newMod(t, "blocking")
	p1 := newMod(t, "p1")
	m1.Set(grid.Down, blocking)

	uni := newUniverse(t, m1, blocking, p1)
	uni.MainLine = []*grid.Module{m1}

	err := PushUnderneath(m1, []*grid.Module{p1}, nil, uni, grid.Down)
	require.NoError(t, err)

	assert.Equal(t, p1, m1.Down())
	assert.Equal(t, blocking, p1.Down())
	assert.True(t, blocking.Shadowed)
	assert.False(t, p1.Shadowed)
}

func TestPushAroundPrefersUpOnTie(t *testing.T) {
	m1 := newMod(t, "m1")
	p1 := newMod(t, "p1")
	uni := newUniverse(t, m1, p1)

	err := PushAround(m1, []*grid.Module{p1}, nil, []*grid.Module{m1}, uni)
	require.NoError(t, err)

	// up_length=0 and down_length=0: the tie routes the branch up.
	assert.Equal(t, p1, m1.Up())
	assert.True(t, m1.Shadowed)
}

func TestPushAroundConnectsStartAndEndWithZeroLength(t *testing.T) {
	m1 := newMod(t, "m1")
	above := newMod(t, "above")
	p1 := newMod(t, "p1")
	m2 := newMod(t, "m2")
	m1.Set(grid.Up, above)

	uni := newUniverse(t, m1, above, p1, m2)

	err := PushAround(m1, []*grid.Module{p1}, m2, []*grid.Module{m1}, uni)
	require.NoError(t, err)

	// up_length=1, down_length=0: down is strictly shorter, so the detour
	// routes down with zero intermediate transports.
	assert.Equal(t, p1, m1.Down())
	assert.Equal(t, m2, p1.Up())
	assert.True(t, m1.IsStart)
	assert.True(t, m2.IsEnd)
	assert.True(t, m1.Shadowed)
}

func TestPushAroundRoutesThroughShorterObstructedSide(t *testing.T) {
	m1 := newMod(t, "m1")
	u1 := newMod(t, "u1") // one module already placed above m1
	d1 := newMod(t, "d1")
	d2 := newMod(t, "d2") // two modules already placed below m1
	p1 := newMod(t, "p1")
	m1.Set(grid.Up, u1)
	m1.Set(grid.Down, d1)
	d1.Set(grid.Down, d2)

	uni := newUniverse(t, m1, u1, d1, d2, p1)

	// up_length=1 (only u1), down_length=2 (d1,d2): up is strictly
	// shorter, so the branch routes up and reuses u1 rather than minting
	// a fresh transport.
	err := PushAround(m1, []*grid.Module{p1}, nil, []*grid.Module{m1}, uni)
	require.NoError(t, err)

	assert.Equal(t, u1, m1.Up())
	assert.Equal(t, p1, u1.Up())
	assert.True(t, m1.Shadowed)
}
