// Package grid implements the planar 4-neighbor module graph: modules as
// nodes with bidirectional up/right/down/left links, line traversal, and the
// grid embedding used to detect conflicting layouts before they ever reach
// the oracle.
package grid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mathiascj/gridforge/internal/strset"
)

// Direction is one of the four planar neighbor directions a Module links to.
type Direction int

const (
	Up Direction = iota
	Right
	Down
	Left
)

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	default:
		return "invalid"
	}
}

// Opposite returns the reverse direction, e.g. Up.Opposite() == Down.
func (d Direction) Opposite() Direction {
	switch d {
	case Up:
		return Down
	case Right:
		return Left
	case Down:
		return Up
	case Left:
		return Right
	default:
		return d
	}
}

// Directions lists the four directions in the canonical order used by the
// layout string grammar: up, right, down, left.
var Directions = [4]Direction{Up, Right, Down, Left}

// ParseDirection parses the String() form of a Direction back into its
// value, for decoding recipe strings.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up":
		return Up, nil
	case "right":
		return Right, nil
	case "down":
		return Down, nil
	case "left":
		return Left, nil
	default:
		return 0, fmt.Errorf("grid: invalid direction %q", s)
	}
}

// Module is a physical factory unit. It is identified by a globally-unique
// ID, can perform a set of work types, and — once placed — carries four
// directional outgoing links plus their back-reference inverses.
//
// A Module is a node in an arena (see layout.Universe), not an owning
// pointer graph: holding on to a *Module across a Universe decode is unsafe,
// since decode rewrites every module's links in place.
type Module struct {
	ID          string
	WType       strset.Set
	PTime       map[string]int
	TTime       [4][4]int
	QueueLength int
	Passthrough bool

	// Transport is true for the passthrough-only transport prototype and
	// its minted instances; transports have an empty WType.
	Transport bool

	links  [4]*Module // outgoing, indexed by Direction
	inRefs [4]*Module // back-references, indexed by Direction

	ActiveWType strset.Set
	Shadowed    bool
	IsStart     bool
	IsEnd       bool
}

// New constructs a Module. ttime must be a 4x4 transit-time matrix.
func New(id string, pTime map[string]int, tTime [4][4]int, queueLength int, passthrough bool) (*Module, error) {
	if id == "" {
		return nil, fmt.Errorf("grid: module id must not be empty")
	}
	wType := make(strset.Set, len(pTime))
	for w := range pTime {
		wType.Add(w)
	}
	return &Module{
		ID:          id,
		WType:       wType,
		PTime:       pTime,
		TTime:       tTime,
		QueueLength: queueLength,
		Passthrough: passthrough,
		ActiveWType: strset.New(),
	}, nil
}

// NewTransport constructs a transport module: empty work set, passthrough.
func NewTransport(id string, tTime [4][4]int, queueLength int) *Module {
	return &Module{
		ID:          id,
		WType:       strset.New(),
		PTime:       map[string]int{},
		TTime:       tTime,
		QueueLength: queueLength,
		Passthrough: true,
		Transport:   true,
		ActiveWType: strset.New(),
	}
}

// Clone returns a fresh module with the same capability profile but no
// links, active work, or boolean state — used to mint new transporter
// instances from the transport prototype.
func (m *Module) Clone(newID string) *Module {
	return &Module{
		ID:          newID,
		WType:       m.WType.Copy(),
		PTime:       m.PTime,
		TTime:       m.TTime,
		QueueLength: m.QueueLength,
		Passthrough: m.Passthrough,
		Transport:   m.Transport,
		ActiveWType: strset.New(),
	}
}

// Get returns the outgoing neighbor in direction d, or nil.
func (m *Module) Get(d Direction) *Module {
	return m.links[d]
}

// Set links m to n in direction d, maintaining the back-reference bijection:
// m.Set(Up, n) makes n.InRef(Down) == m, detaching whatever m.Get(Up) used
// to point to. This is the only place outgoing links should be written
// outside of Wipe, so every outgoing link has its matching back-reference.
func (m *Module) Set(d Direction, n *Module) {
	if old := m.links[d]; old != nil {
		old.inRefs[d.Opposite()] = nil
	}
	if n != nil {
		n.inRefs[d.Opposite()] = m
	}
	m.links[d] = n
}

// InRef returns the back-reference in direction d: InRef(Down) is the
// module whose Up link points at m, etc.
func (m *Module) InRef(d Direction) *Module {
	return m.inRefs[d]
}

func (m *Module) Up() *Module    { return m.links[Up] }
func (m *Module) Right() *Module { return m.links[Right] }
func (m *Module) Down() *Module  { return m.links[Down] }
func (m *Module) Left() *Module  { return m.links[Left] }

func (m *Module) InUp() *Module    { return m.inRefs[Up] }
func (m *Module) InRight() *Module { return m.inRefs[Right] }
func (m *Module) InDown() *Module  { return m.inRefs[Down] }
func (m *Module) InLeft() *Module  { return m.inRefs[Left] }

// Traverse walks outgoing links in direction d starting at m, stopping at
// end (inclusive) if non-nil, or at a null edge. Returns the visited
// sequence starting with m.
func (m *Module) Traverse(d Direction, end *Module) []*Module {
	cur := m
	mods := []*Module{m}
	for cur.Get(d) != nil && cur.Get(d) != end {
		cur = cur.Get(d)
		mods = append(mods, cur)
	}
	if end != nil {
		mods = append(mods, end)
	}
	return mods
}

// TraverseBySteps walks up to n steps in direction d, never past a null edge.
func (m *Module) TraverseBySteps(steps int, d Direction) []*Module {
	cur := m
	mods := []*Module{m}
	for cur.Get(d) != nil && steps > 0 {
		cur = cur.Get(d)
		mods = append(mods, cur)
		steps--
	}
	return mods
}

// TraverseRight is Traverse(Right, end).
func (m *Module) TraverseRight(end *Module) []*Module {
	return m.Traverse(Right, end)
}

// TraverseRightBySteps is TraverseBySteps(n, Right).
func (m *Module) TraverseRightBySteps(n int) []*Module {
	return m.TraverseBySteps(n, Right)
}

// TraverseInLeft is the inverse of TraverseRight: it walks back-references
// (InLeft) rather than outgoing Left links, then reverses the result so it
// reads left-to-right ending at m.
func (m *Module) TraverseInLeft(end *Module) []*Module {
	cur := m
	mods := []*Module{m}
	for cur.InLeft() != nil && cur.InLeft() != end {
		cur = cur.InLeft()
		mods = append(mods, cur)
	}
	if end != nil {
		mods = append(mods, end)
	}
	reverse(mods)
	return mods
}

// TraverseInLeftBySteps is the InLeft analogue of TraverseBySteps.
func (m *Module) TraverseInLeftBySteps(steps int) []*Module {
	cur := m
	mods := []*Module{m}
	for cur.InLeft() != nil && steps > 0 {
		cur = cur.InLeft()
		mods = append(mods, cur)
		steps--
	}
	reverse(mods)
	return mods
}

func reverse(mods []*Module) {
	for i, j := 0, len(mods)-1; i < j; i, j = i+1, j-1 {
		mods[i], mods[j] = mods[j], mods[i]
	}
}

// GetLine returns the full horizontal line containing m: everything
// reachable by walking left then right, with m appearing exactly once.
func (m *Module) GetLine() []*Module {
	onLeft := m.TraverseInLeft(nil)
	onLeft = onLeft[:len(onLeft)-1] // drop m itself, re-added by onRight
	onRight := m.TraverseRight(nil)
	line := make([]*Module, 0, len(onLeft)+len(onRight))
	line = append(line, onLeft...)
	line = append(line, onRight...)
	return line
}

// FindConnectedModules returns the undirected transitive closure of m over
// both outgoing links and back-references: every module reachable from m by
// crossing any of the eight pointer fields.
func (m *Module) FindConnectedModules() []*Module {
	visited := map[*Module]bool{}
	queue := []*Module{m}
	visited[m] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		neighbors := []*Module{cur.Up(), cur.Right(), cur.Down(), cur.Left(), cur.InUp(), cur.InRight(), cur.InDown(), cur.InLeft()}
		for _, n := range neighbors {
			if n != nil && !visited[n] {
				visited[n] = true
				queue = append(queue, n)
			}
		}
	}
	out := make([]*Module, 0, len(visited))
	for mod := range visited {
		out = append(out, mod)
	}
	return out
}

// Point is a grid coordinate: X increases rightward, Y increases upward.
type Point struct {
	X, Y int
}

func (p Point) add(dx, dy int) Point {
	return Point{p.X + dx, p.Y + dy}
}

var deltas = map[Direction]struct{ dx, dy int }{
	Up:    {0, 1},
	Right: {1, 0},
	Down:  {0, -1},
	Left:  {-1, 0},
}

// MakeGrid assigns a grid position to every module reachable from root,
// following the axis rule of the grid embedding invariant (M.up = N implies
// pos(N) = pos(M) + (0,+1), etc.), root itself at the origin. It is a DFS
// over both outgoing links and back-references, so the whole connected
// component receives positions regardless of link direction.
//
// It returns an error if the same module would be assigned two different
// positions by two different paths through the graph — the GridModel
// conflict spec.md calls out as "never a steady state". It does not detect
// two distinct modules sharing one position; see GridConflicts for that.
func MakeGrid(root *Module) (map[*Module]Point, error) {
	positions := map[*Module]Point{root: {0, 0}}
	type frame struct {
		mod *Module
		pos Point
	}
	stack := []frame{{root, Point{0, 0}}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, d := range Directions {
			if n := f.mod.Get(d); n != nil {
				delta := deltas[d]
				want := f.pos.add(delta.dx, delta.dy)
				if got, ok := positions[n]; ok {
					if got != want {
						return nil, fmt.Errorf("grid: module %q reached at conflicting positions %v and %v", n.ID, got, want)
					}
					continue
				}
				positions[n] = want
				stack = append(stack, frame{n, want})
			}
			if n := f.mod.InRef(d); n != nil {
				// InRef(d) is the module whose d.Opposite() link points at
				// f.mod (n.Set(d.Opposite(), f.mod)), so n sits one step in
				// direction d from f.mod, i.e. at f.pos + delta(d).
				delta := deltas[d]
				want := f.pos.add(delta.dx, delta.dy)
				if got, ok := positions[n]; ok {
					if got != want {
						return nil, fmt.Errorf("grid: module %q reached at conflicting positions %v and %v", n.ID, got, want)
					}
					continue
				}
				positions[n] = want
				stack = append(stack, frame{n, want})
			}
		}
	}
	return positions, nil
}

// GridConflicts inverts a grid map and returns the modules that share a
// position with at least one other module — positions mapped to by more
// than one module.
func GridConflicts(positions map[*Module]Point) map[Point][]*Module {
	byPos := map[Point][]*Module{}
	for m, p := range positions {
		byPos[p] = append(byPos[p], m)
	}
	conflicts := map[Point][]*Module{}
	for p, mods := range byPos {
		if len(mods) > 1 {
			conflicts[p] = mods
		}
	}
	return conflicts
}

// CanConnect reports whether m can take on a neighbor at relative offset
// delta from its position in the embedding rooted at self: either a
// module is already there and it is m, or nothing occupies that position.
func CanConnect(self, m *Module, delta Point) (bool, error) {
	positions, err := MakeGrid(self)
	if err != nil {
		return false, err
	}
	selfPos, ok := positions[self]
	if !ok {
		return false, fmt.Errorf("grid: root module %q missing from its own grid", self.ID)
	}
	want := selfPos.add(delta.X, delta.Y)
	for mod, pos := range positions {
		if pos == want {
			return mod == m, nil
		}
	}
	return true, nil
}

// HorizontalWipe clears m's left/right links and their back-references
// without touching the partner module's pointer back at m — mirroring the
// original's direct-field clear. Safe only because decode wipes every
// module in the universe before rebuilding links.
func (m *Module) HorizontalWipe() {
	m.links[Right] = nil
	m.inRefs[Right] = nil
	m.links[Left] = nil
	m.inRefs[Left] = nil
}

// VerticalWipe is HorizontalWipe's up/down counterpart.
func (m *Module) VerticalWipe() {
	m.links[Up] = nil
	m.inRefs[Up] = nil
	m.links[Down] = nil
	m.inRefs[Down] = nil
}

// TotalWipe clears all four outgoing links and all four back-references.
func (m *Module) TotalWipe() {
	m.HorizontalWipe()
	m.VerticalWipe()
}

// EncodeString renders m's per-module grammar fragment:
//
//	m_id{w1,w2,...}[up,right,down,left]sse
//
// with active work types sorted and each directional slot either a module
// id or "_". This is the building block LayoutCodec assembles into the full
// canonical layout string.
func (m *Module) EncodeString() string {
	var b strings.Builder
	b.WriteString(m.ID)
	b.WriteByte('{')
	b.WriteString(strings.Join(m.ActiveWType.Sorted(), ","))
	b.WriteByte('}')
	b.WriteByte('[')
	for i, d := range Directions {
		if i > 0 {
			b.WriteByte(',')
		}
		if n := m.Get(d); n != nil {
			b.WriteString(n.ID)
		} else {
			b.WriteByte('_')
		}
	}
	b.WriteByte(']')
	b.WriteString(boolDigit(m.Shadowed))
	b.WriteString(boolDigit(m.IsStart))
	b.WriteString(boolDigit(m.IsEnd))
	return b.String()
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// ParseBoolDigits parses a 3-character "sse" string into shadowed, isStart,
// isEnd. Returns an error if s is not exactly three '0'/'1' characters.
func ParseBoolDigits(s string) (shadowed, isStart, isEnd bool, err error) {
	if len(s) != 3 {
		return false, false, false, fmt.Errorf("grid: expected 3 boolean digits, got %q", s)
	}
	bits := make([]bool, 3)
	for i := 0; i < 3; i++ {
		n, convErr := strconv.Atoi(string(s[i]))
		if convErr != nil || (n != 0 && n != 1) {
			return false, false, false, fmt.Errorf("grid: invalid boolean digit %q in %q", string(s[i]), s)
		}
		bits[i] = n == 1
	}
	return bits[0], bits[1], bits[2], nil
}
