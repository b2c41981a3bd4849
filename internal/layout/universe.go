// Package layout implements the module universe and the canonical layout
// string codec: the content-addressable encoding used both to memoize
// oracle evaluations and to pass a decoded GridModel state between the
// search engine's move operators.
package layout

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/recipe"
	"github.com/mathiascj/gridforge/internal/strset"
)

// Universe is the non-global module registry spec.md §9 calls for in place
// of the original's process-wide id→module map: every module a run can
// place, the recipes it schedules, the transport pool, and the current
// main line. A Universe is mutated in place by Decode; callers must not
// hold on to *grid.Module values across a Decode call.
type Universe struct {
	AllModules map[string]*grid.Module
	Recipes    []*recipe.Recipe

	transportProto   *grid.Module
	transportModules []*grid.Module // all minted transports, in or out of the pool
	freeTransporters []*grid.Module // pooled, unused transports
	nextTransportID  int

	currentModules map[string]*grid.Module // placed modules by id, transports included
	MainLine       []*grid.Module
}

// NewUniverse validates module id uniqueness and constructs a Universe.
func NewUniverse(modules []*grid.Module, transportProto *grid.Module, recipes []*recipe.Recipe) (*Universe, error) {
	all := make(map[string]*grid.Module, len(modules))
	for _, m := range modules {
		if _, dup := all[m.ID]; dup {
			return nil, fmt.Errorf("layout: duplicate module id %q", m.ID)
		}
		all[m.ID] = m
	}
	if transportProto == nil {
		return nil, fmt.Errorf("layout: transport prototype module must not be nil")
	}
	return &Universe{
		AllModules:     all,
		Recipes:        recipes,
		transportProto: transportProto,
		currentModules: map[string]*grid.Module{},
	}, nil
}

// ResetModules wipes every module the universe knows about — all
// registered modules plus every minted transport — and clears placement
// bookkeeping. Decode always starts from here.
func (u *Universe) ResetModules() {
	for _, m := range u.AllModules {
		m.TotalWipe()
		m.ActiveWType = strset.New()
		m.Shadowed, m.IsStart, m.IsEnd = false, false, false
	}
	for _, t := range u.transportModules {
		t.TotalWipe()
		t.ActiveWType = strset.New()
		t.Shadowed, t.IsStart, t.IsEnd = false, false, false
	}
	u.currentModules = map[string]*grid.Module{}
	u.MainLine = nil
}

// TakeTransportModule returns a free transport from the pool, or mints a
// fresh one from the prototype if the pool is empty.
func (u *Universe) TakeTransportModule() *grid.Module {
	if n := len(u.freeTransporters); n > 0 {
		t := u.freeTransporters[n-1]
		u.freeTransporters = u.freeTransporters[:n-1]
		return t
	}
	id := fmt.Sprintf("transporter%d", u.nextTransportID)
	u.nextTransportID++
	t := u.transportProto.Clone(id)
	u.transportModules = append(u.transportModules, t)
	return t
}

// FreeTransportModule totally wipes t, removes it from the current-modules
// set if present, and returns it to the pool. A second call on an already
// freed transport is a no-op.
func (u *Universe) FreeTransportModule(t *grid.Module) {
	if _, present := u.currentModules[t.ID]; present {
		delete(u.currentModules, t.ID)
	}
	for _, free := range u.freeTransporters {
		if free == t {
			return
		}
	}
	t.TotalWipe()
	t.ActiveWType = strset.New()
	t.Shadowed, t.IsStart, t.IsEnd = false, false, false
	u.freeTransporters = append(u.freeTransporters, t)
}

// CurrentModules returns the placed modules, placed transports included,
// that the universe currently considers part of the layout.
func (u *Universe) CurrentModules() []*grid.Module {
	out := make([]*grid.Module, 0, len(u.currentModules))
	for _, m := range u.currentModules {
		out = append(out, m)
	}
	return out
}

// TransportModules returns every transport instance ever minted, whether
// currently placed or sitting free in the pool — used by the parallelize
// move to exclude fungible transports from the candidate pool it searches
// for genuine work-capable replacements.
func (u *Universe) TransportModules() []*grid.Module {
	return append([]*grid.Module(nil), u.transportModules...)
}

// FreeModules returns every registered module not currently placed.
func (u *Universe) FreeModules() []*grid.Module {
	var out []*grid.Module
	for id, m := range u.AllModules {
		if _, placed := u.currentModules[id]; !placed {
			out = append(out, m)
		}
	}
	return out
}

// markPlaced records every module in mods as current.
func (u *Universe) markPlaced(mods []*grid.Module) {
	for _, m := range mods {
		u.currentModules[m.ID] = m
	}
}

// MarkPlaced records every module in mods as part of the current layout, so
// it appears in Encode's module section. The placer and moves packages call
// this for every module a path-placement touches — freshly minted
// transports, branch anchors, cascaded lines — mirroring the original's
// explicit csh.current_modules += [...] bookkeeping after push_underneath
// and push_around.
func (u *Universe) MarkPlaced(mods ...*grid.Module) {
	u.markPlaced(mods)
}

// PlaceMainLine records mods as the current main line and marks every one
// of them as placed. Used by the seed generator once a linear setup
// reaches its base case.
func (u *Universe) PlaceMainLine(mods []*grid.Module) {
	u.MainLine = mods
	u.markPlaced(mods)
}

// UpdateActiveWorks is reserved for future oracle-feedback integration into
// main-line state. It intentionally does nothing, mirroring the original
// config_string_handler.py's empty update_active_works hook.
func (u *Universe) UpdateActiveWorks(worked map[string]strset.Set) {}

// SetActiveWork assigns each module named in worked its active work-type
// set, replacing any value it already had.
func (u *Universe) SetActiveWork(worked map[string]strset.Set) {
	for id, w := range worked {
		if m, ok := u.AllModules[id]; ok {
			m.ActiveWType = w.Copy()
		}
	}
}

// GridConflicts builds the grid rooted at the first main-line module and
// returns any positions occupied by more than one module. A nil result
// with a non-nil error means the embedding itself could not be built (a
// module reached at two different positions); a non-nil, non-empty map
// means two distinct modules collided at one position.
func (u *Universe) GridConflicts() (map[grid.Point][]*grid.Module, error) {
	if len(u.MainLine) == 0 {
		return nil, nil
	}
	positions, err := grid.MakeGrid(u.MainLine[0])
	if err != nil {
		return nil, err
	}
	return grid.GridConflicts(positions), nil
}

// FindLines partitions the placed, non-transport modules into the main
// line and its up/down parallel lines, classifying each non-main line by
// the sign of its grid position relative to the main line's row. Ties (a
// line whose first module sits on the main line's own row) are classified up.
func (u *Universe) FindLines() (main []*grid.Module, up, down [][]*grid.Module, err error) {
	main = u.MainLine
	if len(main) == 0 {
		return nil, nil, nil, nil
	}
	positions, err := grid.MakeGrid(main[0])
	if err != nil {
		return nil, nil, nil, err
	}
	onMain := make(map[string]bool, len(main))
	for _, m := range main {
		onMain[m.ID] = true
	}

	visited := map[string]bool{}
	var upLines, downLines [][]*grid.Module
	for _, m := range u.CurrentModules() {
		if m.Transport || onMain[m.ID] || visited[m.ID] {
			continue
		}
		line := m.GetLine()
		for _, lm := range line {
			visited[lm.ID] = true
		}
		if len(line) == 0 {
			continue
		}
		if positions[line[0]].Y >= 0 {
			upLines = append(upLines, line)
		} else {
			downLines = append(downLines, line)
		}
	}
	return main, upLines, downLines, nil
}

// SwapModules exchanges m0 and m1 in place: every link and back-reference
// that pointed at one now points at the other, active work is swapped,
// current-module bookkeeping is updated, any recipe whose start module was
// m0 or m1 is repointed, and the main line is rewritten in place.
func (u *Universe) SwapModules(m0, m1 *grid.Module) error {
	var links0, links1 [4]*grid.Module
	for _, d := range grid.Directions {
		links0[d] = m0.Get(d)
		links1[d] = m1.Get(d)
	}

	detach := func(m *grid.Module) {
		for _, d := range grid.Directions {
			m.Set(d, nil)
		}
	}
	detach(m0)
	detach(m1)

	relink := func(target *grid.Module, links [4]*grid.Module, other0, other1 *grid.Module) {
		for _, d := range grid.Directions {
			n := links[d]
			if n == nil {
				continue
			}
			if n == other0 {
				n = other1
			} else if n == other1 {
				n = other0
			}
			target.Set(d, n)
		}
	}
	relink(m1, links0, m0, m1)
	relink(m0, links1, m0, m1)

	m0.ActiveWType, m1.ActiveWType = m1.ActiveWType, m0.ActiveWType
	m0.Shadowed, m1.Shadowed = m1.Shadowed, m0.Shadowed
	m0.IsStart, m1.IsStart = m1.IsStart, m0.IsStart
	m0.IsEnd, m1.IsEnd = m1.IsEnd, m0.IsEnd

	_, placed0 := u.currentModules[m0.ID]
	_, placed1 := u.currentModules[m1.ID]
	if placed0 && !placed1 {
		delete(u.currentModules, m0.ID)
		u.currentModules[m1.ID] = m1
	} else if placed1 && !placed0 {
		delete(u.currentModules, m1.ID)
		u.currentModules[m0.ID] = m0
	}

	for _, r := range u.Recipes {
		if r.StartModule == m0 {
			r.StartModule = m1
		} else if r.StartModule == m1 {
			r.StartModule = m0
		}
	}

	for i, m := range u.MainLine {
		if m == m0 {
			u.MainLine[i] = m1
		} else if m == m1 {
			u.MainLine[i] = m0
		}
	}
	return nil
}

// Encode renders the current layout as its canonical string. It fails if
// no modules are currently placed.
func (u *Universe) Encode() (string, error) {
	if len(u.currentModules) == 0 {
		return "", fmt.Errorf("layout: cannot encode an empty layout")
	}

	recipeParts := make([]string, 0, len(u.Recipes))
	for _, r := range u.Recipes {
		recipeParts = append(recipeParts, r.String())
	}

	ids := make([]string, 0, len(u.currentModules))
	for id := range u.currentModules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	moduleParts := make([]string, 0, len(ids))
	for _, id := range ids {
		moduleParts = append(moduleParts, u.currentModules[id].EncodeString())
	}

	mainLineIDs := make([]string, 0, len(u.MainLine))
	for _, m := range u.MainLine {
		mainLineIDs = append(mainLineIDs, m.ID)
	}

	return fmt.Sprintf("%s | %s | %s",
		strings.Join(recipeParts, "$"),
		strings.Join(moduleParts, ":"),
		strings.Join(mainLineIDs, ",")), nil
}

// Decode resets every module in the universe, then rebuilds placement from
// s: recipe start modules/directions, each placed module's links, active
// work, and booleans, and the main line. It returns a decode error if s is
// malformed or names an unknown module id.
func (u *Universe) Decode(s string) error {
	sections := strings.Split(s, " | ")
	if len(sections) != 3 {
		return fmt.Errorf("layout: decode error: expected 3 sections separated by \" | \", got %d", len(sections))
	}
	recipeSec, moduleSec, mainLineSec := sections[0], sections[1], sections[2]

	u.ResetModules()

	if err := u.decodeRecipes(recipeSec); err != nil {
		return err
	}
	if err := u.decodeModules(moduleSec); err != nil {
		return err
	}
	return u.decodeMainLine(mainLineSec)
}

func (u *Universe) decodeRecipes(sec string) error {
	if sec == "" {
		return nil
	}
	byName := make(map[string]*recipe.Recipe, len(u.Recipes))
	for _, r := range u.Recipes {
		byName[r.Name] = r
	}
	for _, part := range strings.Split(sec, "$") {
		name, modID, dirStr, err := parseRecipeString(part)
		if err != nil {
			return err
		}
		r, ok := byName[name]
		if !ok {
			return fmt.Errorf("layout: decode error: unknown recipe %q", name)
		}
		dir, err := grid.ParseDirection(dirStr)
		if err != nil {
			return fmt.Errorf("layout: decode error: recipe %q: %w", name, err)
		}
		if modID == "_" {
			r.StartModule = nil
		} else {
			m, ok := u.AllModules[modID]
			if !ok {
				return fmt.Errorf("layout: decode error: recipe %q names unknown start module %q", name, modID)
			}
			r.StartModule = m
		}
		r.StartDir = dir
	}
	return nil
}

func parseRecipeString(s string) (name, modID, dir string, err error) {
	at := strings.Index(s, "@")
	amp := strings.LastIndex(s, "&")
	if at < 0 || amp < 0 || amp < at {
		return "", "", "", fmt.Errorf("layout: decode error: malformed recipe string %q", s)
	}
	return s[:at], s[at+1 : amp], s[amp+1:], nil
}

func (u *Universe) decodeModules(sec string) error {
	if sec == "" {
		return nil
	}
	type pending struct {
		mod           *grid.Module
		neighborIDs   [4]string
		activeWork    []string
		shadowed      bool
		isStart       bool
		isEnd         bool
	}
	var pendings []pending

	for _, part := range strings.Split(sec, ":") {
		id, activeWork, neighborIDs, flags, err := parseModuleString(part)
		if err != nil {
			return err
		}
		mod, err := u.resolveOrMintModule(id)
		if err != nil {
			return err
		}
		shadowed, isStart, isEnd, err := grid.ParseBoolDigits(flags)
		if err != nil {
			return fmt.Errorf("layout: decode error: module %q: %w", id, err)
		}
		pendings = append(pendings, pending{mod, neighborIDs, activeWork, shadowed, isStart, isEnd})
	}

	for _, p := range pendings {
		p.mod.ActiveWType = strset.New(p.activeWork...)
		p.mod.Shadowed = p.shadowed
		p.mod.IsStart = p.isStart
		p.mod.IsEnd = p.isEnd
		u.currentModules[p.mod.ID] = p.mod
	}
	for _, p := range pendings {
		for _, d := range grid.Directions {
			nid := p.neighborIDs[d]
			if nid == "_" {
				continue
			}
			n, err := u.resolveOrMintModule(nid)
			if err != nil {
				return err
			}
			p.mod.Set(d, n)
		}
	}
	return nil
}

// resolveOrMintModule looks up a registered module, falling back to minting
// a synthetic transport when the id matches the transporterN pattern and
// isn't yet known — decode can reference transports created by a prior,
// now-discarded search state.
func (u *Universe) resolveOrMintModule(id string) (*grid.Module, error) {
	if m, ok := u.AllModules[id]; ok {
		return m, nil
	}
	for _, t := range u.transportModules {
		if t.ID == id {
			return t, nil
		}
	}
	if strings.HasPrefix(id, "transporter") {
		t := u.transportProto.Clone(id)
		u.transportModules = append(u.transportModules, t)
		if n, err := strconv.Atoi(strings.TrimPrefix(id, "transporter")); err == nil && n >= u.nextTransportID {
			u.nextTransportID = n + 1
		}
		return t, nil
	}
	return nil, fmt.Errorf("layout: decode error: unknown module id %q", id)
}

func parseModuleString(s string) (id string, activeWork []string, neighbors [4]string, flags string, err error) {
	open := strings.Index(s, "{")
	closeBrace := strings.Index(s, "}")
	lbrack := strings.Index(s, "[")
	rbrack := strings.Index(s, "]")
	if open < 0 || closeBrace < open || lbrack < closeBrace || rbrack < lbrack || rbrack+3 >= len(s) {
		return "", nil, neighbors, "", fmt.Errorf("layout: decode error: malformed module string %q", s)
	}
	id = s[:open]
	if id == "" {
		return "", nil, neighbors, "", fmt.Errorf("layout: decode error: malformed module string %q", s)
	}
	workStr := s[open+1 : closeBrace]
	if workStr != "" {
		activeWork = strings.Split(workStr, ",")
	}
	connStr := s[lbrack+1 : rbrack]
	parts := strings.Split(connStr, ",")
	if len(parts) != 4 {
		return "", nil, neighbors, "", fmt.Errorf("layout: decode error: module %q: expected 4 connections, got %d", id, len(parts))
	}
	for i := 0; i < 4; i++ {
		neighbors[i] = parts[i]
	}
	flags = s[rbrack+1:]
	return id, activeWork, neighbors, flags, nil
}

func (u *Universe) decodeMainLine(sec string) error {
	if sec == "" {
		u.MainLine = nil
		return nil
	}
	ids := strings.Split(sec, ",")
	u.MainLine = make([]*grid.Module, 0, len(ids))
	for _, id := range ids {
		m, ok := u.currentModules[id]
		if !ok {
			m, err := u.resolveOrMintModule(id)
			if err != nil {
				return fmt.Errorf("layout: decode error: main line names unknown module %q", id)
			}
			u.currentModules[id] = m
			u.MainLine = append(u.MainLine, m)
			continue
		}
		u.MainLine = append(u.MainLine, m)
	}
	return nil
}

// ModulesInConfig extracts the set of module ids named in the modules
// section of s without performing a full decode.
func ModulesInConfig(s string) (strset.Set, error) {
	sections := strings.Split(s, " | ")
	if len(sections) != 3 {
		return nil, fmt.Errorf("layout: decode error: expected 3 sections separated by \" | \", got %d", len(sections))
	}
	out := strset.New()
	if sections[1] == "" {
		return out, nil
	}
	for _, part := range strings.Split(sections[1], ":") {
		open := strings.Index(part, "{")
		if open < 0 {
			return nil, fmt.Errorf("layout: decode error: malformed module string %q", part)
		}
		out.Add(part[:open])
	}
	return out, nil
}

// ModulesNotInConfig returns every module id in universe not named by s's
// modules section.
func (u *Universe) ModulesNotInConfig(s string) (strset.Set, error) {
	in, err := ModulesInConfig(s)
	if err != nil {
		return nil, err
	}
	out := strset.New()
	for id := range u.AllModules {
		if !in.Has(id) {
			out.Add(id)
		}
	}
	return out, nil
}
