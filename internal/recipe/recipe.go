// Package recipe models the work-type dependency graphs ("recipes") that
// the search engine schedules onto a layout: a Recipe names, for each work
// type it needs done, the set of work types that must complete first.
package recipe

import (
	"fmt"
	"sort"

	"github.com/mathiascj/gridforge/internal/grid"
)

// Recipe is a named dependency map over work types, plus the module and
// direction its first unit of work enters the layout from.
type Recipe struct {
	Name         string
	Dependencies map[string][]string // work type -> its direct dependencies
	StartModule  *grid.Module
	StartDir     grid.Direction
	Amount       int
}

// New validates and constructs a Recipe. dependencies maps each work type to
// the work types it directly depends on; a work type with no entry is
// treated as having no dependencies.
func New(name string, dependencies map[string][]string, startModule *grid.Module, startDir grid.Direction, amount int) (*Recipe, error) {
	if name == "" {
		return nil, fmt.Errorf("recipe: name must not be empty")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("recipe: amount must be positive, got %d", amount)
	}
	return &Recipe{
		Name:         name,
		Dependencies: dependencies,
		StartModule:  startModule,
		StartDir:     startDir,
		Amount:       amount,
	}, nil
}

// WorkTypes returns every work type this recipe mentions, either as a key
// or as a dependency value, sorted.
func (r *Recipe) WorkTypes() []string {
	seen := map[string]struct{}{}
	for w, deps := range r.Dependencies {
		seen[w] = struct{}{}
		for _, d := range deps {
			seen[d] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for w := range seen {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Keys returns the work types that are keys of r's dependency map — the
// recipe's own vocabulary, as opposed to WorkTypes which also includes
// work types mentioned only as a dependency value.
func (r *Recipe) Keys() []string {
	out := make([]string, 0, len(r.Dependencies))
	for w := range r.Dependencies {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// String renders the recipe's identity as "name@start_module&start_dir",
// matching the original's recipe_str() grammar.
func (r *Recipe) String() string {
	startID := "_"
	if r.StartModule != nil {
		startID = r.StartModule.ID
	}
	return fmt.Sprintf("%s@%s&%s", r.Name, startID, r.StartDir)
}

// Graph is a composed dependency graph over work-type nodes, built from one
// or more Recipes sharing a work-type vocabulary. An edge points from a
// work type to its dependency, so a node with no outgoing edges ("top
// node") has every dependency satisfied and is ready to perform.
//
// Graph also tracks, per node, the set of recipe names for which that node
// is the entry point (the original's "starts" node attribute), so that
// composing several recipes' graphs together never loses which recipes
// start where.
type Graph struct {
	nodes map[string]struct{}
	edges map[string]map[string]struct{} // work -> its dependencies
	starts map[string]map[string]struct{} // work -> recipe names entering here
}

// NewGraph composes a Graph from a set of recipes. Later recipes in the
// slice take precedence on shared edges (mirroring networkx's compose,
// where the later graph's attributes win), but every recipe's start
// annotation is preserved regardless of composition order.
func NewGraph(recipes []*Recipe) *Graph {
	g := &Graph{
		nodes:  map[string]struct{}{},
		edges:  map[string]map[string]struct{}{},
		starts: map[string]map[string]struct{}{},
	}
	for _, r := range recipes {
		g.addRecipe(r)
	}
	return g
}

func (g *Graph) addRecipe(r *Recipe) {
	entry := entryWorkType(r)
	for w, deps := range r.Dependencies {
		g.nodes[w] = struct{}{}
		if g.edges[w] == nil {
			g.edges[w] = map[string]struct{}{}
		}
		for _, d := range deps {
			g.nodes[d] = struct{}{}
			g.edges[w][d] = struct{}{}
		}
	}
	if entry != "" {
		g.nodes[entry] = struct{}{}
		if g.starts[entry] == nil {
			g.starts[entry] = map[string]struct{}{}
		}
		g.starts[entry][r.Name] = struct{}{}
	}
}

// entryWorkType picks the recipe's entry node: the work type that depends
// on nothing else within its own recipe's dependency map. Recipes are
// expected to name exactly one such root.
func entryWorkType(r *Recipe) string {
	hasDeps := map[string]bool{}
	for w, deps := range r.Dependencies {
		if len(deps) > 0 {
			hasDeps[w] = true
		}
	}
	for _, w := range r.WorkTypes() {
		if _, isKey := r.Dependencies[w]; isKey && !hasDeps[w] {
			return w
		}
	}
	return ""
}

// Nodes returns every work type in the graph, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Dependencies returns the direct dependencies of a work type, sorted.
func (g *Graph) Dependencies(workType string) []string {
	deps := g.edges[workType]
	out := make([]string, 0, len(deps))
	for d := range deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// StartsFor returns the set of recipe names whose entry point is workType.
func (g *Graph) StartsFor(workType string) []string {
	starts := g.starts[workType]
	out := make([]string, 0, len(starts))
	for name := range starts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TopNodes returns every work type with no outgoing edges: no unmet
// dependency, and therefore ready to be performed.
func (g *Graph) TopNodes() []string {
	var out []string
	for n := range g.nodes {
		if len(g.edges[n]) == 0 {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Remove deletes a work type from the graph: the node itself, its outgoing
// edges, and any incoming edge that named it as a dependency. Used by the
// seed generator to consume top nodes as work is scheduled.
func (g *Graph) Remove(workType string) {
	delete(g.nodes, workType)
	delete(g.edges, workType)
	delete(g.starts, workType)
	for n, deps := range g.edges {
		delete(deps, workType)
		_ = n
	}
}

// Empty reports whether the graph has no remaining work types.
func (g *Graph) Empty() bool {
	return len(g.nodes) == 0
}

// Clone returns a deep copy of g, safe to mutate independently — used by
// the seed generator to branch without disturbing sibling branches.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		nodes:  make(map[string]struct{}, len(g.nodes)),
		edges:  make(map[string]map[string]struct{}, len(g.edges)),
		starts: make(map[string]map[string]struct{}, len(g.starts)),
	}
	for n := range g.nodes {
		out.nodes[n] = struct{}{}
	}
	for n, deps := range g.edges {
		cp := make(map[string]struct{}, len(deps))
		for d := range deps {
			cp[d] = struct{}{}
		}
		out.edges[n] = cp
	}
	for n, names := range g.starts {
		cp := make(map[string]struct{}, len(names))
		for nm := range names {
			cp[nm] = struct{}{}
		}
		out.starts[n] = cp
	}
	return out
}

// TopologicalSort returns the graph's work types in dependency order: a
// work type always appears after every work type it depends on. Returns an
// error if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]string, error) {
	// Sort over the reverse direction (dependency -> dependents) so that
	// dependencies are emitted before the work types that need them.
	outDegree := make(map[string]int, len(g.nodes))
	dependents := make(map[string][]string, len(g.nodes))
	for n := range g.nodes {
		outDegree[n] = len(g.edges[n])
	}
	for n, deps := range g.edges {
		for d := range deps {
			dependents[d] = append(dependents[d], n)
		}
	}

	queue := make([]string, 0)
	for _, n := range g.Nodes() {
		if outDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		sort.Strings(queue)
		n := queue[0]
		queue = queue[1:]
		result = append(result, n)
		for _, dep := range dependents[n] {
			outDegree[dep]--
			if outDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(result) != len(g.nodes) {
		return nil, fmt.Errorf("recipe: dependency graph contains a cycle")
	}
	return result, nil
}
