package moves

import (
	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/placer"
	"github.com/mathiascj/gridforge/internal/strset"
)

// parallelArg is one (start, path, end) candidate for branching path off of
// a line between start and end as a parallel detour.
type parallelArg struct {
	start *grid.Module
	path  []*grid.Module
	end   *grid.Module
}

// capableModules returns the subset of modules able to perform every work
// type in worktypes. An empty worktypes set has no capable modules — there
// is nothing to replace.
func capableModules(worktypes strset.Set, modules []*grid.Module) []*grid.Module {
	if len(worktypes) == 0 {
		return nil
	}
	candidates := append([]*grid.Module(nil), modules...)
	for w := range worktypes {
		var next []*grid.Module
		for _, m := range candidates {
			if m.WType.Has(w) {
				next = append(next, m)
			}
		}
		candidates = next
		if len(candidates) == 0 {
			return nil
		}
	}
	return candidates
}

func removeModule(mods []*grid.Module, target *grid.Module) []*grid.Module {
	out := make([]*grid.Module, 0, len(mods))
	for _, m := range mods {
		if m != target {
			out = append(out, m)
		}
	}
	return out
}

// parallelArgsHelper enumerates every combination of capable modules that
// can perform remaining's work in order, one module per position, never
// reusing a module across positions. A result of length k < len(remaining)+1
// means the chain ran out of capable modules after k positions — still a
// valid, shorter candidate path.
func parallelArgsHelper(capable, remaining, freeModules []*grid.Module) [][]*grid.Module {
	var result [][]*grid.Module
	if len(capable) == 0 {
		return result
	}
	for _, c := range capable {
		fm := removeModule(freeModules, c)
		var tails [][]*grid.Module
		if len(remaining) > 0 {
			nextCapable := capableModules(remaining[0].ActiveWType, fm)
			tails = parallelArgsHelper(nextCapable, remaining[1:], fm)
		}
		for _, tail := range tails {
			result = append(result, append([]*grid.Module{c}, tail...))
		}
		result = append(result, []*grid.Module{c})
	}
	return result
}

// parallelArgs finds every place along line a parallel branch could be
// inserted: for each module m in line with a left neighbor, and every
// candidate replacement chain capable of performing m's and its successors'
// active work, provided the line extends far enough right of m to anchor
// the branch's far end.
func parallelArgs(line []*grid.Module, freeModules []*grid.Module, uni *layout.Universe) []parallelArg {
	transports := map[*grid.Module]bool{}
	for _, t := range uni.TransportModules() {
		transports[t] = true
	}
	nonTransports := make([]*grid.Module, 0, len(freeModules))
	for _, m := range freeModules {
		if !transports[m] {
			nonTransports = append(nonTransports, m)
		}
	}

	type splitEntry struct {
		m     *grid.Module
		paths [][]*grid.Module
	}
	entries := make([]splitEntry, 0, len(line))
	for split, m := range line {
		cm := capableModules(m.ActiveWType, nonTransports)
		entries = append(entries, splitEntry{m, parallelArgsHelper(cm, line[split+1:], nonTransports)})
	}

	var args []parallelArg
	for _, e := range entries {
		rLen := len(e.m.TraverseRight(nil))
		var kept [][]*grid.Module
		for _, path := range e.paths {
			if rLen > len(path) {
				kept = append(kept, path)
			}
		}
		if e.m.InLeft() == nil || len(kept) == 0 {
			continue
		}
		for _, path := range kept {
			steps := e.m.TraverseRightBySteps(len(path))
			args = append(args, parallelArg{e.m.InLeft(), path, steps[len(steps)-1]})
		}
	}
	return args
}

// parallelConfigString redecodes frontier fresh, carries the active work of
// every module strictly between start and end over onto the corresponding
// position of arg's path (the branch is replacing that stretch of work),
// then routes path underneath the line via two bracketing transports.
func parallelConfigString(uni *layout.Universe, frontier string, arg parallelArg, direction grid.Direction) (string, error) {
	if err := uni.Decode(frontier); err != nil {
		return "", err
	}

	t0 := uni.TakeTransportModule()
	t1 := uni.TakeTransportModule()

	interior := arg.start.TraverseRight(arg.end)
	if len(interior) > 2 {
		interior = interior[1 : len(interior)-1]
	} else {
		interior = nil
	}
	for i, m := range interior {
		if i < len(arg.path) {
			arg.path[i].ActiveWType = m.ActiveWType.Copy()
		}
	}

	expandedPath := make([]*grid.Module, 0, len(arg.path)+2)
	expandedPath = append(expandedPath, t0)
	expandedPath = append(expandedPath, arg.path...)
	expandedPath = append(expandedPath, t1)

	if err := placer.PushUnderneath(arg.start, expandedPath, arg.end, uni, direction); err != nil {
		return "", err
	}

	result, err := uni.Encode()
	uni.FreeTransportModule(t0)
	uni.FreeTransportModule(t1)
	if err != nil {
		return "", err
	}
	return result, nil
}

// NeighboursParallelize decodes frontier, restores active work, then for
// the main line and every up/down side line, finds every place a segment
// could be branched off as a parallel detour (main-line segments are tried
// both above and below; side-line segments only extend further in their
// own direction), deduplicating the resulting candidate layouts.
func NeighboursParallelize(uni *layout.Universe, frontier string, active map[string]strset.Set) ([]string, error) {
	if err := uni.Decode(frontier); err != nil {
		return nil, err
	}
	restoreActive(uni, active)

	frontier, err := uni.Encode()
	if err != nil {
		return nil, err
	}

	main, ups, downs, err := uni.FindLines()
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var results []string
	record := func(s string) {
		if !seen[s] {
			seen[s] = true
			results = append(results, s)
		}
	}

	for _, arg := range parallelArgs(main, uni.FreeModules(), uni) {
		s, err := parallelConfigString(uni, frontier, arg, grid.Up)
		if err != nil {
			return nil, err
		}
		record(s)
		s, err = parallelConfigString(uni, frontier, arg, grid.Down)
		if err != nil {
			return nil, err
		}
		record(s)
	}

	for _, up := range ups {
		for _, arg := range parallelArgs(up, uni.FreeModules(), uni) {
			s, err := parallelConfigString(uni, frontier, arg, grid.Up)
			if err != nil {
				return nil, err
			}
			record(s)
		}
	}

	for _, down := range downs {
		for _, arg := range parallelArgs(down, uni.FreeModules(), uni) {
			s, err := parallelConfigString(uni, frontier, arg, grid.Down)
			if err != nil {
				return nil, err
			}
			record(s)
		}
	}

	return results, nil
}
