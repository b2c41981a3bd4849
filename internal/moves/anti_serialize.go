package moves

import (
	"fmt"
	"math/rand"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/placer"
	"github.com/mathiascj/gridforge/internal/strset"
)

// AntiSerialize pulls path off the main line and routes it around, in
// place, between start and end (either of which may be nil for an
// open-ended segment): it rebuilds the "remaining" main line with path's
// modules replaced by fresh transports wherever they were shadowed, then
// calls placer.PushAround to re-route path as a detour. Returns the
// resulting layout's canonical encoding.
func AntiSerialize(uni *layout.Universe, start *grid.Module, path []*grid.Module, end *grid.Module) (string, error) {
	var mods []*grid.Module
	switch {
	case start != nil && end != nil:
		mods = start.TraverseRight(end)
	case start != nil:
		mods = start.TraverseRight(nil)
	case end != nil:
		mods = end.TraverseInLeft(nil)
	default:
		return "", fmt.Errorf("moves: anti_serialize requires a start or an end module")
	}

	var remaining []*grid.Module
	for _, m := range mods {
		if !containsModule(path, m) {
			remaining = append(remaining, m)
		} else if m.Shadowed {
			remaining = append(remaining, uni.TakeTransportModule())
		}
	}

	var startConnector, endConnector *grid.Module
	if start != nil {
		startConnector = start.InLeft()
	}
	if end != nil {
		endConnector = end.Right()
	}

	for _, m := range mods {
		m.HorizontalWipe()
	}

	if start != nil && end != nil {
		// If remaining is longer than path, pad path with transports.
		for len(remaining) > len(path) {
			path = append(path, uni.TakeTransportModule())
		}

		// Extract the true boundary module from remaining before any
		// padding, then pad remaining (preserving it) if path is longer.
		end = remaining[len(remaining)-1]
		remaining = remaining[:len(remaining)-1]
		for len(remaining) < len(path)-1 {
			remaining = append(remaining, uni.TakeTransportModule())
		}
		remaining = append(remaining, end)
	}

	placer.ConnectModuleList(remaining, grid.Right)
	if startConnector != nil && len(remaining) > 0 {
		startConnector.Set(grid.Right, remaining[0])
	}
	if endConnector != nil && end != nil {
		end.Set(grid.Right, endConnector)
	}

	var shadow []*grid.Module
	switch {
	case start != nil && end != nil:
		shadow = remaining
	case start != nil:
		shadow = start.TraverseRightBySteps(len(path) - 1)
	case end != nil:
		shadow = end.TraverseInLeftBySteps(len(path) - 1)
	}

	if err := placer.PushAround(start, path, end, shadow, uni); err != nil {
		return "", err
	}

	uni.MarkPlaced(remaining...)
	uni.MainLine = remaining
	return uni.Encode()
}

// antiSerializeArgs is one (start, path, end) candidate segment pulled off
// the main line.
type antiSerializeArgs struct {
	start *grid.Module
	path  []*grid.Module
	end   *grid.Module
}

// NeighboursAntiSerialized decodes frontier, restores active work, then
// picks one recipe r uniformly at random and walks the main line looking
// for maximal runs of modules whose active work lies entirely inside r and
// not in any other recipe's work types ("purely-r" workers) bounded by cut
// points whose active work straddles both r and some other recipe. Each
// such run becomes a candidate for AntiSerialize, skipped if it contains an
// anchor module (is_start or is_end) that must not move.
func NeighboursAntiSerialized(uni *layout.Universe, frontier string, active map[string]strset.Set, rng *rand.Rand) ([]string, error) {
	if err := uni.Decode(frontier); err != nil {
		return nil, err
	}
	restoreActive(uni, active)

	main, _, _, err := uni.FindLines()
	if err != nil {
		return nil, err
	}
	if len(uni.Recipes) == 0 {
		return nil, fmt.Errorf("moves: anti_serialize requires at least one recipe")
	}

	chosen := uni.Recipes[rng.Intn(len(uni.Recipes))]
	r := strset.New(chosen.Keys()...)
	rBar := strset.New()
	for _, rec := range uni.Recipes {
		if rec == chosen {
			continue
		}
		for _, k := range rec.Keys() {
			rBar.Add(k)
		}
	}

	cutPoints := map[*grid.Module]bool{}
	purelyR := map[*grid.Module]bool{}
	for _, m := range uni.CurrentModules() {
		if len(m.ActiveWType) == 0 {
			continue
		}
		inR, inRBar, allInR := false, false, true
		for w := range m.ActiveWType {
			if r.Has(w) {
				inR = true
			} else {
				allInR = false
			}
			if rBar.Has(w) {
				inRBar = true
			}
		}
		if inR && inRBar {
			cutPoints[m] = true
		} else if allInR && inR && !inRBar {
			purelyR[m] = true
		}
	}

	var segments []antiSerializeArgs
	var start *grid.Module
	var run []*grid.Module
	for _, mod := range main {
		if cutPoints[mod] {
			if len(run) > 0 {
				segments = append(segments, antiSerializeArgs{start, append([]*grid.Module(nil), run...), mod})
			}
			start = mod
			run = nil
		} else if purelyR[mod] {
			run = append(run, mod)
		}
	}
	if start != nil && len(run) > 0 {
		segments = append(segments, antiSerializeArgs{start, run, nil})
	}

	var out []string
	for _, seg := range segments {
		if anchored(seg.path) {
			continue
		}
		s, err := AntiSerialize(uni, seg.start, seg.path, seg.end)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func anchored(path []*grid.Module) bool {
	for _, m := range path {
		if m.IsStart || m.IsEnd {
			return true
		}
	}
	return false
}
