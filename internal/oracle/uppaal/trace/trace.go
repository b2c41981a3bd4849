// Package trace parses verifyta's textual diagnostic trace, extracting the
// makespan and per-module work/transport/active-work history — the Go
// equivalent of UPPAAL/uppaalAPI.py's get_travsersal_info() and
// UPPAAL/verifytaAPI.py's trace_time()/property_satisfied().
package trace

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/mathiascj/gridforge/internal/oracle"
	"github.com/mathiascj/gridforge/internal/oracle/uppaal/xmlgen"
	"github.com/mathiascj/gridforge/internal/strset"
)

var (
	digits       = regexp.MustCompile(`\d+`)
	bracketed    = regexp.MustCompile(`\[(.*?)\]`)
	clockPattern = regexp.MustCompile(`global_c.?(=)(\d+)`)
	varPattern   = regexp.MustCompile(`var=(\d+)`)
)

// Satisfied reports whether verifyta's result output indicates every query
// succeeded — false on the literal "-- Formula is NOT satisfied." marker or
// empty output, matching property_satisfied().
func Satisfied(result []byte) bool {
	s := string(result)
	return !strings.Contains(s, "-- Formula is NOT satisfied.") && len(s) >= 1
}

// Makespan extracts the last global_c clock value in the trace —
// trace_time(). Returns oracle.ErrParseFailure if the trace has no line
// matching the clock pattern.
func Makespan(traceText string) (int, error) {
	lines := strings.Split(traceText, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if m := clockPattern.FindStringSubmatch(lines[i]); m != nil {
			v, err := strconv.Atoi(m[2])
			if err != nil {
				return 0, oracle.ErrParseFailure
			}
			return v, nil
		}
	}
	return 0, oracle.ErrParseFailure
}

// Traversal walks a trace's "Transitions:" blocks, recording for each
// module the recipes it performed handshake work for (worked), the work
// types it was ever actively doing (active), and the recipes it merely
// transported through (transported) — get_travsersal_info()'s three maps,
// keyed here by the gridforge module/work-type/recipe names ids.Module/
// ids.WorkType/ids.Recipe translate the model's dense ids back to.
func Traversal(traceText string, ids xmlgen.IDMaps) (oracle.Result, error) {
	worked := map[string]strset.Set{}
	transported := map[string]strset.Set{}
	active := map[string]strset.Set{}

	scanner := bufio.NewScanner(strings.NewReader(traceText))
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	for i := 0; i < len(lines); i++ {
		if lines[i] != "Transitions:" {
			continue
		}
		if i+2 >= len(lines) {
			break
		}
		l0, l1 := lines[i+1], lines[i+2]
		i += 2

		switch {
		case strings.Contains(l0, "handshake"):
			rMatch := digits.FindString(l0)
			mMatch := digits.FindString(l1)
			if rMatch == "" || mMatch == "" {
				continue
			}
			rID, _ := strconv.Atoi(rMatch)
			mID, _ := strconv.Atoi(mMatch)
			recipeName, okR := ids.Recipe[rID]
			moduleID, okM := ids.Module[mID]
			if !okR || !okM {
				continue
			}
			if worked[moduleID] == nil {
				worked[moduleID] = strset.New()
			}
			worked[moduleID].Add(recipeName)

		case strings.Contains(l0, "work") && strings.Contains(l0, "Handshaking"):
			mMatch := digits.FindString(l0)
			wMatch := bracketed.FindStringSubmatch(l1)
			if mMatch == "" || len(wMatch) < 2 {
				continue
			}
			mID, _ := strconv.Atoi(mMatch)
			wID, err := strconv.Atoi(wMatch[1])
			if err != nil {
				continue
			}
			moduleID, okM := ids.Module[mID]
			workType, okW := ids.WorkType[wID]
			if !okM || !okW {
				continue
			}
			if active[moduleID] == nil {
				active[moduleID] = strset.New()
			}
			active[moduleID].Add(workType)

		case strings.Contains(l0, "enqueue") && strings.Contains(l0, "mtransporter"):
			mMatch := digits.FindString(l0)
			if mMatch == "" {
				continue
			}
			mID, _ := strconv.Atoi(mMatch)
			moduleID, okM := ids.Module[mID]
			if !okM {
				continue
			}

			var stateLine string
			for steps := 0; steps < 5 && i+1 < len(lines); steps++ {
				i++
				stateLine = lines[i]
			}
			vMatch := varPattern.FindStringSubmatch(stateLine)
			if len(vMatch) < 2 {
				continue
			}
			rID, err := strconv.Atoi(vMatch[1])
			if err != nil {
				continue
			}
			recipeName, okR := ids.Recipe[rID]
			if !okR {
				continue
			}
			if transported[moduleID] == nil {
				transported[moduleID] = strset.New()
			}
			transported[moduleID].Add(recipeName)
		}
	}

	makespan, err := Makespan(traceText)
	if err != nil {
		return oracle.Result{}, err
	}

	return oracle.Result{
		Makespan:    makespan,
		Worked:      worked,
		Transported: transported,
		ActiveWork:  active,
	}, nil
}
