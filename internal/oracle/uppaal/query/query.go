// Package query builds the reachability query verifyta checks against the
// generated model — a single conjunction asking whether every recipe
// instance can reach its .done location, per the original's create_query().
package query

import "strings"

// Reachability builds "E<> r0.done and r1.done and ... and rN.done" over
// recipeNames, the dense per-instance process names xmlgen.Generate
// assigned (e.g. "recipe0", "recipe1", ...).
func Reachability(recipeNames []string) string {
	if len(recipeNames) == 0 {
		return "E<>"
	}
	clauses := make([]string, len(recipeNames))
	for i, name := range recipeNames {
		clauses[i] = name + ".done"
	}
	return "E<> " + strings.Join(clauses, " and ")
}
