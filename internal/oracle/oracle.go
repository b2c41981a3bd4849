// Package oracle defines the VerifyOracle abstraction: something that scores
// a layout (a set of recipes scheduled onto a set of modules) by makespan,
// the way the original's get_best_time()/UPPAAL CORA round-trip did. The
// search engine and its tests depend only on this interface — a concrete
// implementation lives in internal/oracle/uppaal, a deterministic one for
// tests in internal/oracle/fake.
package oracle

import (
	"context"
	"errors"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/recipe"
	"github.com/mathiascj/gridforge/internal/strset"
)

// ErrUnsatisfiable is returned when the oracle could not find any trace
// satisfying the reachability query — the original's "-- Formula is NOT
// satisfied." case, raised there as a bare RuntimeError.
var ErrUnsatisfiable = errors.New("oracle: reachability property not satisfied")

// ErrParseFailure is returned when the oracle produced output but the
// makespan could not be extracted from it — the original's
// trace_time()'s IndexError/AttributeError-turned-RuntimeError case.
var ErrParseFailure = errors.New("oracle: could not parse makespan from trace")

// Result is what a successful evaluation extracts from a trace: the
// makespan, and for every module touched, the recipes it performed work for,
// the recipes it merely transported, and the work types it was ever
// actively doing — named worked/transported/active to mirror the
// original's get_travsersal_info() return triple.
type Result struct {
	Makespan     int
	Worked       map[string]strset.Set // module id -> recipe names worked on
	Transported  map[string]strset.Set // module id -> recipe names transported through
	ActiveWork   map[string]strset.Set // module id -> work types ever active
}

// Oracle scores a layout: the recipes to schedule, and the modules that
// participate in the configuration being evaluated (spec.md §4.8's
// modules_in_config). Implementations may be expensive and blocking;
// callers invoke Evaluate synchronously, once per candidate layout.
type Oracle interface {
	Evaluate(ctx context.Context, recipes []*recipe.Recipe, modules []*grid.Module) (Result, error)
}
