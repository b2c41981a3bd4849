// Package runner shells out to verifyta, UPPAAL CORA's model checker, the
// way UPPAAL/verifytaAPI.py's run_verifyta() and UPPAAL/uppaalAPI.py's
// get_best_time() do: generate the model and query files into a scratch
// directory, invoke the binary, check its stdout for the satisfaction
// summary and parse its stderr as the trace.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/oracle"
	"github.com/mathiascj/gridforge/internal/oracle/uppaal/query"
	"github.com/mathiascj/gridforge/internal/oracle/uppaal/trace"
	"github.com/mathiascj/gridforge/internal/oracle/uppaal/xmlgen"
	"github.com/mathiascj/gridforge/internal/recipe"
)

// verifytaArgs mirrors the original's fixed invocation: -t 2 asks for the
// fastest trace, -o 3 the highest optimization level, -u/-y request the
// diagnostic trace and disable progress output.
var verifytaArgs = []string{"-t", "2", "-o", "3", "-u", "-y"}

// Runner implements oracle.Oracle against a real verifyta binary.
type Runner struct {
	// TemplatePath is the base UPPAAL NTA project file whose process
	// templates (ModuleQueue, ModuleWorker, ModuleTransporter, Recipe,
	// RecipeQueue, Remover, Initializer, Urgent) xmlgen.Generate
	// instantiates against.
	TemplatePath string
	// VerifytaPath is the path to the verifyta executable.
	VerifytaPath string
}

// Evaluate writes a generated model/query pair to a fresh temp directory,
// runs verifyta against them, and parses the result. The temp directory is
// removed before returning, satisfying spec.md §5's requirement that the
// oracle's temporary inputs not persist between evaluations.
func (r *Runner) Evaluate(ctx context.Context, recipes []*recipe.Recipe, modules []*grid.Module) (oracle.Result, error) {
	sorted := append([]*grid.Module(nil), modules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	template, err := os.ReadFile(r.TemplatePath)
	if err != nil {
		return oracle.Result{}, fmt.Errorf("runner: reading xml template: %w", err)
	}

	modelXML, ids, err := xmlgen.Generate(string(template), sorted, recipes)
	if err != nil {
		return oracle.Result{}, fmt.Errorf("runner: generating model: %w", err)
	}
	queryText := query.Reachability(ids.RecipeNames)

	dir, err := os.MkdirTemp("", "gridforge-uppaal-*")
	if err != nil {
		return oracle.Result{}, fmt.Errorf("runner: creating scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	xmlPath := filepath.Join(dir, "temp.xml")
	qPath := filepath.Join(dir, "temp.q")
	if err := os.WriteFile(xmlPath, []byte(modelXML), 0o644); err != nil {
		return oracle.Result{}, fmt.Errorf("runner: writing model: %w", err)
	}
	if err := os.WriteFile(qPath, []byte(queryText), 0o644); err != nil {
		return oracle.Result{}, fmt.Errorf("runner: writing query: %w", err)
	}

	log.Debug().Str("xml", xmlPath).Str("query", qPath).Msg("invoking verifyta")

	// verifyta reports whether the query was satisfied on stdout and, with
	// -y's diagnostic trace requested, emits the trace itself on stderr —
	// run_verifyta()'s (result, trace) = (stdout, stderr) pairing.
	args := append([]string{xmlPath, qPath}, verifytaArgs...)
	cmd := exec.CommandContext(ctx, r.VerifytaPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return oracle.Result{}, fmt.Errorf("runner: invoking verifyta: %w", err)
		}
	}

	if !trace.Satisfied(stdout.Bytes()) {
		return oracle.Result{}, oracle.ErrUnsatisfiable
	}

	return trace.Traversal(stderr.String(), ids)
}
