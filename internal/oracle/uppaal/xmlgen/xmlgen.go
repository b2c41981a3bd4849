// Package xmlgen emits the timed-automata model UPPAAL CORA's verifyta
// consumes: a global declaration block (constants, typed id ranges, channel
// priority chain, per-module arrays and template instantiations, per-recipe
// dependency-node arrays) spliced into a base project file, following the
// id-remapping and string-building approach of the original's
// UPPAAL/xml_generator.py. Module and work-type ids are remapped to a dense
// 0..n-1 range for the model regardless of the gridforge module ids they
// came from; the returned maps translate trace output back.
package xmlgen

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/recipe"
)

// IDMaps translates the model's dense integer ids for modules and work
// types back to the gridforge ids a trace was generated from, plus the
// recipe name each minted recipe instance id belongs to.
type IDMaps struct {
	Module      map[int]string // model mid -> grid.Module.ID
	WorkType    map[int]string // model wid -> work type name
	Recipe      map[int]string // model rid -> recipe.Recipe.Name
	RecipeNames []string       // dense process names ("recipe0", "recipe1", ...), for query.Reachability
}

// numberOfOutputs is the fixed neighbor-direction count (up/right/down/left)
// every module array is sized against.
const numberOfOutputs = len(grid.Directions)

// Generate builds the global declaration and system declaration strings for
// modules and recipes, and splices them into baseXML (a full NTA project
// document whose <declaration> and <system> elements are replaced). modules
// and recipes are iterated in their given order; callers should pass them
// sorted by id for reproducible output across runs.
func Generate(baseXML string, modules []*grid.Module, recipes []*recipe.Recipe) (string, IDMaps, error) {
	moduleIDs := make(map[int]string, len(modules))
	modelIDOf := make(map[string]int, len(modules))
	for i, m := range modules {
		moduleIDs[i] = m.ID
		modelIDOf[m.ID] = i
	}

	workTypes := map[string]struct{}{}
	for _, m := range modules {
		for w := range m.WType {
			workTypes[w] = struct{}{}
		}
	}
	sortedWork := make([]string, 0, len(workTypes))
	for w := range workTypes {
		sortedWork = append(sortedWork, w)
	}
	sort.Strings(sortedWork)

	workIDs := make(map[int]string, len(sortedWork))
	modelWIDOf := make(map[string]int, len(sortedWork))
	for i, w := range sortedWork {
		workIDs[i] = w
		modelWIDOf[w] = i
	}

	amount := 0
	for _, r := range recipes {
		amount += r.Amount
	}

	global := generateGlobalDeclarations(len(modules), amount, len(sortedWork), numberOfOutputs)

	system, recipeIDs := generateSystemDeclaration(modules, len(sortedWork), recipes, modelIDOf, modelWIDOf)

	out, err := spliceDocument(baseXML, global, system)
	if err != nil {
		return "", IDMaps{}, err
	}

	recipeNames := make([]int, 0, len(recipeIDs))
	for rid := range recipeIDs {
		recipeNames = append(recipeNames, rid)
	}
	sort.Ints(recipeNames)
	names := make([]string, len(recipeNames))
	for i, rid := range recipeNames {
		names[i] = fmt.Sprintf("recipe%d", rid)
	}

	return out, IDMaps{Module: moduleIDs, WorkType: workIDs, Recipe: recipeIDs, RecipeNames: names}, nil
}

var docTemplate = template.Must(template.New("nta").Parse(
	`<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE nta PUBLIC '-//Uppaal Team//DTD Flat System 1.6//EN' 'http://www.it.uu.se/research/group/darts/uppaal/flat-1_6.dtd'>
<nta>
	<declaration>{{.Global}}</declaration>
	{{.Templates}}
	<system>{{.System}}</system>
</nta>
`))

// spliceDocument replaces a base project's <declaration>/<system> text when
// baseXML is a full document, or otherwise wraps global/system into a
// minimal document via docTemplate — the base file a real deployment points
// at (spec.md §6's --xml-template flag) supplies the process templates
// (ModuleQueue, ModuleWorker, ModuleTransporter, Recipe, RecipeQueue,
// Remover, Initializer, Urgent) that generateSystemDeclaration instantiates.
func spliceDocument(baseXML, global, system string) (string, error) {
	if !strings.Contains(baseXML, "<declaration>") {
		var buf bytes.Buffer
		if err := docTemplate.Execute(&buf, struct{ Global, Templates, System string }{global, "", system}); err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	out := replaceElement(baseXML, "declaration", global)
	out = replaceElement(out, "system", system)
	return out, nil
}

func replaceElement(doc, tag, content string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(doc, open)
	end := strings.Index(doc, close)
	if start < 0 || end < 0 || end < start {
		return doc
	}
	return doc[:start+len(open)] + escapeXML(content) + doc[end:]
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func constIntDecl(name string, value int) string {
	return fmt.Sprintf("const int %s = %d;\n", name, value)
}

func typedefDecl(name string, maxVal string) string {
	return fmt.Sprintf("typedef int[-1, %s - 1] %s_t;\ntypedef int[0, %s - 1] %s_safe_t;\n", maxVal, name, maxVal, name)
}

func chanDecl(name string, size string, urgent bool) string {
	s := ""
	if urgent {
		s = "urgent "
	}
	sizeStr := ""
	if size != "" {
		sizeStr = "[" + size + "]"
	}
	return s + "chan " + name + sizeStr + ";\n"
}

const nodeStruct = `
typedef struct {
	wid_t work;
	int number_of_parents;
	int children[NUMBER_OF_WORKTYPES];
	int number_of_children;
} node;
`

const globalFunctions = `
//Variables used for passing values at handshake
int var = -1;
int var2 = -1;
bool can_continue = true;
bool can_add_recipe = true;

//Functions for tracking completed recipes
bool ra_done[NUMBER_OF_RECIPES];

void init_ra_done(){
    int i;
    for(i = 0; i < NUMBER_OF_RECIPES; ++i)
        ra_done[i] = false;
}

bool is_done(rid_safe_t rid){
    return ra_done[rid];
}

bool current_works[NUMBER_OF_RECIPES][NUMBER_OF_WORKTYPES];

void init_current_works(){
    int i, j;
    for(i = 0; i < NUMBER_OF_RECIPES; ++i)
        for(j = 0; j < NUMBER_OF_WORKTYPES; ++j)
            current_works[i][j] = false;
}

bool can_work(bool worktype[NUMBER_OF_WORKTYPES], rid_safe_t rid){
    int i;
    for(i = 0; i < NUMBER_OF_WORKTYPES; ++i){
        if(worktype[i] && current_works[rid][i])
            return true;}
    return false;
}

bool full_modules[NUMBER_OF_MODULES];
bool idle_workers[NUMBER_OF_MODULES];
bool idle_transporters[NUMBER_OF_MODULES];
`

// generateGlobalDeclarations reproduces generate_global_declarations: fixed
// constants, typed id ranges, the node struct, every channel, and the
// single priority chain ordering work dequeues and handshakes ahead of
// enqueues and removals.
func generateGlobalDeclarations(numModules, numRecipes, numWorkTypes, numOutputs int) string {
	var b strings.Builder
	b.WriteString("// Global Declarations\n// Constants\n")
	b.WriteString(constIntDecl("NUMBER_OF_MODULES", numModules))
	b.WriteString(constIntDecl("NUMBER_OF_RECIPES", numRecipes))
	b.WriteString(constIntDecl("NUMBER_OF_WORKTYPES", numWorkTypes))
	b.WriteString(constIntDecl("NUMBER_OF_OUTPUTS", numOutputs))
	b.WriteString(constIntDecl("NUMBER_OF_INITS", numModules*3+2))
	b.WriteString("\n// User defined types.\n")
	b.WriteString(typedefDecl("mid", "NUMBER_OF_MODULES"))
	b.WriteString(typedefDecl("rid", "NUMBER_OF_RECIPES"))
	b.WriteString(typedefDecl("wid", "NUMBER_OF_WORKTYPES"))
	b.WriteString(typedefDecl("did", "NUMBER_OF_OUTPUTS"))
	b.WriteString(nodeStruct)
	b.WriteString("\n// Channels\n")
	b.WriteString(chanDecl("enqueue", "NUMBER_OF_MODULES", true))
	b.WriteString(chanDecl("work_dequeue", "NUMBER_OF_MODULES", false))
	b.WriteString(chanDecl("transport_dequeue", "NUMBER_OF_MODULES", false))
	b.WriteString(chanDecl("intern", "NUMBER_OF_MODULES", true))
	b.WriteString(chanDecl("remove", "NUMBER_OF_RECIPES", false))
	b.WriteString(chanDecl("rstart", "NUMBER_OF_RECIPES", false))
	b.WriteString(chanDecl("handshake", "NUMBER_OF_RECIPES", false))
	b.WriteString(chanDecl("work", "NUMBER_OF_WORKTYPES", false))
	b.WriteString(chanDecl("initialize", "NUMBER_OF_INITS", false))
	b.WriteString(chanDecl("urg", "", true))
	b.WriteString("chan priority transport_dequeue < work_dequeue < intern < handshake < work < enqueue < default < rstart < remove < urg;\n")
	b.WriteString("\n// Global clock\nclock global_c;\n")
	b.WriteString(globalFunctions)
	return b.String()
}

// generateSystemDeclaration reproduces generate_system_declaration: every
// module's arrays and three process instantiations (queue/worker/
// transporter), every recipe's dependency-node array and amount-many
// Recipe instantiations, the shared recipe queue, remover, initializer and
// urgent processes, and the final system instance line.
func generateSystemDeclaration(modules []*grid.Module, numWorkTypes int, recipes []*recipe.Recipe, modelIDOf map[string]int, modelWIDOf map[string]int) (string, map[int]string) {
	var b strings.Builder
	initIndex := 0
	var systemList []string

	for _, m := range modules {
		mid := modelIDOf[m.ID]
		decl, queueName, workerName, transporterName, next := generateModuleDeclaration(m, numWorkTypes, mid, initIndex, modelIDOf, modelWIDOf)
		b.WriteString(decl)
		systemList = append(systemList, queueName, workerName, transporterName)
		initIndex = next
	}

	var recipeNames []string
	recipeCounter := 0
	recipeIDs := map[int]string{}
	for _, r := range recipes {
		decl, names, ids := generateRecipeDeclaration(recipeCounter, r, numWorkTypes, modelIDOf, modelWIDOf)
		b.WriteString(decl)
		recipeNames = append(recipeNames, names...)
		for id, name := range ids {
			recipeIDs[id] = name
		}
		recipeCounter += r.Amount
	}

	b.WriteString("rid_t rqa[NUMBER_OF_RECIPES] = {")
	idxs := make([]string, recipeCounter)
	for i := range idxs {
		idxs[i] = fmt.Sprint(i)
	}
	b.WriteString(strings.Join(idxs, ","))
	b.WriteString("};\n")
	b.WriteString(fmt.Sprintf("rqueue = RecipeQueue(rqa, %d);\n", initIndex))
	systemList = append(systemList, "rqueue")
	initIndex++

	b.WriteString(fmt.Sprintf("rem = Remover(%d);\n", initIndex))
	systemList = append(systemList, "rem")
	initIndex++

	b.WriteString("initer = Initializer();\n")
	systemList = append(systemList, "initer")

	b.WriteString("urge = Urgent();\n")
	systemList = append(systemList, "urge")

	b.WriteString("system ")
	b.WriteString(strings.Join(append(systemList, recipeNames...), " < "))
	b.WriteString(";")

	return b.String(), recipeIDs
}

func generateModuleDeclaration(m *grid.Module, numWorkTypes, mid, initIndex int, modelIDOf, modelWIDOf map[string]int) (string, string, string, string, int) {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("// Module %d\n", mid))

	wa := fmt.Sprintf("work_array%d", mid)
	b.WriteString(workArray(m, numWorkTypes, wa, modelWIDOf))

	pa := fmt.Sprintf("ptime_array%d", mid)
	b.WriteString(pTimeArray(m, numWorkTypes, pa, modelWIDOf))

	na := fmt.Sprintf("next_array%d", mid)
	b.WriteString(nextArray(m, na, modelIDOf))

	ta := fmt.Sprintf("ttime_array%d", mid)
	b.WriteString(tTimeArray(m, ta))

	queueName := fmt.Sprintf("mqueue%d", mid)
	b.WriteString(fmt.Sprintf("%s = ModuleQueue(%d, %d, %d, %s, %t);\n", queueName, mid, initIndex, m.QueueLength, wa, m.Passthrough))
	initIndex++

	workerName := fmt.Sprintf("mworker%d", mid)
	b.WriteString(fmt.Sprintf("%s = ModuleWorker(%d, %d, %s, %s);\n", workerName, mid, initIndex, wa, pa))
	initIndex++

	transporterName := fmt.Sprintf("mtransporter%d", mid)
	b.WriteString(fmt.Sprintf("%s = ModuleTransporter(%d, %d, %s, %s, %t);\n\n", transporterName, mid, initIndex, ta, na, m.Passthrough))
	initIndex++

	return b.String(), queueName, workerName, transporterName, initIndex
}

func workArray(m *grid.Module, numWorkTypes int, varname string, modelWIDOf map[string]int) string {
	vals := make([]string, numWorkTypes)
	for w := range vals {
		vals[w] = "false"
	}
	for w := range m.WType {
		vals[modelWIDOf[w]] = "true"
	}
	return fmt.Sprintf("const bool %s[NUMBER_OF_WORKTYPES] = {%s};\n", varname, strings.Join(vals, ","))
}

func pTimeArray(m *grid.Module, numWorkTypes int, varname string, modelWIDOf map[string]int) string {
	vals := make([]string, numWorkTypes)
	for w := range vals {
		vals[w] = "0"
	}
	for w, id := range modelWIDOf {
		if m.WType.Has(w) {
			vals[id] = fmt.Sprint(m.PTime[w])
		}
	}
	return fmt.Sprintf("const int %s[NUMBER_OF_WORKTYPES] = {%s};\n", varname, strings.Join(vals, ","))
}

func nextArray(m *grid.Module, varname string, modelIDOf map[string]int) string {
	vals := make([]string, numberOfOutputs)
	for i, d := range grid.Directions {
		n := m.Get(d)
		if n == nil {
			vals[i] = "-1"
			continue
		}
		vals[i] = fmt.Sprint(modelIDOf[n.ID])
	}
	return fmt.Sprintf("const mid_t %s[NUMBER_OF_OUTPUTS] = {%s};\n", varname, strings.Join(vals, ","))
}

func tTimeArray(m *grid.Module, varname string) string {
	rows := make([]string, numberOfOutputs)
	for i := 0; i < numberOfOutputs; i++ {
		cols := make([]string, numberOfOutputs)
		for j := 0; j < numberOfOutputs; j++ {
			cols[j] = fmt.Sprint(m.TTime[i][j])
		}
		rows[i] = "{" + strings.Join(cols, ",") + "}"
	}
	return fmt.Sprintf("const int %s[NUMBER_OF_OUTPUTS][NUMBER_OF_OUTPUTS] = {%s};\n", varname, strings.Join(rows, ","))
}

type recipeNode struct {
	work            string
	numberOfParents int
	children        []int
}

// generateRecipeDeclaration reproduces generate_recipe_declaration: a dense
// node array over the recipe's work-type dependency map (padded with empty
// nodes up to numWorkTypes), then amount-many Recipe process instantiations
// sharing that array, each assigned a fresh dense recipe id.
func generateRecipeDeclaration(counter int, r *recipe.Recipe, numWorkTypes int, modelIDOf, modelWIDOf map[string]int) (string, []string, map[int]string) {
	nodes := generateNodes(r, numWorkTypes, modelWIDOf)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("// Recipe %s\n", r.Name))

	nodeNames := make([]string, len(nodes))
	for i, n := range nodes {
		nodeNames[i] = fmt.Sprintf("r%snode%d", r.Name, i)
		b.WriteString(fmt.Sprintf("const node %s = %s;\n", nodeNames[i], n))
	}

	funcDep := "func_dep" + r.Name
	b.WriteString(fmt.Sprintf("node %s[NUMBER_OF_WORKTYPES] = {%s};\n", funcDep, strings.Join(nodeNames, ",")))

	numberOfNodes := "number_of_nodes" + r.Name
	b.WriteString(fmt.Sprintf("const int %s = %d;\n", numberOfNodes, len(r.Dependencies)))

	var names []string
	ids := map[int]string{}
	startMid := -1
	if r.StartModule != nil {
		startMid = modelIDOf[r.StartModule.ID]
	}
	for x := 0; x < r.Amount; x++ {
		rid := x + counter
		name := fmt.Sprintf("recipe%d", rid)
		names = append(names, name)
		b.WriteString(fmt.Sprintf("%s = Recipe(%d, %d, %s, %s, %d);\n\n", name, rid, startMid, funcDep, numberOfNodes, int(r.StartDir)))
		ids[rid] = r.Name
	}
	return b.String(), names, ids
}

// generateNodes reproduces generate_nodes: for every work type the recipe
// declares, its number of direct dependencies and the list of work types
// that depend on it (its children in the dependency-graph sense), remapped
// to dense positions within the recipe's own node array.
func generateNodes(r *recipe.Recipe, numWorkTypes int, modelWIDOf map[string]int) []string {
	keys := r.Keys()
	childMapping := map[int]int{-1: -1}
	for i, w := range keys {
		childMapping[modelWIDOf[w]] = i
	}

	nodes := make([]recipeNode, 0, len(keys))
	for _, w := range keys {
		var children []int
		for other, deps := range r.Dependencies {
			for _, d := range deps {
				if d == w {
					children = append(children, modelWIDOf[other])
				}
			}
		}
		sort.Ints(children)
		nodes = append(nodes, recipeNode{work: w, numberOfParents: len(r.Dependencies[w]), children: children})
	}

	out := make([]string, 0, numWorkTypes)
	for _, n := range nodes {
		mapped := make([]int, len(n.children))
		for i, c := range n.children {
			mapped[i] = childMapping[c]
		}
		strs := make([]string, len(mapped))
		for i, c := range mapped {
			strs[i] = fmt.Sprint(c)
		}
		out = append(out, fmt.Sprintf("{%d, %d, {%s}, %d}", modelWIDOf[n.work], n.numberOfParents, strings.Join(strs, ", "), len(mapped)))
	}
	for len(out) < numWorkTypes {
		out = append(out, emptyNode(numWorkTypes))
	}
	return out
}

func emptyNode(numWorkTypes int) string {
	children := make([]string, numWorkTypes)
	for i := range children {
		children[i] = "-1"
	}
	return fmt.Sprintf("{ -1, -1, {%s}, -1}", strings.Join(children, ","))
}
