// Package config loads the YAML description of a module universe, its
// recipes, and the tabu search's tuning parameters — the static input the
// original's __main__ scripts wired together by hand (module/recipe/
// transport_module literals passed straight to tabu_search()). Structured
// the way the teacher pack's internal/config loads AppConfig from YAML via
// gopkg.in/yaml.v3.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mathiascj/gridforge/internal/grid"
	"github.com/mathiascj/gridforge/internal/layout"
	"github.com/mathiascj/gridforge/internal/recipe"
)

// ModuleConfig describes one placeable module.
type ModuleConfig struct {
	ID           string         `yaml:"id" validate:"required"`
	WorkTimes    map[string]int `yaml:"work_times" validate:"required,min=1"`
	QueueLength  int            `yaml:"queue_length" validate:"min=0"`
	Passthrough  bool           `yaml:"passthrough"`
	TransitTimes [4][4]int      `yaml:"transit_times"`
}

// TransportConfig describes the single transport-module prototype new
// transporter instances are minted from.
type TransportConfig struct {
	QueueLength  int       `yaml:"queue_length" validate:"min=0"`
	TransitTimes [4][4]int `yaml:"transit_times"`
}

// RecipeConfig describes one recipe: its work-type dependency map, the
// direction its first unit of work enters the layout from, and how many
// instances of it the search should schedule.
type RecipeConfig struct {
	Name         string              `yaml:"name" validate:"required"`
	Dependencies map[string][]string `yaml:"dependencies" validate:"required,min=1"`
	StartDir     string              `yaml:"start_direction"`
	Amount       int                 `yaml:"amount" validate:"required,min=1"`
}

// SearchConfig holds the tabu search's tuning knobs, defaulted by Load when
// left unset (the original's tabu_search() keyword defaults).
type SearchConfig struct {
	Iters             int   `yaml:"iters" validate:"min=0"`
	ShortTermSize     int   `yaml:"short_term_size" validate:"min=0"`
	MaxInitialConfigs int   `yaml:"max_initial_configs" validate:"min=0"`
	Seed              int64 `yaml:"seed"`
}

// File is the top-level YAML document shape.
type File struct {
	Modules   []ModuleConfig  `yaml:"modules" validate:"required,min=1,dive"`
	Transport TransportConfig `yaml:"transport"`
	Recipes   []RecipeConfig  `yaml:"recipes" validate:"required,min=1,dive"`
	Search    SearchConfig    `yaml:"search"`
}

// structValidator checks File's struct tags, the same library the teacher
// pack wires in via gin's `binding:` tags (github.com/go-playground/
// validator/v10) — here invoked directly since gridforge has no HTTP layer
// to bind through.
var structValidator = validator.New()

// Universe is the fully-materialized result of loading a config file: a
// ready-to-search layout.Universe plus the search tuning parameters that
// accompanied it.
type Universe struct {
	Universe *layout.Universe
	Search   SearchConfig
}

const (
	defaultIters             = 50
	defaultShortTermSize     = 10
	defaultMaxInitialConfigs = 10
)

// Load reads and parses path, builds every module and recipe it describes,
// and returns a constructed layout.Universe ready for the search engine.
func Load(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return Build(f)
}

// Build turns a parsed File into a ready layout.Universe, applying search
// parameter defaults for any zero value left unset in the YAML.
func Build(f File) (*Universe, error) {
	if err := structValidator.Struct(f); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}

	modules := make([]*grid.Module, 0, len(f.Modules))
	for _, mc := range f.Modules {
		m, err := grid.New(mc.ID, mc.WorkTimes, mc.TransitTimes, mc.QueueLength, mc.Passthrough)
		if err != nil {
			return nil, fmt.Errorf("config: module %q: %w", mc.ID, err)
		}
		modules = append(modules, m)
	}

	transport := grid.NewTransport("transport", f.Transport.TransitTimes, f.Transport.QueueLength)

	recipes := make([]*recipe.Recipe, 0, len(f.Recipes))
	for _, rc := range f.Recipes {
		dir := grid.Up
		if rc.StartDir != "" {
			parsed, err := grid.ParseDirection(rc.StartDir)
			if err != nil {
				return nil, fmt.Errorf("config: recipe %q: %w", rc.Name, err)
			}
			dir = parsed
		}
		r, err := recipe.New(rc.Name, rc.Dependencies, nil, dir, rc.Amount)
		if err != nil {
			return nil, fmt.Errorf("config: recipe %q: %w", rc.Name, err)
		}
		recipes = append(recipes, r)
	}

	uni, err := layout.NewUniverse(modules, transport, recipes)
	if err != nil {
		return nil, fmt.Errorf("config: building universe: %w", err)
	}

	search := f.Search
	if search.Iters == 0 {
		search.Iters = defaultIters
	}
	if search.ShortTermSize == 0 {
		search.ShortTermSize = defaultShortTermSize
	}
	if search.MaxInitialConfigs == 0 {
		search.MaxInitialConfigs = defaultMaxInitialConfigs
	}

	return &Universe{Universe: uni, Search: search}, nil
}
