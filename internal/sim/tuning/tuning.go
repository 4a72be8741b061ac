package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"dolworld.ai/internal/sim/program"
	"dolworld.ai/internal/sim/resource"
	"dolworld.ai/internal/sim/world"
)

//go:embed tuning.schema.json
var schemaJSON []byte

const schemaURL = "tuning.schema.json"

type Tuning struct {
	Seed            int64  `yaml:"seed"`
	Updates         uint64 `yaml:"updates"`
	TickRateHz      int    `yaml:"tick_rate_hz"`
	CyclesPerUpdate int    `yaml:"cycles_per_update"`

	Population Population `yaml:"population"`
	Deme       Deme       `yaml:"deme"`
	Hardware   Hardware   `yaml:"hardware"`
	Program    Program    `yaml:"program"`
	Resources  Resources  `yaml:"resources"`
	Organism   Organism   `yaml:"organism"`
	Output     Output     `yaml:"output"`
}

type Population struct {
	InitPopSize  int    `yaml:"init_pop_size"`
	MaxPopSize   int    `yaml:"max_pop_size"`
	InitPopMode  string `yaml:"init_pop_mode"`
	AncestorPath string `yaml:"ancestor_path"`
}

type Deme struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Hardware struct {
	MaxThreads           int     `yaml:"max_threads"`
	MaxCallDepth         int     `yaml:"max_call_depth"`
	MinTagMatchThreshold float64 `yaml:"min_tag_match_threshold"`
	StochasticTieBreaks  bool    `yaml:"stochastic_tie_breaks"`
}

type Program struct {
	MinFunctions   int `yaml:"min_functions"`
	MaxFunctions   int `yaml:"max_functions"`
	MinFunctionLen int `yaml:"min_function_len"`
	MaxFunctionLen int `yaml:"max_function_len"`
	MinArg         int `yaml:"min_arg"`
	MaxArg         int `yaml:"max_arg"`
}

type Resources struct {
	NumStatic             int     `yaml:"num_static"`
	NumPeriodic           int     `yaml:"num_periodic"`
	StaticLevel           float64 `yaml:"static_level"`
	PeriodicLevel         float64 `yaml:"periodic_level"`
	DecayDelay            uint64  `yaml:"decay_delay"`
	MinUpdatesUnavailable uint64  `yaml:"min_updates_unavailable"`
	PulseProb             float64 `yaml:"pulse_prob"`
	Consume               Policy  `yaml:"consume"`
	Decay                 Policy  `yaml:"decay"`
	FailurePenalty        float64 `yaml:"failure_penalty"`
	TagScheme             string  `yaml:"tag_scheme"`
	LevelNoise            Noise   `yaml:"level_noise"`
}

type Policy struct {
	Mode  string  `yaml:"mode"`
	Value float64 `yaml:"value"`
}

type Noise struct {
	Amplitude float64 `yaml:"amplitude"`
	Scale     float64 `yaml:"scale"`
}

type Organism struct {
	DivisionCost float64 `yaml:"division_cost"`
	OrgReproCost float64 `yaml:"org_repro_cost"`
	MaxOrgAge    uint64  `yaml:"max_org_age"`
}

// Output toggles the persistence sinks fed after every update.
type Output struct {
	UpdateLog  bool `yaml:"update_log"`
	LineageLog bool `yaml:"lineage_log"`
	Index      bool `yaml:"index"`
}

// Load reads a tuning file. An empty path returns the defaults. The raw
// document is checked against the embedded schema before it is decoded.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	t, err = Parse(raw)
	if err != nil {
		return t, err
	}
	// Relative ancestor paths are resolved against the tuning file.
	if p := t.Population.AncestorPath; p != "" && !filepath.IsAbs(p) {
		t.Population.AncestorPath = filepath.Join(filepath.Dir(path), p)
	}
	return t, nil
}

func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	hw := program.DefaultConfig()
	pc := program.DefaultConstraints()
	return Tuning{
		Seed:            1,
		CyclesPerUpdate: 30,
		Population: Population{
			InitPopSize: 1,
			MaxPopSize:  100,
			InitPopMode: world.InitPopRandom,
		},
		Deme: Deme{Width: 5, Height: 5},
		Hardware: Hardware{
			MaxThreads:           hw.MaxCores,
			MaxCallDepth:         hw.MaxCallDepth,
			MinTagMatchThreshold: hw.MinBindThreshold,
			StochasticTieBreaks:  hw.StochasticTieBreaks,
		},
		Program: Program{
			MinFunctions:   pc.MinFunctions,
			MaxFunctions:   pc.MaxFunctions,
			MinFunctionLen: pc.MinFunctionLen,
			MaxFunctionLen: pc.MaxFunctionLen,
			MinArg:         pc.MinArg,
			MaxArg:         pc.MaxArg,
		},
		Resources: Resources{
			NumStatic:             1,
			NumPeriodic:           1,
			StaticLevel:           1,
			PeriodicLevel:         10,
			DecayDelay:            3,
			MinUpdatesUnavailable: 5,
			PulseProb:             0.1,
			Consume:               Policy{Mode: "fixed", Value: 1},
			Decay:                 Policy{Mode: "proportional", Value: 0.5},
			FailurePenalty:        0.5,
			TagScheme:             world.TagSchemeRandom,
			LevelNoise:            Noise{Scale: 0.1},
		},
		Organism: Organism{
			DivisionCost: 1,
			OrgReproCost: 20,
		},
		Output: Output{UpdateLog: true, LineageLog: true, Index: true},
	}
}

func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	t.Population.InitPopMode = strings.ToLower(strings.TrimSpace(t.Population.InitPopMode))
	t.Population.AncestorPath = strings.TrimSpace(t.Population.AncestorPath)
	t.Resources.TagScheme = strings.ToLower(strings.TrimSpace(t.Resources.TagScheme))
	t.Resources.Consume.Mode = strings.ToLower(strings.TrimSpace(t.Resources.Consume.Mode))
	t.Resources.Decay.Mode = strings.ToLower(strings.TrimSpace(t.Resources.Decay.Mode))
	if t.Population.InitPopMode == "" {
		t.Population.InitPopMode = world.InitPopRandom
	}
	if t.Resources.TagScheme == "" {
		t.Resources.TagScheme = world.TagSchemeRandom
	}
	if t.Resources.LevelNoise.Scale <= 0 {
		t.Resources.LevelNoise.Scale = 0.1
	}
}

func (t Tuning) Validate() error {
	t.Normalize()
	if t.CyclesPerUpdate <= 0 {
		return fmt.Errorf("cycles_per_update must be > 0")
	}
	if t.Population.InitPopSize <= 0 || t.Population.MaxPopSize <= 0 {
		return fmt.Errorf("population sizes must be > 0")
	}
	if t.Hardware.MaxCallDepth <= 0 {
		return fmt.Errorf("hardware max_call_depth must be > 0")
	}
	cfg, err := t.WorldConfig()
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// WorldConfig converts the tuning document into an engine configuration.
func (t Tuning) WorldConfig() (world.Config, error) {
	consume, err := resource.ParseMode(t.Resources.Consume.Mode)
	if err != nil {
		return world.Config{}, fmt.Errorf("resources.consume: %w", err)
	}
	decay, err := resource.ParseMode(t.Resources.Decay.Mode)
	if err != nil {
		return world.Config{}, fmt.Errorf("resources.decay: %w", err)
	}
	return world.Config{
		Seed:            t.Seed,
		TickRateHz:      t.TickRateHz,
		Updates:         t.Updates,
		CyclesPerUpdate: t.CyclesPerUpdate,
		InitPopSize:     t.Population.InitPopSize,
		MaxPopSize:      t.Population.MaxPopSize,
		InitPopMode:     t.Population.InitPopMode,
		AncestorPath:    t.Population.AncestorPath,
		DemeWidth:       t.Deme.Width,
		DemeHeight:      t.Deme.Height,
		Hardware: program.Config{
			MaxCores:            t.Hardware.MaxThreads,
			MaxCallDepth:        t.Hardware.MaxCallDepth,
			MinBindThreshold:    t.Hardware.MinTagMatchThreshold,
			StochasticTieBreaks: t.Hardware.StochasticTieBreaks,
		},
		Constraints: program.Constraints{
			MinFunctions:   t.Program.MinFunctions,
			MaxFunctions:   t.Program.MaxFunctions,
			MinFunctionLen: t.Program.MinFunctionLen,
			MaxFunctionLen: t.Program.MaxFunctionLen,
			MinArg:         t.Program.MinArg,
			MaxArg:         t.Program.MaxArg,
		},
		NumStatic:   t.Resources.NumStatic,
		NumPeriodic: t.Resources.NumPeriodic,
		TagScheme:   t.Resources.TagScheme,
		Economy: resource.Economy{
			StaticLevel:           t.Resources.StaticLevel,
			PeriodicLevel:         t.Resources.PeriodicLevel,
			DecayDelay:            t.Resources.DecayDelay,
			MinUpdatesUnavailable: t.Resources.MinUpdatesUnavailable,
			PulseProb:             t.Resources.PulseProb,
			Consume:               resource.ConsumePolicy{Mode: consume, Value: t.Resources.Consume.Value},
			Decay:                 resource.DecayPolicy{Mode: decay, Value: t.Resources.Decay.Value},
			FailurePenalty:        t.Resources.FailurePenalty,
		},
		LevelNoiseAmplitude: t.Resources.LevelNoise.Amplitude,
		LevelNoiseScale:     t.Resources.LevelNoise.Scale,
		DivisionCost:        t.Organism.DivisionCost,
		OrgReproCost:        t.Organism.OrgReproCost,
		MaxOrgAge:           t.Organism.MaxOrgAge,
	}, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

// validateSchema round-trips the YAML document through JSON so the validator
// sees plain JSON values.
func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	s, err := compileSchema()
	if err != nil {
		return err
	}
	return s.Validate(v)
}
