package world

import (
	"errors"
	"fmt"

	"dolworld.ai/internal/sim/program"
	"dolworld.ai/internal/sim/resource"
	"dolworld.ai/internal/sim/tag"
)

const (
	InitPopRandom   = "random"
	InitPopAncestor = "ancestor"

	TagSchemeRandom   = "random"
	TagSchemeHadamard = "hadamard"
)

type Config struct {
	Seed       int64
	TickRateHz int
	// Updates stops Run after this many updates. 0 runs until cancelled.
	Updates         uint64
	CyclesPerUpdate int

	InitPopSize  int
	MaxPopSize   int
	InitPopMode  string
	AncestorPath string

	DemeWidth  int
	DemeHeight int

	Hardware    program.Config
	Constraints program.Constraints

	NumStatic   int
	NumPeriodic int
	TagScheme   string
	Economy     resource.Economy

	// Per-slot environment heterogeneity. Amplitude 0 disables it.
	LevelNoiseAmplitude float64
	LevelNoiseScale     float64

	DivisionCost float64
	OrgReproCost float64
	// MaxOrgAge kills organisms older than this many updates. 0 disables it.
	MaxOrgAge uint64
}

func (c *Config) applyDefaults() {
	if c.CyclesPerUpdate <= 0 {
		c.CyclesPerUpdate = 30
	}
	if c.MaxPopSize <= 0 {
		c.MaxPopSize = 1000
	}
	if c.InitPopSize <= 0 {
		c.InitPopSize = 1
	}
	if c.InitPopMode == "" {
		c.InitPopMode = InitPopRandom
	}
	if c.DemeWidth == 0 {
		c.DemeWidth = 5
	}
	if c.DemeHeight == 0 {
		c.DemeHeight = 5
	}
	if c.Hardware == (program.Config{}) {
		c.Hardware = program.DefaultConfig()
	}
	if c.Constraints == (program.Constraints{}) {
		c.Constraints = program.DefaultConstraints()
	}
	if c.TagScheme == "" {
		c.TagScheme = TagSchemeRandom
	}
	if c.LevelNoiseScale == 0 {
		c.LevelNoiseScale = 0.1
	}
	if c.NumStatic > 0 && c.Economy.StaticLevel == 0 {
		c.Economy.StaticLevel = 1
	}
}

// Validate rejects configurations the engine cannot run. It is called by New
// after defaults are applied.
func (c Config) Validate() error {
	if c.DemeWidth <= 0 || c.DemeHeight <= 0 {
		return fmt.Errorf("deme dimensions must be > 0, got %dx%d", c.DemeWidth, c.DemeHeight)
	}
	if c.InitPopSize > c.MaxPopSize {
		return fmt.Errorf("init_pop_size %d exceeds max_pop_size %d", c.InitPopSize, c.MaxPopSize)
	}
	if c.TickRateHz < 0 {
		return fmt.Errorf("tick rate must be >= 0, got %d", c.TickRateHz)
	}
	switch c.InitPopMode {
	case InitPopRandom:
	case InitPopAncestor:
		if c.AncestorPath == "" {
			return errors.New("init_pop_mode ancestor requires ancestor_path")
		}
	default:
		return fmt.Errorf("unknown init_pop_mode %q", c.InitPopMode)
	}
	if c.NumStatic < 0 || c.NumPeriodic < 0 {
		return fmt.Errorf("resource counts must be >= 0 (static=%d periodic=%d)", c.NumStatic, c.NumPeriodic)
	}
	switch c.TagScheme {
	case TagSchemeRandom:
	case TagSchemeHadamard:
		if n := c.NumStatic + c.NumPeriodic; n > tag.Width {
			return fmt.Errorf("hadamard tag scheme supports at most %d resources, got %d", tag.Width, n)
		}
	default:
		return fmt.Errorf("unknown tag scheme %q", c.TagScheme)
	}
	if err := c.Economy.Validate(); err != nil {
		return err
	}
	if c.NumStatic > 0 && c.Economy.StaticLevel < resource.MinAmount {
		return fmt.Errorf("static level %v below minimum amount %v", c.Economy.StaticLevel, resource.MinAmount)
	}
	if c.DivisionCost < 0 || c.OrgReproCost < 0 {
		return fmt.Errorf("costs must be >= 0 (division=%v org_repro=%v)", c.DivisionCost, c.OrgReproCost)
	}
	if c.LevelNoiseAmplitude < 0 {
		return fmt.Errorf("level noise amplitude must be >= 0, got %v", c.LevelNoiseAmplitude)
	}
	if c.Hardware.MinBindThreshold < 0 || c.Hardware.MinBindThreshold > 1 {
		return fmt.Errorf("min bind threshold %v outside [0,1]", c.Hardware.MinBindThreshold)
	}
	return nil
}
