package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dolworld.ai/internal/sim/resource"
	"dolworld.ai/internal/sim/world"
)

func TestLoad_ConfigsTuningYAML(t *testing.T) {
	tu, err := Load("../../../configs/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning.yaml: %v", err)
	}
	if tu.Population.InitPopMode != world.InitPopAncestor {
		t.Fatalf("init_pop_mode: got %q", tu.Population.InitPopMode)
	}
	if want := filepath.Join("..", "..", "..", "configs", "ancestor.yaml"); tu.Population.AncestorPath != want {
		t.Fatalf("ancestor path: got %q want %q", tu.Population.AncestorPath, want)
	}

	cfg, err := tu.WorldConfig()
	if err != nil {
		t.Fatalf("WorldConfig: %v", err)
	}
	if cfg.Economy.Decay.Mode != resource.Proportional || cfg.Economy.Consume.Mode != resource.Fixed {
		t.Fatalf("policies: %+v", cfg.Economy)
	}
	if cfg.TagScheme != world.TagSchemeHadamard || cfg.NumStatic+cfg.NumPeriodic != 3 {
		t.Fatalf("resources: scheme=%q static=%d periodic=%d", cfg.TagScheme, cfg.NumStatic, cfg.NumPeriodic)
	}

	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New from tuning.yaml: %v", err)
	}
	if got := w.Population(); got != tu.Population.InitPopSize {
		t.Fatalf("population: got %d want %d", got, tu.Population.InitPopSize)
	}
	w.RunUpdates(3)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	tu, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := tu.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if tu.CyclesPerUpdate != 30 || tu.Deme.Width != 5 || !tu.Output.UpdateLog {
		t.Fatalf("defaults: %+v", tu)
	}
}

func TestParse_PartialDocumentKeepsDefaults(t *testing.T) {
	tu, err := Parse([]byte("seed: 9\ndeme:\n  width: 3\n  height: 4\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if tu.Seed != 9 || tu.Deme.Width != 3 || tu.Deme.Height != 4 {
		t.Fatalf("parsed: seed=%d deme=%+v", tu.Seed, tu.Deme)
	}
	if tu.Resources.Consume.Mode != "fixed" || tu.Hardware.MaxCallDepth != 128 {
		t.Fatalf("defaults lost: %+v %+v", tu.Resources.Consume, tu.Hardware)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "sede: 1\n", "tuning.yaml"},
		{"bad mode", "resources:\n  consume:\n    mode: greedy\n    value: 1\n", "tuning.yaml"},
		{"pulse range", "resources:\n  pulse_prob: 1.5\n", "tuning.yaml"},
		{"deme size", "deme:\n  width: 0\n", "tuning.yaml"},
		{"hadamard", "resources:\n  num_static: 10\n  num_periodic: 10\n  tag_scheme: hadamard\n", "at most 16"},
		{"pop", "population:\n  init_pop_size: 5\n  max_pop_size: 2\n", "exceeds max_pop_size"},
		{"ancestor", "population:\n  init_pop_mode: ancestor\n", "requires ancestor_path"},
	}
	for _, tc := range cases {
		_, err := Parse([]byte(tc.doc))
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: got %v want error containing %q", tc.name, err, tc.want)
		}
	}
}

func TestLoad_MissingAncestorFailsAtWorldNew(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tuning.yaml")
	doc := "population:\n  init_pop_mode: ancestor\n  ancestor_path: nope.yaml\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tu, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tu.Population.AncestorPath != filepath.Join(dir, "nope.yaml") {
		t.Fatalf("ancestor path: got %q", tu.Population.AncestorPath)
	}
	cfg, err := tu.WorldConfig()
	if err != nil {
		t.Fatalf("WorldConfig: %v", err)
	}
	if _, err := world.New(cfg); err == nil {
		t.Fatalf("expected missing ancestor error")
	}
}
