package world

import (
	"testing"

	"dolworld.ai/internal/sim/program"
	"dolworld.ai/internal/sim/resource"
)

func determinismConfig(seed int64) Config {
	return Config{
		Seed:            seed,
		CyclesPerUpdate: 10,
		InitPopSize:     4,
		MaxPopSize:      8,
		DemeWidth:       3,
		DemeHeight:      3,
		Hardware:        program.Config{MaxCores: 4, MaxCallDepth: 8, MinBindThreshold: 0.25, StochasticTieBreaks: true},
		Constraints:     program.Constraints{MinFunctions: 2, MaxFunctions: 6, MinFunctionLen: 4, MaxFunctionLen: 16, MinArg: 0, MaxArg: 7},
		NumStatic:       1,
		NumPeriodic:     2,
		Economy: resource.Economy{
			StaticLevel:           5,
			PeriodicLevel:         20,
			DecayDelay:            2,
			MinUpdatesUnavailable: 3,
			PulseProb:             0.3,
			Consume:               resource.ConsumePolicy{Mode: resource.Fixed, Value: 2},
			Decay:                 resource.DecayPolicy{Mode: resource.Proportional, Value: 0.25},
			FailurePenalty:        1,
		},
		LevelNoiseAmplitude: 0.3,
		DivisionCost:        1,
		OrgReproCost:        3,
		MaxOrgAge:           40,
	}
}

func TestDeterminism_SameSeedSameDigest(t *testing.T) {
	w1, err := New(determinismConfig(42))
	if err != nil {
		t.Fatalf("world1: %v", err)
	}
	w2, err := New(determinismConfig(42))
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	if w1.RunID() == w2.RunID() {
		t.Fatalf("run ids should be unique")
	}

	for u := uint64(0); u < 60; u++ {
		got1, d1 := w1.Step()
		got2, d2 := w2.Step()
		if got1 != u || got2 != u {
			t.Fatalf("update counters: got %d/%d want %d", got1, got2, u)
		}
		if d1 != d2 {
			t.Fatalf("digest mismatch at update %d: %s vs %s", u, d1, d2)
		}
	}
	if m1, m2 := w1.Metrics(), w2.Metrics(); m1.Stats != m2.Stats {
		t.Fatalf("stats diverged: %+v vs %+v", m1.Stats, m2.Stats)
	}
}

func TestDeterminism_DifferentSeedDiffers(t *testing.T) {
	w1, err := New(determinismConfig(1))
	if err != nil {
		t.Fatalf("world1: %v", err)
	}
	w2, err := New(determinismConfig(2))
	if err != nil {
		t.Fatalf("world2: %v", err)
	}
	_, d1 := w1.Step()
	_, d2 := w2.Step()
	if d1 == d2 {
		t.Fatalf("different seeds produced the same digest %s", d1)
	}
}
