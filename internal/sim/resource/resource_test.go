package resource

import (
	"math/rand"
	"testing"
)

func TestResource_AvailabilityHysteresis(t *testing.T) {
	r := Resource{ID: 0, Kind: Periodic}
	r.SetAmount(0)
	if r.Amount != 0 || r.Available || r.TimeAvailable() != 0 || r.TimeUnavailable() != 0 {
		t.Fatalf("zeroed resource: %+v", r)
	}

	r.IncAmount(100)
	if r.Amount != 100 || !r.Available || r.TimeInState != 0 {
		t.Fatalf("after IncAmount(100): %+v", r)
	}
	r.SetAmount(101)
	if r.Amount != 101 || !r.Available || r.TimeInState != 0 {
		t.Fatalf("after SetAmount(101): %+v", r)
	}
	r.AdvanceAvailabilityTracking()
	if r.TimeAvailable() != 1 || r.TimeUnavailable() != 0 {
		t.Fatalf("after one tick: available=%d unavailable=%d", r.TimeAvailable(), r.TimeUnavailable())
	}

	r.SetAmount(0.05 * MinAmount)
	if r.Amount != 0 || r.Available || r.TimeInState != 0 {
		t.Fatalf("below threshold: %+v", r)
	}
	r.AdvanceAvailabilityTracking()
	if r.TimeAvailable() != 0 || r.TimeUnavailable() != 1 {
		t.Fatalf("unavailable tick: available=%d unavailable=%d", r.TimeAvailable(), r.TimeUnavailable())
	}

	r.IncAmount(100)
	if r.Amount != 100 || !r.Available || r.TimeInState != 0 {
		t.Fatalf("re-available: %+v", r)
	}
}

func TestResource_ConsumeFixedConservation(t *testing.T) {
	var r Resource
	if got := r.ConsumeFixed(10); got != 0 || r.Amount != 0 || r.Available {
		t.Fatalf("consume from empty: got %v, %+v", got, r)
	}

	r.SetAmount(100)
	if got := r.ConsumeFixed(10); got != 10 || r.Amount != 90 || !r.Available {
		t.Fatalf("consume 10 of 100: got %v, %+v", got, r)
	}
	if got := r.ConsumeFixed(100); got != 90 || r.Amount != 0 || r.Available {
		t.Fatalf("consume 100 of 90: got %v, %+v", got, r)
	}

	r.SetAmount(10)
	if got := r.ConsumeFixed(9.95); got != 9.95 || r.Amount != 0 || r.Available {
		t.Fatalf("consume leaving sub-threshold remainder: got %v, %+v", got, r)
	}
}

func TestResource_ConsumeProportion(t *testing.T) {
	var r Resource
	r.SetAmount(100)
	if got := r.ConsumeProportion(0.5); got != 50 || r.Amount != 50 || !r.Available {
		t.Fatalf("consume half: got %v, %+v", got, r)
	}
}

func TestResource_Decay(t *testing.T) {
	var r Resource
	r.DecayFixed(100)
	r.DecayProportion(0.5)
	if r.Amount != 0 || r.Available {
		t.Fatalf("decay of empty: %+v", r)
	}

	r.SetAmount(100)
	r.DecayFixed(150)
	if r.Amount != 0 || r.Available || r.TimeInState != 0 {
		t.Fatalf("overdecay: %+v", r)
	}

	r.SetAmount(100)
	r.DecayProportion(0.5)
	if r.Amount != 50 || !r.Available {
		t.Fatalf("decay half: %+v", r)
	}
	r.DecayFixed(20)
	if r.Amount != 30 || !r.Available {
		t.Fatalf("decay 20: %+v", r)
	}
}

func TestParseMode(t *testing.T) {
	if m, err := ParseMode("Proportional"); err != nil || m != Proportional {
		t.Fatalf("ParseMode: got %v, %v", m, err)
	}
	if _, err := ParseMode("exponential"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestEnvironment_StaticAlwaysAvailable(t *testing.T) {
	env := NewEnvironment(2, 0)
	eco := Economy{StaticLevel: 5}
	rng := rand.New(rand.NewSource(1))
	for tick := 0; tick < 3; tick++ {
		env.Get(0).ConsumeFixed(100)
		env.Advance(eco, rng, nil)
		for id := 0; id < env.Len(); id++ {
			r := env.Get(id)
			if !r.Available || r.Amount != 5 {
				t.Fatalf("tick %d resource %d: %+v", tick, id, *r)
			}
		}
	}
}

func TestEnvironment_StaticFloorsAtMinAmount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cases := []struct {
		name  string
		level float64
		scale float64
	}{
		{"zero scale", 1, 0},
		{"tiny level", 0.05, 1},
	}
	for _, tc := range cases {
		env := NewEnvironment(1, 0)
		env.LevelScale = tc.scale
		env.Advance(Economy{StaticLevel: tc.level}, rng, nil)
		r := env.Get(0)
		if !r.Available || r.Amount != MinAmount {
			t.Fatalf("%s: got amount=%v available=%v want amount=%v available", tc.name, r.Amount, r.Available, MinAmount)
		}
	}
}

func TestEnvironment_PeriodicCycle(t *testing.T) {
	env := NewEnvironment(0, 1)
	eco := Economy{
		PeriodicLevel:         10,
		DecayDelay:            1,
		MinUpdatesUnavailable: 1,
		PulseProb:             1,
		Decay:                 DecayPolicy{Mode: Fixed, Value: 4},
	}
	rng := rand.New(rand.NewSource(7))

	pulses := 0
	var amounts []float64
	for tick := 0; tick < 10; tick++ {
		env.Advance(eco, rng, func(resID int) {
			if resID != 0 {
				t.Fatalf("pulse for unexpected resource %d", resID)
			}
			pulses++
		})
		amounts = append(amounts, env.Get(0).Amount)
	}
	want := []float64{0, 10, 6, 2, 0, 10, 6, 2, 0, 10}
	for i := range want {
		if amounts[i] != want[i] {
			t.Fatalf("amounts: got %v want %v", amounts, want)
		}
	}
	if pulses != 3 {
		t.Fatalf("pulses: got %d want 3", pulses)
	}
}

func TestEnvironment_NoPulseAtZeroProbability(t *testing.T) {
	env := NewEnvironment(0, 1)
	eco := Economy{PeriodicLevel: 10, PulseProb: 0}
	rng := rand.New(rand.NewSource(3))
	for tick := 0; tick < 50; tick++ {
		env.Advance(eco, rng, func(int) { t.Fatalf("unexpected pulse") })
	}
	if env.Get(0).TimeUnavailable() != 50 {
		t.Fatalf("time unavailable: got %d want 50", env.Get(0).TimeUnavailable())
	}
}

func TestEnvironment_ResetAndLevelScale(t *testing.T) {
	env := NewEnvironment(1, 1)
	env.LevelScale = 0.5
	eco := Economy{StaticLevel: 8, PeriodicLevel: 8, PulseProb: 1}
	rng := rand.New(rand.NewSource(1))
	env.Advance(eco, rng, nil)
	if env.Get(0).Amount != 4 || env.Get(1).Amount != 4 {
		t.Fatalf("scaled levels: static=%v periodic=%v", env.Get(0).Amount, env.Get(1).Amount)
	}
	env.Reset()
	if env.Total() != 0 || env.Get(0).Available || env.Get(1).TimeInState != 0 {
		t.Fatalf("reset did not zero environment: %+v", env.Resources)
	}
}

func TestEconomy_Validate(t *testing.T) {
	good := Economy{StaticLevel: 1, PeriodicLevel: 1, PulseProb: 0.5, Consume: ConsumePolicy{Mode: Proportional, Value: 0.5}}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := good
	bad.PulseProb = 1.5
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for pulse probability > 1")
	}
	bad = good
	bad.Consume.Value = 2
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for proportional consume > 1")
	}
}
