package resource

import (
	"fmt"
	"math"
	"math/rand"
)

// Economy holds the numeric parameters of a population's resource economy.
// It is chosen once at configuration time and shared by every environment.
type Economy struct {
	StaticLevel   float64
	PeriodicLevel float64

	// Ticks a periodic resource stays untouched after a pulse before decay starts.
	DecayDelay uint64
	// Ticks a periodic resource must stay unavailable before it may pulse again.
	MinUpdatesUnavailable uint64
	PulseProb             float64

	Consume        ConsumePolicy
	Decay          DecayPolicy
	FailurePenalty float64
}

func (e Economy) Validate() error {
	if e.StaticLevel < 0 || e.PeriodicLevel < 0 {
		return fmt.Errorf("resource levels must be >= 0 (static=%v periodic=%v)", e.StaticLevel, e.PeriodicLevel)
	}
	if e.PulseProb < 0 || e.PulseProb > 1 {
		return fmt.Errorf("pulse probability %v outside [0,1]", e.PulseProb)
	}
	if e.Consume.Value < 0 {
		return fmt.Errorf("consume value must be >= 0, got %v", e.Consume.Value)
	}
	if e.Consume.Mode == Proportional && e.Consume.Value > 1 {
		return fmt.Errorf("proportional consume value %v outside [0,1]", e.Consume.Value)
	}
	if e.Decay.Value < 0 {
		return fmt.Errorf("decay value must be >= 0, got %v", e.Decay.Value)
	}
	if e.Decay.Mode == Proportional && e.Decay.Value > 1 {
		return fmt.Errorf("proportional decay value %v outside [0,1]", e.Decay.Value)
	}
	if e.FailurePenalty < 0 {
		return fmt.Errorf("failure penalty must be >= 0, got %v", e.FailurePenalty)
	}
	return nil
}

// Environment is the set of resources local to one population slot. Static
// resources come first, then periodic ones; indices line up with the world's
// resource tags.
type Environment struct {
	Resources []Resource

	// LevelScale multiplies the configured static and periodic levels for
	// this slot. 1 means no heterogeneity.
	LevelScale float64
}

func NewEnvironment(numStatic, numPeriodic int) *Environment {
	env := &Environment{
		Resources:  make([]Resource, numStatic+numPeriodic),
		LevelScale: 1,
	}
	for i := range env.Resources {
		env.Resources[i].ID = i
		if i >= numStatic {
			env.Resources[i].Kind = Periodic
		}
	}
	return env
}

func (env *Environment) Reset() {
	for i := range env.Resources {
		env.Resources[i].Reset()
	}
}

func (env *Environment) Len() int { return len(env.Resources) }

// Get returns resource id. Out-of-range ids panic.
func (env *Environment) Get(id int) *Resource {
	if id < 0 || id >= len(env.Resources) {
		panic(fmt.Sprintf("environment: resource id %d out of range [0,%d)", id, len(env.Resources)))
	}
	return &env.Resources[id]
}

// Advance runs one organism-tick of the availability state machine. onPulse
// is called with the resource id after every unavailable->available pulse.
func (env *Environment) Advance(eco Economy, rng *rand.Rand, onPulse func(resID int)) {
	for i := range env.Resources {
		r := &env.Resources[i]
		switch r.Kind {
		case Static:
			// Scaling never drops a static resource below the availability floor.
			r.SetAmount(math.Max(eco.StaticLevel*env.LevelScale, MinAmount))
		case Periodic:
			if r.Available {
				if r.TimeInState >= eco.DecayDelay {
					eco.Decay.Apply(r)
				}
			} else if r.TimeInState >= eco.MinUpdatesUnavailable && rng.Float64() < eco.PulseProb {
				r.SetAmount(eco.PeriodicLevel * env.LevelScale)
				if r.Available && onPulse != nil {
					onPulse(r.ID)
				}
			}
		}
		r.AdvanceAvailabilityTracking()
	}
}

// Total is the summed amount of every resource.
func (env *Environment) Total() float64 {
	var sum float64
	for i := range env.Resources {
		sum += env.Resources[i].Amount
	}
	return sum
}
