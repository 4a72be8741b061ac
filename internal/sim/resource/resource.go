package resource

import (
	"fmt"
	"strings"
)

// MinAmount is the smallest amount a resource can hold. Anything less is
// rounded down to zero, which makes the resource unavailable.
const MinAmount = 0.1

type Kind int

const (
	Static Kind = iota
	Periodic
)

func (k Kind) String() string {
	switch k {
	case Static:
		return "STATIC"
	case Periodic:
		return "PERIODIC"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Resource tracks the level of one resource and how long it has been in its
// current availability state.
type Resource struct {
	ID          int
	Kind        Kind
	Amount      float64
	Available   bool
	TimeInState uint64
}

func (r *Resource) Reset() {
	r.Amount = 0
	r.Available = false
	r.TimeInState = 0
}

// TimeAvailable is the time spent available, 0 while unavailable.
func (r *Resource) TimeAvailable() uint64 {
	if r.Available {
		return r.TimeInState
	}
	return 0
}

// TimeUnavailable is the time spent unavailable, 0 while available.
func (r *Resource) TimeUnavailable() uint64 {
	if !r.Available {
		return r.TimeInState
	}
	return 0
}

// ConsumeFixed removes up to value and returns the amount removed.
func (r *Resource) ConsumeFixed(value float64) float64 {
	if value < 0 {
		panic(fmt.Sprintf("resource %d: negative consumption %v", r.ID, value))
	}
	var consumed float64
	if value > r.Amount {
		consumed = r.Amount
		r.Amount = 0
	} else {
		consumed = value
		if r.Amount-value < MinAmount {
			r.Amount = 0
		} else {
			r.Amount -= value
		}
	}
	r.checkDepleted()
	return consumed
}

// ConsumeProportion removes prop*Amount and returns the amount removed.
func (r *Resource) ConsumeProportion(prop float64) float64 {
	if prop < 0 || prop > 1 {
		panic(fmt.Sprintf("resource %d: consumption proportion %v outside [0,1]", r.ID, prop))
	}
	consumed := prop * r.Amount
	r.Amount -= consumed
	if r.Amount < MinAmount {
		r.Amount = 0
	}
	r.checkDepleted()
	return consumed
}

func (r *Resource) DecayFixed(value float64) {
	if value > r.Amount {
		r.Amount = 0
	} else {
		r.Amount -= value
	}
	if r.Amount < MinAmount {
		r.Amount = 0
	}
	r.checkDepleted()
}

func (r *Resource) DecayProportion(prop float64) {
	r.Amount -= prop * r.Amount
	if r.Amount < MinAmount {
		r.Amount = 0
	}
	r.checkDepleted()
}

func (r *Resource) SetAmount(value float64) {
	if value < 0 {
		panic(fmt.Sprintf("resource %d: negative amount %v", r.ID, value))
	}
	if value < MinAmount {
		value = 0
	}
	r.Amount = value
	r.checkTransition()
}

func (r *Resource) IncAmount(value float64) {
	if r.Amount+value < 0 {
		panic(fmt.Sprintf("resource %d: increment %v drives amount %v negative", r.ID, value, r.Amount))
	}
	r.Amount += value
	if r.Amount < MinAmount {
		r.Amount = 0
	}
	r.checkTransition()
}

// AdvanceAvailabilityTracking counts one more tick in the current state.
func (r *Resource) AdvanceAvailabilityTracking() { r.TimeInState++ }

func (r *Resource) checkDepleted() {
	if r.Available && r.Amount == 0 {
		r.Available = false
		r.TimeInState = 0
	}
}

func (r *Resource) checkTransition() {
	switch {
	case r.Amount == 0 && r.Available:
		r.Available = false
		r.TimeInState = 0
	case r.Amount > 0 && !r.Available:
		r.Available = true
		r.TimeInState = 0
	}
}

// Mode selects how a consumption or decay policy removes resource.
type Mode int

const (
	Fixed Mode = iota
	Proportional
)

func (m Mode) String() string {
	switch m {
	case Fixed:
		return "fixed"
	case Proportional:
		return "proportional"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed":
		return Fixed, nil
	case "proportional", "proportion":
		return Proportional, nil
	default:
		return Fixed, fmt.Errorf("unknown resource mode %q", s)
	}
}

// ConsumePolicy is how much an organism's cell takes from an available
// resource per metabolize attempt.
type ConsumePolicy struct {
	Mode  Mode
	Value float64
}

func (p ConsumePolicy) Apply(r *Resource) float64 {
	if p.Mode == Proportional {
		return r.ConsumeProportion(p.Value)
	}
	return r.ConsumeFixed(p.Value)
}

// DecayPolicy is how much an available periodic resource loses per tick once
// its decay delay has passed.
type DecayPolicy struct {
	Mode  Mode
	Value float64
}

func (p DecayPolicy) Apply(r *Resource) {
	if p.Mode == Proportional {
		r.DecayProportion(p.Value)
		return
	}
	r.DecayFixed(p.Value)
}
