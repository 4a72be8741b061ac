package world

import (
	"dolworld.ai/internal/sim/substrate"
)

// MetabolizeOutcome is the single result of one metabolize attempt.
type MetabolizeOutcome int

const (
	// Duplicate: the cell already tried this resource during the current update.
	Duplicate MetabolizeOutcome = iota
	// Consumed: the resource was available and the take went to the cell.
	Consumed
	// Penalized: the resource was unavailable and the organism pool paid the
	// failure penalty.
	Penalized
)

func (o MetabolizeOutcome) String() string {
	switch o {
	case Duplicate:
		return "DUPLICATE"
	case Consumed:
		return "CONSUMED"
	case Penalized:
		return "PENALIZED"
	default:
		return "UNKNOWN"
	}
}

// AttemptToMetabolize lets cell of organism org try to take resource res from
// its slot's environment. A cell gets one attempt per resource per update.
func (w *World) AttemptToMetabolize(org, cell, res int) MetabolizeOutcome {
	s := w.slotAt(org)
	r := s.env.Get(res)
	c := s.deme.GetCell(cell)
	if c.Consumed[res] {
		w.counters.duplicates++
		return Duplicate
	}
	c.Consumed[res] = true

	if r.Available {
		got := w.cfg.Economy.Consume.Apply(r)
		c.LocalResources += got
		w.counters.consumed += got
		w.counters.metabolized++
		return Consumed
	}

	s.deme.Pool -= w.cfg.Economy.FailurePenalty
	if s.deme.Pool < 0 {
		s.deme.Pool = 0
	}
	w.counters.penalized++
	return Penalized
}

func (w *World) SetCellSensor(org, cell, res int, on bool) {
	w.slotAt(org).deme.GetCell(cell).SetResourceSensor(res, on)
}

func (w *World) AttemptCellDivision(org, cell int) bool {
	ok := w.slotAt(org).deme.AttemptCellDivision(cell, w.cfg.DivisionCost)
	if ok {
		w.counters.divisions++
	}
	return ok
}

func (w *World) SendMessage(org, cell int, ev substrate.Event) bool {
	ok := w.slotAt(org).deme.SendMessage(cell, ev)
	if ok {
		w.counters.messages++
	}
	return ok
}

func (w *World) BroadcastMessage(org, cell int, ev substrate.Event) int {
	n := w.slotAt(org).deme.BroadcastMessage(cell, ev)
	w.counters.messages += n
	return n
}

// Deposit moves a cell's local resources into its organism's pool.
func (w *World) Deposit(org, cell int) float64 {
	s := w.slotAt(org)
	c := s.deme.GetCell(cell)
	amt := c.LocalResources
	s.deme.Pool += amt
	c.LocalResources = 0
	return amt
}
