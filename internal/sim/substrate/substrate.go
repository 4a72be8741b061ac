// Package substrate defines the contract between the multicellular engine and
// the program-execution units that run inside each cell. The engine only ever
// talks to a Unit through this interface.
package substrate

import "dolworld.ai/internal/sim/tag"

// Address identifies a cell: the population slot of its organism and its
// position on that organism's grid. Both are fixed for the lifetime of the
// slot's deme, so handlers may rely on them across organism births.
type Address struct {
	Org  int
	Cell int
}

// Trait ids stamped on every unit.
const (
	TraitOrgID  = 0
	TraitCellID = 1
)

// Memory is a sparse numeric register file passed into execution contexts.
type Memory map[int]float64

func (m Memory) Clone() Memory {
	if m == nil {
		return nil
	}
	out := make(Memory, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Event is a tagged message queued on a unit. The receiving unit spawns an
// execution context bound at Tag with Payload as its input memory.
type Event struct {
	Tag     tag.Tag
	Payload Memory
}

// Program is an opaque, immutable program understood by a specific Unit
// implementation. Programs are shared between cells by reference.
type Program interface {
	// Size returns the number of entry points (functions) in the program.
	Size() int
}

// Unit is one cell's program-execution substrate.
type Unit interface {
	LoadProgram(p Program)
	Program() Program
	// ResetProgram drops the loaded program, every execution context and
	// every queued event. Traits survive.
	ResetProgram()

	// SpawnContext starts a new execution context at the entry point best
	// matching t. It reports false when no entry point binds or the context
	// cap is reached.
	SpawnContext(t tag.Tag, input Memory, main bool) bool
	AdvanceOneStep()
	QueueEvent(ev Event)
	NumContexts() int

	SetMaxCores(n int)

	GetTrait(id int) float64
	SetTrait(id int, v float64)
}
