package deme

import (
	"fmt"

	"dolworld.ai/internal/sim/substrate"
	"dolworld.ai/internal/sim/tag"
	"dolworld.ai/internal/sim/topology"
)

// Cell is one grid position of an organism plus the program unit attached to
// it. ID never changes.
type Cell struct {
	ID     int
	Active bool
	Facing topology.Direction

	ReproTag       tag.Tag
	ReproTagLocked bool

	// Sensors and Consumed are indexed by resource id.
	Sensors  []bool
	Consumed []bool

	LocalResources float64

	Unit substrate.Unit
}

// ActivateCell loads p, starts a context bound at entry and marks the cell
// active. The entry tag becomes the cell's repro tag.
func (c *Cell) ActivateCell(p substrate.Program, entry tag.Tag, input substrate.Memory, main, lockReproTag bool) {
	c.Unit.LoadProgram(p)
	c.Unit.SpawnContext(entry, input, main)
	c.Active = true
	c.ReproTag = entry
	c.ReproTagLocked = lockReproTag
}

// AdvanceStep runs one step of the cell's program. Inactive cells do nothing.
func (c *Cell) AdvanceStep() {
	if !c.Active {
		return
	}
	c.Unit.AdvanceOneStep()
}

func (c *Cell) SetResourceSensor(resID int, on bool) {
	c.checkResource(resID)
	c.Sensors[resID] = on
}

func (c *Cell) IsSensingResource(resID int) bool {
	c.checkResource(resID)
	return c.Sensors[resID]
}

func (c *Cell) RotateCW(steps int)  { c.Facing = c.Facing.Rotate(steps) }
func (c *Cell) RotateCCW(steps int) { c.Facing = c.Facing.Rotate(-steps) }

// Reset returns the cell to its inert state. Facing goes back to N.
func (c *Cell) Reset() {
	c.Active = false
	c.Facing = topology.N
	c.ReproTag = 0
	c.ReproTagLocked = false
	c.LocalResources = 0
	clear(c.Sensors)
	clear(c.Consumed)
	c.Unit.ResetProgram()
}

func (c *Cell) checkResource(resID int) {
	if resID < 0 || resID >= len(c.Sensors) {
		panic(fmt.Sprintf("deme: cell %d: resource id %d out of range [0,%d)", c.ID, resID, len(c.Sensors)))
	}
}
