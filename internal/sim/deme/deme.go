// Package deme implements the organism grid: a fixed toroidal arrangement of
// cells, each running its own program unit, scheduled in a shuffled order every
// tick.
package deme

import (
	"fmt"
	"math/rand"

	"dolworld.ai/internal/sim/substrate"
	"dolworld.ai/internal/sim/tag"
	"dolworld.ai/internal/sim/topology"
)

// UnitFactory builds the program unit for one cell slot.
type UnitFactory func(addr substrate.Address) substrate.Unit

// Deme is one population slot's organism. It is built once and reused across
// organism deaths and births.
type Deme struct {
	ID int

	// Pool is the organism-level resource pool.
	Pool float64

	grid   *topology.Grid
	cells  []Cell
	order  []int
	active bool
	rng    *rand.Rand
}

func New(id int, grid *topology.Grid, numResources int, rng *rand.Rand, newUnit UnitFactory) *Deme {
	d := &Deme{
		ID:    id,
		grid:  grid,
		cells: make([]Cell, grid.Size()),
		order: make([]int, grid.Size()),
		rng:   rng,
	}
	for i := range d.cells {
		u := newUnit(substrate.Address{Org: id, Cell: i})
		u.SetTrait(substrate.TraitOrgID, float64(id))
		u.SetTrait(substrate.TraitCellID, float64(i))
		d.cells[i] = Cell{
			ID:       i,
			Sensors:  make([]bool, numResources),
			Consumed: make([]bool, numResources),
			Unit:     u,
		}
		d.order[i] = i
	}
	return d
}

func (d *Deme) Grid() *topology.Grid { return d.grid }
func (d *Deme) NumCells() int        { return len(d.cells) }
func (d *Deme) IsActive() bool       { return d.active }

func (d *Deme) ActivateDeme() { d.active = true }

// DeactivateDeme resets every cell and empties the pool.
func (d *Deme) DeactivateDeme() {
	for i := range d.cells {
		d.cells[i].Reset()
	}
	d.Pool = 0
	d.active = false
}

// ConfigureUnits applies fn to every cell's unit.
func (d *Deme) ConfigureUnits(fn func(u substrate.Unit)) {
	for i := range d.cells {
		fn(d.cells[i].Unit)
	}
}

// Advance runs ticks single advances. Consumed flags are cleared once, so the
// metabolize budget spans the whole call.
func (d *Deme) Advance(ticks int) {
	for i := range d.cells {
		clear(d.cells[i].Consumed)
	}
	for t := 0; t < ticks; t++ {
		d.SingleAdvance()
	}
}

// SingleAdvance steps every active cell once in a freshly shuffled order.
func (d *Deme) SingleAdvance() {
	d.rng.Shuffle(len(d.order), func(i, j int) {
		d.order[i], d.order[j] = d.order[j], d.order[i]
	})
	for _, id := range d.order {
		if d.cells[id].Active {
			d.cells[id].AdvanceStep()
		}
	}
}

func (d *Deme) GetCell(id int) *Cell {
	d.checkCell(id)
	return &d.cells[id]
}

func (d *Deme) GetNeighboringCellID(id int, dir topology.Direction) int {
	return d.grid.Neighbor(id, dir)
}

func (d *Deme) IsCellActive(id int) bool { return d.GetCell(id).Active }

func (d *Deme) SetCellFacing(id int, dir topology.Direction) {
	if !dir.Valid() {
		panic(fmt.Sprintf("deme: invalid direction %d", int(dir)))
	}
	d.GetCell(id).Facing = dir
}

func (d *Deme) CellFacing(id int) topology.Direction { return d.GetCell(id).Facing }

func (d *Deme) RotateCellCW(id, steps int)  { d.GetCell(id).RotateCW(steps) }
func (d *Deme) RotateCellCCW(id, steps int) { d.GetCell(id).RotateCCW(steps) }

// AttemptCellDivision places a copy of cell id into the neighbor it faces.
// It either completes or leaves the grid untouched, and reports which.
func (d *Deme) AttemptCellDivision(id int, cost float64) bool {
	if cost < 0 {
		panic(fmt.Sprintf("deme %d: negative division cost %v", d.ID, cost))
	}
	parent := d.GetCell(id)
	if parent.LocalResources < cost {
		return false
	}
	target := d.grid.Neighbor(id, parent.Facing)
	if target == id {
		return false
	}
	child := &d.cells[target]
	if child.Active {
		child.Reset()
	}
	child.ActivateCell(parent.Unit.Program(), parent.ReproTag, substrate.Memory{}, false, parent.ReproTagLocked)
	child.Facing = parent.Facing.Opposite()
	parent.LocalResources -= cost
	return true
}

// SendMessage queues ev on the neighbor cell id faces, if that neighbor is
// active and is not the sender.
func (d *Deme) SendMessage(id int, ev substrate.Event) bool {
	sender := d.GetCell(id)
	target := d.grid.Neighbor(id, sender.Facing)
	if target == id || !d.cells[target].Active {
		return false
	}
	d.cells[target].Unit.QueueEvent(ev)
	return true
}

// BroadcastMessage queues ev on every distinct active neighbor of id and
// returns the number of deliveries.
func (d *Deme) BroadcastMessage(id int, ev substrate.Event) int {
	d.checkCell(id)
	neighbors := d.grid.Neighbors(id)
	delivered := 0
	for i, n := range neighbors {
		if n == id || !d.cells[n].Active || seenBefore(neighbors[:i], n) {
			continue
		}
		d.cells[n].Unit.QueueEvent(substrate.Event{Tag: ev.Tag, Payload: ev.Payload.Clone()})
		delivered++
	}
	return delivered
}

func seenBefore(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AlertSensingCells starts a context bound at t on every active cell sensing
// resID. It returns the number of contexts started.
func (d *Deme) AlertSensingCells(resID int, t tag.Tag) int {
	d.cells[0].checkResource(resID)
	n := 0
	for i := range d.cells {
		c := &d.cells[i]
		if !c.Active || !c.IsSensingResource(resID) {
			continue
		}
		if c.Unit.SpawnContext(t, substrate.Memory{}, false) {
			n++
		}
	}
	return n
}

func (d *Deme) ActiveCellCount() int {
	n := 0
	for i := range d.cells {
		if d.cells[i].Active {
			n++
		}
	}
	return n
}

func (d *Deme) TotalLocalResources() float64 {
	var sum float64
	for i := range d.cells {
		sum += d.cells[i].LocalResources
	}
	return sum
}

// CellCodes returns one code per cell: 0 when inactive, 1+facing otherwise.
func (d *Deme) CellCodes() []uint16 {
	out := make([]uint16, len(d.cells))
	for i := range d.cells {
		if d.cells[i].Active {
			out[i] = 1 + uint16(d.cells[i].Facing)
		}
	}
	return out
}

func (d *Deme) checkCell(id int) {
	if id < 0 || id >= len(d.cells) {
		panic(fmt.Sprintf("deme %d: cell id %d out of range [0,%d)", d.ID, id, len(d.cells)))
	}
}
