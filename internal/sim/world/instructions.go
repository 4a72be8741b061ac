package world

import (
	"dolworld.ai/internal/sim/program"
	"dolworld.ai/internal/sim/substrate"
)

// registerInstructions adds the operations that reach out of a cell into its
// organism and environment. Handlers get the cell's address explicitly.
func (w *World) registerInstructions() {
	numRes := w.cfg.NumStatic + w.cfg.NumPeriodic
	resArg := func(inst program.Instruction) (int, bool) {
		if numRes == 0 {
			return 0, false
		}
		res := inst.Args[0] % numRes
		if res < 0 {
			res += numRes
		}
		return res, true
	}

	w.lib.Add("Metabolize", func(addr substrate.Address, _ *program.Hardware, c *program.Core, inst program.Instruction) {
		res, ok := resArg(inst)
		if !ok {
			return
		}
		if w.AttemptToMetabolize(addr.Org, addr.Cell, res) == Consumed {
			c.Local()[inst.Args[1]] = 1
		} else {
			c.Local()[inst.Args[1]] = 0
		}
	})
	w.lib.Add("SenseOn", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, inst program.Instruction) {
		if res, ok := resArg(inst); ok {
			w.SetCellSensor(addr.Org, addr.Cell, res, true)
		}
	})
	w.lib.Add("SenseOff", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, inst program.Instruction) {
		if res, ok := resArg(inst); ok {
			w.SetCellSensor(addr.Org, addr.Cell, res, false)
		}
	})
	w.lib.Add("Divide", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, _ program.Instruction) {
		w.AttemptCellDivision(addr.Org, addr.Cell)
	})
	w.lib.Add("RotCW", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, _ program.Instruction) {
		w.slotAt(addr.Org).deme.RotateCellCW(addr.Cell, 1)
	})
	w.lib.Add("RotCCW", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, _ program.Instruction) {
		w.slotAt(addr.Org).deme.RotateCellCCW(addr.Cell, 1)
	})
	w.lib.Add("SendMsg", func(addr substrate.Address, _ *program.Hardware, c *program.Core, inst program.Instruction) {
		w.SendMessage(addr.Org, addr.Cell, substrate.Event{Tag: inst.Tag, Payload: c.Output.Clone()})
	})
	w.lib.Add("Broadcast", func(addr substrate.Address, _ *program.Hardware, c *program.Core, inst program.Instruction) {
		w.BroadcastMessage(addr.Org, addr.Cell, substrate.Event{Tag: inst.Tag, Payload: c.Output.Clone()})
	})
	w.lib.Add("Deposit", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, _ program.Instruction) {
		w.Deposit(addr.Org, addr.Cell)
	})
	w.lib.Add("SetReproTag", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, inst program.Instruction) {
		cell := w.slotAt(addr.Org).deme.GetCell(addr.Cell)
		if !cell.ReproTagLocked {
			cell.ReproTag = inst.Tag
		}
	})
	w.lib.Add("LockRepro", func(addr substrate.Address, _ *program.Hardware, _ *program.Core, _ program.Instruction) {
		w.slotAt(addr.Org).deme.GetCell(addr.Cell).ReproTagLocked = true
	})
}
