package program

import "dolworld.ai/internal/sim/substrate"

// Handler executes one instruction on core c of hw. addr is the cell the
// hardware belongs to.
type Handler func(addr substrate.Address, hw *Hardware, c *Core, inst Instruction)

// Library maps operation names to handlers. Names keep insertion order so
// random program generation is reproducible.
type Library struct {
	handlers map[string]Handler
	names    []string
}

// NewLibrary returns a library holding the base memory and control-flow
// operations.
func NewLibrary() *Library {
	l := &Library{handlers: map[string]Handler{}}

	l.Add("Nop", func(substrate.Address, *Hardware, *Core, Instruction) {})
	l.Add("Inc", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		c.Local()[inst.Args[0]]++
	})
	l.Add("Dec", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		c.Local()[inst.Args[0]]--
	})
	l.Add("Not", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		m := c.Local()
		if m[inst.Args[0]] == 0 {
			m[inst.Args[0]] = 1
		} else {
			m[inst.Args[0]] = 0
		}
	})
	l.Add("SetMem", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		c.Local()[inst.Args[0]] = float64(inst.Args[1])
	})
	l.Add("CopyMem", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		m := c.Local()
		m[inst.Args[1]] = m[inst.Args[0]]
	})
	l.Add("Add", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		m := c.Local()
		m[inst.Args[2]] = m[inst.Args[0]] + m[inst.Args[1]]
	})
	l.Add("Sub", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		m := c.Local()
		m[inst.Args[2]] = m[inst.Args[0]] - m[inst.Args[1]]
	})
	l.Add("Mult", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		m := c.Local()
		m[inst.Args[2]] = m[inst.Args[0]] * m[inst.Args[1]]
	})
	l.Add("Input", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		c.Local()[inst.Args[1]] = c.Input[inst.Args[0]]
	})
	l.Add("Output", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		c.Output[inst.Args[1]] = c.Local()[inst.Args[0]]
	})
	l.Add("SkipIfZero", func(_ substrate.Address, _ *Hardware, c *Core, inst Instruction) {
		if c.Local()[inst.Args[0]] == 0 {
			c.skip()
		}
	})
	l.Add("Call", func(_ substrate.Address, hw *Hardware, c *Core, inst Instruction) {
		hw.call(c, inst.Tag)
	})
	l.Add("Return", func(_ substrate.Address, hw *Hardware, c *Core, _ Instruction) {
		hw.ret(c)
	})
	l.Add("Fork", func(_ substrate.Address, hw *Hardware, c *Core, inst Instruction) {
		hw.SpawnContext(inst.Tag, c.Local().Clone(), false)
	})
	l.Add("Terminate", func(_ substrate.Address, _ *Hardware, c *Core, _ Instruction) {
		c.Terminate()
	})
	return l
}

// Add registers h under name, replacing any earlier handler.
func (l *Library) Add(name string, h Handler) {
	if _, ok := l.handlers[name]; !ok {
		l.names = append(l.names, name)
	}
	l.handlers[name] = h
}

func (l *Library) Has(name string) bool {
	_, ok := l.handlers[name]
	return ok
}

func (l *Library) lookup(name string) Handler { return l.handlers[name] }

// Names returns operation names in registration order.
func (l *Library) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}
