package program

import (
	"fmt"
	"math/rand"

	"dolworld.ai/internal/sim/substrate"
	"dolworld.ai/internal/sim/tag"
)

type Config struct {
	// MaxCores caps concurrently live execution contexts. <= 0 means no cap.
	MaxCores     int
	MaxCallDepth int
	// MinBindThreshold is the minimum tag affinity for a function to bind.
	MinBindThreshold    float64
	StochasticTieBreaks bool
}

func DefaultConfig() Config {
	return Config{
		MaxCores:         8,
		MaxCallDepth:     128,
		MinBindThreshold: 0.5,
	}
}

type frame struct {
	fn    int
	ip    int
	local substrate.Memory
}

// Core is one execution context: a call stack plus input and output buffers.
type Core struct {
	Input  substrate.Memory
	Output substrate.Memory

	main  bool
	entry int
	stack []*frame
	dead  bool
}

func (c *Core) Main() bool  { return c.main }
func (c *Core) Depth() int  { return len(c.stack) }
func (c *Core) Dead() bool  { return c.dead }
func (c *Core) Terminate()  { c.dead = true }
func (c *Core) top() *frame { return c.stack[len(c.stack)-1] }

// Local is the working memory of the innermost call frame.
func (c *Core) Local() substrate.Memory { return c.top().local }

// Function is the index of the function the innermost frame executes.
func (c *Core) Function() int { return c.top().fn }

func (c *Core) skip() { c.top().ip++ }

// Hardware runs one program for one cell. It implements substrate.Unit.
type Hardware struct {
	addr substrate.Address
	lib  *Library
	rng  *rand.Rand
	cfg  Config

	prog    *Program
	cores   []*Core
	pending []*Core
	events  []substrate.Event
	traits  map[int]float64
}

var _ substrate.Unit = (*Hardware)(nil)

func New(addr substrate.Address, lib *Library, rng *rand.Rand, cfg Config) *Hardware {
	return &Hardware{
		addr:   addr,
		lib:    lib,
		rng:    rng,
		cfg:    cfg,
		traits: map[int]float64{},
	}
}

func (hw *Hardware) LoadProgram(p substrate.Program) {
	prog, ok := p.(*Program)
	if !ok {
		panic(fmt.Sprintf("program: cannot load %T", p))
	}
	hw.prog = prog
}

// Program returns the loaded program, or nil. A nil *Program is never
// returned wrapped in the interface.
func (hw *Hardware) Program() substrate.Program {
	if hw.prog == nil {
		return nil
	}
	return hw.prog
}

func (hw *Hardware) ResetProgram() {
	hw.prog = nil
	hw.cores = nil
	hw.pending = nil
	hw.events = nil
}

func (hw *Hardware) SetMaxCores(n int)          { hw.cfg.MaxCores = n }
func (hw *Hardware) GetTrait(id int) float64    { return hw.traits[id] }
func (hw *Hardware) SetTrait(id int, v float64) { hw.traits[id] = v }

func (hw *Hardware) QueueEvent(ev substrate.Event) {
	hw.events = append(hw.events, ev)
}

func (hw *Hardware) NumContexts() int {
	n := len(hw.pending)
	for _, c := range hw.cores {
		if !c.dead {
			n++
		}
	}
	return n
}

// Cores returns the live execution contexts, including ones that start on the
// next step.
func (hw *Hardware) Cores() []*Core {
	out := make([]*Core, 0, len(hw.cores)+len(hw.pending))
	for _, c := range hw.cores {
		if !c.dead {
			out = append(out, c)
		}
	}
	return append(out, hw.pending...)
}

// SpawnContext starts a core at the function best matching t. New cores
// begin executing on the next AdvanceOneStep.
func (hw *Hardware) SpawnContext(t tag.Tag, input substrate.Memory, main bool) bool {
	if hw.prog == nil {
		return false
	}
	if hw.cfg.MaxCores > 0 && hw.NumContexts() >= hw.cfg.MaxCores {
		return false
	}
	fn := hw.match(t)
	if fn < 0 {
		return false
	}
	if input == nil {
		input = substrate.Memory{}
	}
	hw.pending = append(hw.pending, &Core{
		Input:  input.Clone(),
		Output: substrate.Memory{},
		main:   main,
		entry:  fn,
		stack:  []*frame{{fn: fn, local: substrate.Memory{}}},
	})
	return true
}

// AdvanceOneStep turns queued events into cores and executes one instruction
// on every core.
func (hw *Hardware) AdvanceOneStep() {
	if hw.prog == nil {
		return
	}
	for _, ev := range hw.events {
		hw.SpawnContext(ev.Tag, ev.Payload, false)
	}
	hw.events = hw.events[:0]

	hw.cores = append(hw.cores, hw.pending...)
	hw.pending = hw.pending[:0]

	n := len(hw.cores)
	for i := 0; i < n && hw.prog != nil; i++ {
		if c := hw.cores[i]; !c.dead {
			hw.exec(c)
		}
	}

	live := hw.cores[:0]
	for _, c := range hw.cores {
		if !c.dead {
			live = append(live, c)
		}
	}
	for i := len(live); i < len(hw.cores); i++ {
		hw.cores[i] = nil
	}
	hw.cores = live
}

func (hw *Hardware) exec(c *Core) {
	f := c.top()
	body := hw.prog.Functions[f.fn].Body
	if f.ip >= len(body) {
		hw.ret(c)
		return
	}
	inst := body[f.ip]
	f.ip++
	if h := hw.lib.lookup(inst.Op); h != nil {
		h(hw.addr, hw, c, inst)
	}
}

func (hw *Hardware) call(c *Core, t tag.Tag) {
	if hw.cfg.MaxCallDepth > 0 && len(c.stack) >= hw.cfg.MaxCallDepth {
		return
	}
	fn := hw.match(t)
	if fn < 0 {
		return
	}
	c.stack = append(c.stack, &frame{fn: fn, local: c.Local().Clone()})
}

// ret pops a frame. Returning from the outermost frame restarts a main core
// at its entry function and ends any other core.
func (hw *Hardware) ret(c *Core) {
	if len(c.stack) > 1 {
		c.stack[len(c.stack)-1] = nil
		c.stack = c.stack[:len(c.stack)-1]
		return
	}
	if c.main {
		c.stack[0] = &frame{fn: c.entry, local: substrate.Memory{}}
		return
	}
	c.dead = true
}

// match returns the function whose tag has the highest affinity with t, or
// -1 when nothing reaches the bind threshold. Ties go to the lowest index
// unless stochastic tie breaks are on.
func (hw *Hardware) match(t tag.Tag) int {
	best, bestScore, ties := -1, -1.0, 0
	for i, f := range hw.prog.Functions {
		s := tag.Affinity(t, f.Tag)
		if s < hw.cfg.MinBindThreshold {
			continue
		}
		switch {
		case s > bestScore:
			best, bestScore, ties = i, s, 1
		case s == bestScore:
			ties++
			if hw.cfg.StochasticTieBreaks && hw.rng.Intn(ties) == 0 {
				best = i
			}
		}
	}
	return best
}
