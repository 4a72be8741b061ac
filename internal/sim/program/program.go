// Package program is a small event-driven linear GP substrate. Each cell of a
// deme owns one Hardware; programs are lists of tagged functions and execution
// contexts (cores) are spawned by tag affinity.
package program

import (
	"fmt"
	"math/rand"

	"dolworld.ai/internal/sim/tag"
)

// NumArgs is the number of integer arguments every instruction carries.
const NumArgs = 3

type Instruction struct {
	Op   string
	Args [NumArgs]int
	Tag  tag.Tag
}

type Function struct {
	Tag  tag.Tag
	Body []Instruction
}

// Program is immutable once built; cells share it by pointer.
type Program struct {
	Functions []Function
}

func (p *Program) Size() int {
	if p == nil {
		return 0
	}
	return len(p.Functions)
}

// InstCount is the total number of instructions across every function.
func (p *Program) InstCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, f := range p.Functions {
		n += len(f.Body)
	}
	return n
}

// Constraints bound the shape of generated programs.
type Constraints struct {
	MinFunctions   int
	MaxFunctions   int
	MinFunctionLen int
	MaxFunctionLen int
	MinArg         int
	MaxArg         int
}

func DefaultConstraints() Constraints {
	return Constraints{
		MinFunctions:   1,
		MaxFunctions:   64,
		MinFunctionLen: 1,
		MaxFunctionLen: 256,
		MinArg:         0,
		MaxArg:         15,
	}
}

func (c Constraints) check() error {
	if c.MinFunctions < 1 || c.MaxFunctions < c.MinFunctions {
		return fmt.Errorf("function count bounds [%d,%d] invalid", c.MinFunctions, c.MaxFunctions)
	}
	if c.MinFunctionLen < 1 || c.MaxFunctionLen < c.MinFunctionLen {
		return fmt.Errorf("function length bounds [%d,%d] invalid", c.MinFunctionLen, c.MaxFunctionLen)
	}
	if c.MaxArg < c.MinArg {
		return fmt.Errorf("argument bounds [%d,%d] invalid", c.MinArg, c.MaxArg)
	}
	return nil
}

// Validate reports whether p satisfies c and only uses operations known to lib.
func (c Constraints) Validate(p *Program, lib *Library) error {
	if err := c.check(); err != nil {
		return err
	}
	if n := p.Size(); n < c.MinFunctions || n > c.MaxFunctions {
		return fmt.Errorf("program has %d functions, want [%d,%d]", n, c.MinFunctions, c.MaxFunctions)
	}
	for fi, f := range p.Functions {
		if n := len(f.Body); n < c.MinFunctionLen || n > c.MaxFunctionLen {
			return fmt.Errorf("function %d has %d instructions, want [%d,%d]", fi, n, c.MinFunctionLen, c.MaxFunctionLen)
		}
		for ii, inst := range f.Body {
			if !lib.Has(inst.Op) {
				return fmt.Errorf("function %d instruction %d: unknown op %q", fi, ii, inst.Op)
			}
			for _, a := range inst.Args {
				if a < c.MinArg || a > c.MaxArg {
					return fmt.Errorf("function %d instruction %d: argument %d outside [%d,%d]", fi, ii, a, c.MinArg, c.MaxArg)
				}
			}
		}
	}
	return nil
}

// Random draws a program uniformly within c using the operations of lib.
func Random(rng *rand.Rand, lib *Library, c Constraints) (*Program, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	ops := lib.Names()
	if len(ops) == 0 {
		return nil, fmt.Errorf("empty instruction library")
	}
	between := func(lo, hi int) int { return lo + rng.Intn(hi-lo+1) }

	p := &Program{Functions: make([]Function, between(c.MinFunctions, c.MaxFunctions))}
	for fi := range p.Functions {
		body := make([]Instruction, between(c.MinFunctionLen, c.MaxFunctionLen))
		for ii := range body {
			inst := Instruction{Op: ops[rng.Intn(len(ops))], Tag: tag.Random(rng)}
			for a := range inst.Args {
				inst.Args[a] = between(c.MinArg, c.MaxArg)
			}
			body[ii] = inst
		}
		p.Functions[fi] = Function{Tag: tag.Random(rng), Body: body}
	}
	return p, nil
}
