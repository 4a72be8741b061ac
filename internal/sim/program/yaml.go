package program

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dolworld.ai/internal/sim/tag"
)

type programDoc struct {
	BirthTag  string        `yaml:"birth_tag"`
	Functions []functionDoc `yaml:"functions"`
}

type functionDoc struct {
	Tag  string           `yaml:"tag"`
	Body []instructionDoc `yaml:"body"`
}

type instructionDoc struct {
	Op   string `yaml:"op"`
	Args []int  `yaml:"args,omitempty"`
	Tag  string `yaml:"tag,omitempty"`
}

// LoadYAML reads an ancestor genome: a program plus the tag its seed cell
// starts at. A missing birth_tag defaults to the first function's tag.
func LoadYAML(path string, lib *Library) (*Program, tag.Tag, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	p, birth, err := ParseYAML(b, lib)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	return p, birth, nil
}

func ParseYAML(b []byte, lib *Library) (*Program, tag.Tag, error) {
	var doc programDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, 0, err
	}
	if len(doc.Functions) == 0 {
		return nil, 0, fmt.Errorf("program has no functions")
	}

	p := &Program{Functions: make([]Function, len(doc.Functions))}
	for fi, fd := range doc.Functions {
		ft, err := tag.Parse(fd.Tag)
		if err != nil {
			return nil, 0, fmt.Errorf("function %d: %w", fi, err)
		}
		body := make([]Instruction, len(fd.Body))
		for ii, id := range fd.Body {
			if !lib.Has(id.Op) {
				return nil, 0, fmt.Errorf("function %d instruction %d: unknown op %q", fi, ii, id.Op)
			}
			if len(id.Args) > NumArgs {
				return nil, 0, fmt.Errorf("function %d instruction %d: %d args, max %d", fi, ii, len(id.Args), NumArgs)
			}
			inst := Instruction{Op: id.Op}
			copy(inst.Args[:], id.Args)
			if id.Tag != "" {
				if inst.Tag, err = tag.Parse(id.Tag); err != nil {
					return nil, 0, fmt.Errorf("function %d instruction %d: %w", fi, ii, err)
				}
			}
			body[ii] = inst
		}
		p.Functions[fi] = Function{Tag: ft, Body: body}
	}

	birth := p.Functions[0].Tag
	if doc.BirthTag != "" {
		t, err := tag.Parse(doc.BirthTag)
		if err != nil {
			return nil, 0, fmt.Errorf("birth_tag: %w", err)
		}
		birth = t
	}
	return p, birth, nil
}
