package topology

import (
	"fmt"
	"strings"
)

/*
Cell indexing (e.g., 3x3):

	6 7 8
	3 4 5
	0 1 2

North is +y.
*/

// Direction is one of the eight compass facings a cell can have.
type Direction int

const (
	N Direction = iota
	NE
	E
	SE
	S
	SW
	W
	NW
)

// NumDirections is the number of neighbors every grid position has.
const NumDirections = 8

var dirNames = [NumDirections]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// (dx, dy) per direction, indexed by Direction.
var dirOffsets = [NumDirections][2]int{
	{0, 1},
	{1, 1},
	{1, 0},
	{1, -1},
	{0, -1},
	{-1, -1},
	{-1, 0},
	{-1, 1},
}

// Directions lists every direction in clockwise order starting at N.
var Directions = [NumDirections]Direction{N, NE, E, SE, S, SW, W, NW}

func (d Direction) String() string {
	if d < 0 || int(d) >= NumDirections {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return dirNames[d]
}

// Valid reports whether d is one of the eight compass directions.
func (d Direction) Valid() bool { return d >= 0 && int(d) < NumDirections }

// Rotate turns d clockwise by steps (counter-clockwise when negative).
// Any integer is accepted; multiples of 8 are the identity.
func (d Direction) Rotate(steps int) Direction {
	return Direction(mod(int(d)+steps, NumDirections))
}

// Opposite returns the direction facing away from d.
func (d Direction) Opposite() Direction { return d.Rotate(NumDirections / 2) }

// Offset returns the (dx, dy) step for d.
func (d Direction) Offset() (dx, dy int) {
	o := dirOffsets[d]
	return o[0], o[1]
}

func ParseDirection(s string) (Direction, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range dirNames {
		if name == s {
			return Direction(i), nil
		}
	}
	return N, fmt.Errorf("unknown direction %q", s)
}

// mod is a modulo that is non-negative for negative operands.
func mod(a, m int) int {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}

// Grid is a W x H toroidal grid with a precomputed 8-connected neighbor table.
// It is immutable after New and may be shared between demes.
type Grid struct {
	width  int
	height int
	lookup []int
}

func New(width, height int) (*Grid, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid grid dimensions %dx%d", width, height)
	}
	g := &Grid{width: width, height: height}
	g.buildNeighborLookup()
	return g, nil
}

func (g *Grid) buildNeighborLookup() {
	n := g.width * g.height
	g.lookup = make([]int, n*NumDirections)
	for id := 0; id < n; id++ {
		x, y := g.X(id), g.Y(id)
		for d := 0; d < NumDirections; d++ {
			dx, dy := Direction(d).Offset()
			g.lookup[id*NumDirections+d] = g.ID(mod(x+dx, g.width), mod(y+dy, g.height))
		}
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }
func (g *Grid) Size() int   { return g.width * g.height }

func (g *Grid) X(id int) int { return id % g.width }
func (g *Grid) Y(id int) int { return id / g.width }

func (g *Grid) ID(x, y int) int { return y*g.width + x }

// Contains reports whether id addresses a position on the grid.
func (g *Grid) Contains(id int) bool { return id >= 0 && id < g.Size() }

// Neighbor returns the id of the position adjacent to id in direction dir.
func (g *Grid) Neighbor(id int, dir Direction) int {
	if !g.Contains(id) {
		panic(fmt.Sprintf("topology: cell id %d out of range [0,%d)", id, g.Size()))
	}
	if !dir.Valid() {
		panic(fmt.Sprintf("topology: invalid direction %d", int(dir)))
	}
	return g.lookup[id*NumDirections+int(dir)]
}

// Neighbors returns all eight neighbor ids of id, indexed by Direction.
// On small grids entries may repeat or equal id itself.
func (g *Grid) Neighbors(id int) [NumDirections]int {
	var out [NumDirections]int
	for d := 0; d < NumDirections; d++ {
		out[d] = g.Neighbor(id, Direction(d))
	}
	return out
}

// String renders the neighbor map, one block per cell.
func (g *Grid) String() string {
	var b strings.Builder
	for id := 0; id < g.Size(); id++ {
		fmt.Fprintf(&b, "%d (%d, %d):\n", id, g.X(id), g.Y(id))
		for d := 0; d < NumDirections; d++ {
			nid := g.lookup[id*NumDirections+d]
			fmt.Fprintf(&b, "  %s(%d): %d(%d, %d)\n", Direction(d), d, nid, g.X(nid), g.Y(nid))
		}
	}
	return b.String()
}
