// Package tag implements the fixed-width bit-vector tags used to address
// program entry points, events and resources by affinity.
package tag

import (
	"fmt"
	"math/bits"
	"math/rand"
	"strings"
)

// Width is the number of bits in a Tag.
const Width = 16

type Tag uint16

// Bit reports whether bit i (0 = least significant) is set.
func (t Tag) Bit(i int) bool { return t&(1<<uint(i)) != 0 }

func (t Tag) With(i int, on bool) Tag {
	if on {
		return t | 1<<uint(i)
	}
	return t &^ (1 << uint(i))
}

func (t Tag) Toggle(i int) Tag { return t ^ 1<<uint(i) }

func (t Tag) OnesCount() int { return bits.OnesCount16(uint16(t)) }

// String renders the tag most-significant bit first.
func (t Tag) String() string {
	var b strings.Builder
	b.Grow(Width)
	for i := Width - 1; i >= 0; i-- {
		if t.Bit(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Parse reads a bit string as produced by String. Shorter strings are
// treated as the low-order bits.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > Width {
		return 0, fmt.Errorf("tag %q: want 1..%d bits", s, Width)
	}
	var t Tag
	for _, c := range s {
		t <<= 1
		switch c {
		case '1':
			t |= 1
		case '0':
		default:
			return 0, fmt.Errorf("tag %q: bad bit %q", s, c)
		}
	}
	return t, nil
}

// Hamming returns the number of differing bits.
func Hamming(a, b Tag) int { return bits.OnesCount16(uint16(a ^ b)) }

// Affinity is the simple matching coefficient of a and b in [0,1].
func Affinity(a, b Tag) float64 {
	return float64(Width-Hamming(a, b)) / float64(Width)
}

func Random(rng *rand.Rand) Tag { return Tag(rng.Intn(1 << Width)) }

// RandomUnique draws n distinct tags that also differ from every tag in
// exclude.
func RandomUnique(rng *rand.Rand, n int, exclude []Tag) ([]Tag, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative tag count %d", n)
	}
	seen := make(map[Tag]struct{}, n+len(exclude))
	for _, t := range exclude {
		seen[t] = struct{}{}
	}
	if len(seen)+n > 1<<Width {
		return nil, fmt.Errorf("cannot draw %d unique %d-bit tags (%d excluded)", n, Width, len(seen))
	}
	out := make([]Tag, 0, n)
	for len(out) < n {
		t := Random(rng)
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Hadamard returns Width tags built from the rows of a Sylvester Hadamard
// matrix. Every pair differs in exactly Width/2 bits.
func Hadamard() []Tag {
	var m [Width][Width]bool
	m[0][0] = true
	for k := 1; k < Width; k += k {
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				m[i+k][j] = m[i][j]
				m[i][j+k] = m[i][j]
				m[i+k][j+k] = !m[i][j]
			}
		}
	}
	out := make([]Tag, Width)
	for i := range m {
		var t Tag
		for j, on := range m[i] {
			t = t.With(j, on)
		}
		out[i] = t
	}
	return out
}
