package tag

import (
	"math/rand"
	"testing"
)

func TestParseString_RoundTrip(t *testing.T) {
	in := Tag(0b1010_0000_1111_0001)
	got, err := Parse(in.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != in {
		t.Fatalf("round trip: got %s want %s", got, in)
	}
	if short, err := Parse("101"); err != nil || short != 5 {
		t.Fatalf("short parse: got %d, %v", short, err)
	}
	if _, err := Parse("10x1"); err == nil {
		t.Fatalf("expected error for bad bit")
	}
	if _, err := Parse("11111111111111111"); err == nil {
		t.Fatalf("expected error for overlong tag")
	}
}

func TestAffinity(t *testing.T) {
	a := Tag(0)
	if Affinity(a, a) != 1 {
		t.Fatalf("self affinity should be 1")
	}
	if Affinity(a, ^a) != 0 {
		t.Fatalf("complement affinity should be 0")
	}
	if got := Affinity(a, Tag(0xFF)); got != 0.5 {
		t.Fatalf("half affinity: got %v", got)
	}
}

func TestRandomUnique_AllTagsOfSmallSpace(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	first, err := RandomUnique(rng, 8, nil)
	if err != nil {
		t.Fatalf("RandomUnique: %v", err)
	}
	second, err := RandomUnique(rng, 4, first)
	if err != nil {
		t.Fatalf("RandomUnique: %v", err)
	}
	for _, a := range first {
		for _, b := range second {
			if a == b {
				t.Fatalf("tag %s drawn twice", a)
			}
		}
	}
	if _, err := RandomUnique(rng, 1<<Width, first); err == nil {
		t.Fatalf("expected exhaustion error")
	}
}

func TestHadamard_PairwiseDistance(t *testing.T) {
	tags := Hadamard()
	if len(tags) != Width {
		t.Fatalf("len: got %d want %d", len(tags), Width)
	}
	for i := range tags {
		for j := i + 1; j < len(tags); j++ {
			if d := Hamming(tags[i], tags[j]); d != Width/2 {
				t.Fatalf("hamming(%d,%d): got %d want %d", i, j, d, Width/2)
			}
			if Affinity(tags[i], tags[j]) != 0.5 {
				t.Fatalf("affinity(%d,%d) != 0.5", i, j)
			}
		}
	}
}
