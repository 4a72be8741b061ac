package main

import (
	"strings"
	"testing"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/encoding"
)

func TestRenderFrame(t *testing.T) {
	codes := []uint16{0, 1, 0, 3, 0, 0}
	f := observerproto.DemeFrameMsg{
		Type:      observerproto.TypeDemeFrame,
		Update:    7,
		Slot:      2,
		Width:     3,
		Height:    2,
		Data:      encoding.EncodeRLE(codes),
		Resources: []observerproto.ResourceState{{ID: 0, Kind: "PERIODIC", Amount: 1.5, Available: true, TimeInState: 4}},
	}
	got, err := renderFrame(f)
	if err != nil {
		t.Fatalf("renderFrame: %v", err)
	}
	lines := strings.Split(got, "\n")
	if lines[0] != "slot 2 @ update 7" || lines[1] != ".^." || lines[2] != ">.." {
		t.Fatalf("frame:\n%s", got)
	}
	if !strings.Contains(lines[3], "PERIODIC") || !strings.Contains(lines[3], "amount=1.50 for 4") {
		t.Fatalf("resource line: %q", lines[3])
	}

	f.Width = 4
	if _, err := renderFrame(f); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestFormatUpdate(t *testing.T) {
	got := formatUpdate(observerproto.UpdateMsg{Update: 3, Organisms: 2, ActiveCells: 5, MeanCells: 2.5, Digest: strings.Repeat("a", 64)})
	want := "update=3 organisms=2 cells=5 mean_cells=2.50 births=0 deaths=0 divisions=0 pulses=0 digest=aaaaaaaaaaaa"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
