package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"dolworld.ai/internal/persistence/indexdb"
	persistlog "dolworld.ai/internal/persistence/log"
	"dolworld.ai/internal/sim/tuning"
	"dolworld.ai/internal/sim/world"
)

func writeIndex(t *testing.T, path string) {
	t.Helper()
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertRun("run-7", tuning.Defaults()); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}
	for u := uint64(0); u < 4; u++ {
		_ = idx.WriteUpdate(world.UpdateLogEntry{
			RunID:  "run-7",
			Seed:   1,
			Update: u,
			Digest: "abcdef0123456789",
			Stats:  world.UpdateStats{Update: u, Organisms: 2, ActiveCells: 3, MeanCells: 1.5, Births: 1},
		})
	}
	_ = idx.WriteLineage(world.LineageEntry{Update: 1, Event: "BIRTH", Slot: 1, OrgID: 2, ParentID: 1})
	_ = idx.WriteLineage(world.LineageEntry{Update: 2, Event: "BIRTH", Slot: 0, OrgID: 3, ParentID: 2})
	_ = idx.WriteLineage(world.LineageEntry{Update: 3, Event: "DEATH", Slot: 1, OrgID: 2, Reason: "age", Age: 2, Cells: 5})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestPrintSummaryUpdatesLineage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.sqlite")
	writeIndex(t, path)

	r, err := indexdb.OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	var buf bytes.Buffer
	if err := printSummary(ctx, &buf, r, false); err != nil {
		t.Fatalf("printSummary: %v", err)
	}
	for _, want := range []string{"run run-7 seed 1", "updates:       4 (last 3)", "births:        4"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("summary missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := printSummary(ctx, &buf, r, true); err != nil {
		t.Fatalf("printSummary json: %v", err)
	}
	if !strings.Contains(buf.String(), `"run_id":"run-7"`) || !strings.Contains(buf.String(), `"max_organisms":2`) {
		t.Fatalf("summary json: %s", buf.String())
	}

	rows, err := r.Updates(ctx, 2, 10)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	buf.Reset()
	printUpdates(&buf, rows)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "2\t2\t3\t1.50") || !strings.HasSuffix(lines[1], "abcdef012345") {
		t.Fatalf("updates table:\n%s", buf.String())
	}

	lin, err := r.Organism(ctx, 2)
	if err != nil {
		t.Fatalf("Organism: %v", err)
	}
	buf.Reset()
	printLineage(&buf, 2, lin)
	want := "update 1: born in slot 1 from 1\n" +
		"update 2: offspring 3 placed in slot 0\n" +
		"update 3: died (age) at age 2 with 5 cells\n"
	if buf.String() != want {
		t.Fatalf("lineage: got\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	printLineage(&buf, 99, nil)
	if buf.String() != "organism 99: no lineage events\n" {
		t.Fatalf("empty lineage: %q", buf.String())
	}
}

func TestListRuns(t *testing.T) {
	base := t.TempDir()
	if err := persistlog.WriteManifest(filepath.Join(base, "run-a"), "run-a", tuning.Defaults()); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	var buf bytes.Buffer
	if err := listRuns(&buf, base); err != nil {
		t.Fatalf("listRuns: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "run-a\tseed=1\tstarted ") {
		t.Fatalf("list: %q", buf.String())
	}
	if err := listRuns(&buf, filepath.Join(base, "missing")); err == nil {
		t.Fatalf("expected error for missing runs dir")
	}
}

func TestFetchAndPrintState(t *testing.T) {
	v := world.StateView{RunID: "run-3", Update: 1200, Slots: []world.SlotView{
		{Slot: 4, OrgID: 9, ParentID: 2, BirthUpdate: 1000, ActiveCells: 6, Pool: 1.25, LevelScale: 1, BirthTag: "0000000000000001"},
	}}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/state" {
			http.NotFound(rw, r)
			return
		}
		_ = json.NewEncoder(rw).Encode(v)
	}))
	defer srv.Close()

	got, _, err := fetchState(srv.URL + "/admin/v1/state")
	if err != nil {
		t.Fatalf("fetchState: %v", err)
	}
	var buf bytes.Buffer
	printState(&buf, got)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "run run-3 at update 1,200, 1 organisms" {
		t.Fatalf("header: %q", lines[0])
	}
	if want := "4\t9\t2\t200\t6\t1.25\t0.00\t0.00\t1.00\t0000000000000001"; lines[2] != want {
		t.Fatalf("row: got %q want %q", lines[2], want)
	}

	if _, _, err := fetchState(srv.URL + "/nope"); err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("missing endpoint: got %v", err)
	}
}
