package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"dolworld.ai/internal/sim/tuning"
	"dolworld.ai/internal/sim/world"
)

func TestSQLiteIndex_UpdatesAndLineage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertRun("run-1", tuning.Defaults()); err != nil {
		t.Fatalf("UpsertRun: %v", err)
	}
	for u := uint64(0); u < 3; u++ {
		_ = idx.WriteUpdate(world.UpdateLogEntry{
			RunID:  "run-1",
			Update: u,
			Digest: "d",
			Stats:  world.UpdateStats{Update: u, Organisms: int(u) + 1, Births: 1, MeanCells: 2},
		})
	}
	_ = idx.WriteLineage(world.LineageEntry{Update: 1, Event: "BIRTH", Slot: 1, OrgID: 2, ParentID: 1})
	_ = idx.WriteLineage(world.LineageEntry{Update: 1, Event: "BIRTH", Slot: 2, OrgID: 3, ParentID: 1})
	_ = idx.WriteLineage(world.LineageEntry{Update: 2, Event: "DEATH", Slot: 1, OrgID: 2, Reason: "replaced", Age: 1, Cells: 4})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM updates`).Scan(&n); err != nil {
		t.Fatalf("count updates: %v", err)
	}
	if n != 3 {
		t.Fatalf("updates rows: got %d want 3", n)
	}
	var (
		seq    int
		event  string
		reason sql.NullString
		cells  int
	)
	row := db.QueryRow(`SELECT seq,event,reason,cells FROM lineage WHERE update_id=2`)
	if err := row.Scan(&seq, &event, &reason, &cells); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if seq != 0 || event != "DEATH" || reason.String != "replaced" || cells != 4 {
		t.Fatalf("lineage row: seq=%d event=%s reason=%q cells=%d", seq, event, reason.String, cells)
	}
	var runID string
	if err := db.QueryRow(`SELECT value FROM meta WHERE key='run_id'`).Scan(&runID); err != nil || runID != "run-1" {
		t.Fatalf("meta run_id: %q %v", runID, err)
	}
}

func TestReader_Queries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	_ = idx.UpsertRun("run-2", tuning.Defaults())
	for u := uint64(0); u < 10; u++ {
		_ = idx.WriteUpdate(world.UpdateLogEntry{Update: u, Digest: "d", Stats: world.UpdateStats{Organisms: int(u), Deaths: 1}})
	}
	_ = idx.WriteLineage(world.LineageEntry{Update: 4, Event: "BIRTH", OrgID: 7, ParentID: 3})
	_ = idx.WriteLineage(world.LineageEntry{Update: 9, Event: "BIRTH", OrgID: 8, ParentID: 7})
	_ = idx.WriteLineage(world.LineageEntry{Update: 9, Event: "DEATH", OrgID: 5, Reason: "age"})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := OpenReader(path)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer r.Close()
	ctx := context.Background()

	if got, err := r.Meta(ctx, "run_id"); err != nil || got != "run-2" {
		t.Fatalf("Meta: %q %v", got, err)
	}
	rows, err := r.Updates(ctx, 5, 3)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if len(rows) != 3 || rows[0].Update != 5 || rows[2].Organisms != 7 {
		t.Fatalf("update rows: %+v", rows)
	}
	org, err := r.Organism(ctx, 7)
	if err != nil {
		t.Fatalf("Organism: %v", err)
	}
	if len(org) != 2 || org[0].OrgID != 7 || org[1].ParentID != 7 {
		t.Fatalf("organism rows: %+v", org)
	}
	sum, err := r.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Updates != 10 || sum.LastUpdate != 9 || sum.Deaths != 10 || sum.MaxOrganisms != 9 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqUpdate}

	_ = s.WriteUpdate(world.UpdateLogEntry{Update: 2})
	_ = s.WriteLineage(world.LineageEntry{Update: 2})

	st := s.Stats()
	if st.DropUpdateTotal != 1 || st.DropLineageTotal != 1 {
		t.Fatalf("drops: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}
