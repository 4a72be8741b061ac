package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"dolworld.ai/internal/persistence/indexdb"
	persistlog "dolworld.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "summary":
			summaryCmd(os.Args[2:])
			return
		case "updates":
			updatesCmd(os.Args[2:])
			return
		case "organism":
			organismCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	if err := listRuns(os.Stdout, filepath.Join(*dataDir, "runs")); err != nil {
		fmt.Fprintln(os.Stderr, "list:", err)
		os.Exit(1)
	}
}

// listRuns prints one line per run directory, newest manifests last.
func listRuns(out io.Writer, base string) error {
	entries, err := os.ReadDir(base)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := persistlog.ReadManifest(filepath.Join(base, e.Name()))
		if err != nil {
			fmt.Fprintf(out, "%s\t(no manifest)\n", e.Name())
			continue
		}
		started := m.StartedAt
		if t, err := time.Parse(time.RFC3339, m.StartedAt); err == nil {
			started = humanize.Time(t)
		}
		fmt.Fprintf(out, "%s\tseed=%d\tstarted %s\n", m.RunID, m.Seed, started)
	}
	return nil
}

type runFlags struct {
	dataDir *string
	runID   *string
	dbPath  *string
	asJSON  *bool
}

func addRunFlags(fs *flag.FlagSet) runFlags {
	return runFlags{
		dataDir: fs.String("data", "./data", "runtime data directory"),
		runID:   fs.String("run", "", "run id (required unless -db)"),
		dbPath:  fs.String("db", "", "sqlite index path (optional)"),
		asJSON:  fs.Bool("json", false, "print JSON"),
	}
}

func (f runFlags) open() *indexdb.Reader {
	path := strings.TrimSpace(*f.dbPath)
	if path == "" {
		if strings.TrimSpace(*f.runID) == "" {
			fmt.Fprintln(os.Stderr, "missing -run or -db")
			os.Exit(2)
		}
		path = filepath.Join(*f.dataDir, "runs", *f.runID, "index", "run.sqlite")
	}
	r, err := indexdb.OpenReader(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return r
}

func summaryCmd(args []string) {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	rf := addRunFlags(fs)
	_ = fs.Parse(args)

	r := rf.open()
	defer r.Close()
	if err := printSummary(context.Background(), os.Stdout, r, *rf.asJSON); err != nil {
		fmt.Fprintln(os.Stderr, "summary:", err)
		os.Exit(1)
	}
}

func printSummary(ctx context.Context, out io.Writer, r *indexdb.Reader, asJSON bool) error {
	s, err := r.Summary(ctx)
	if err != nil {
		return err
	}
	runID, _ := r.Meta(ctx, "run_id")
	seed, _ := r.Meta(ctx, "seed")
	if asJSON {
		return json.NewEncoder(out).Encode(struct {
			RunID string `json:"run_id"`
			Seed  string `json:"seed"`
			indexdb.Summary
		}{runID, seed, s})
	}
	fmt.Fprintf(out, "run %s seed %s\n", runID, seed)
	fmt.Fprintf(out, "updates:       %s (last %s)\n", humanize.Comma(int64(s.Updates)), humanize.Comma(s.LastUpdate))
	fmt.Fprintf(out, "births:        %s\n", humanize.Comma(int64(s.Births)))
	fmt.Fprintf(out, "deaths:        %s\n", humanize.Comma(int64(s.Deaths)))
	fmt.Fprintf(out, "max organisms: %s\n", humanize.Comma(int64(s.MaxOrganisms)))
	fmt.Fprintf(out, "mean cells:    %s\n", humanize.FormatFloat("#,###.##", s.MeanCells))
	return nil
}

func updatesCmd(args []string) {
	fs := flag.NewFlagSet("updates", flag.ExitOnError)
	rf := addRunFlags(fs)
	from := fs.Int64("from", 0, "first update")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	r := rf.open()
	defer r.Close()
	rows, err := r.Updates(context.Background(), *from, *limit)
	if err != nil {
		fmt.Fprintln(os.Stderr, "updates:", err)
		os.Exit(1)
	}
	if *rf.asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(rows)
		return
	}
	printUpdates(os.Stdout, rows)
}

func printUpdates(out io.Writer, rows []indexdb.UpdateRow) {
	fmt.Fprintln(out, "update\torgs\tcells\tmean_cells\tmean_pool\tbirths\tdeaths\tdivisions\tdigest")
	for _, u := range rows {
		digest := u.Digest
		if len(digest) > 12 {
			digest = digest[:12]
		}
		fmt.Fprintf(out, "%s\t%d\t%d\t%.2f\t%.2f\t%d\t%d\t%d\t%s\n",
			humanize.Comma(u.Update), u.Organisms, u.ActiveCells, u.MeanCells, u.MeanPool,
			u.Births, u.Deaths, u.Divisions, digest)
	}
}

func organismCmd(args []string) {
	fs := flag.NewFlagSet("organism", flag.ExitOnError)
	rf := addRunFlags(fs)
	orgID := fs.Int64("id", 0, "organism id")
	fromLog := fs.Bool("log", false, "read the lineage log instead of the index")
	_ = fs.Parse(args)

	if *orgID <= 0 {
		fmt.Fprintln(os.Stderr, "missing -id")
		os.Exit(2)
	}

	var rows []indexdb.LineageRow
	if *fromLog {
		if strings.TrimSpace(*rf.runID) == "" {
			fmt.Fprintln(os.Stderr, "-log requires -run")
			os.Exit(2)
		}
		entries, err := persistlog.ReadLineage(filepath.Join(*rf.dataDir, "runs", *rf.runID))
		if err != nil {
			fmt.Fprintln(os.Stderr, "lineage:", err)
			os.Exit(1)
		}
		for i, e := range entries {
			if int64(e.OrgID) != *orgID && int64(e.ParentID) != *orgID {
				continue
			}
			rows = append(rows, indexdb.LineageRow{
				Update: int64(e.Update), Seq: i, Event: e.Event, Slot: e.Slot,
				OrgID: int64(e.OrgID), ParentID: int64(e.ParentID), Reason: e.Reason,
				Age: int64(e.Age), Cells: e.Cells,
			})
		}
	} else {
		r := rf.open()
		defer r.Close()
		var err error
		rows, err = r.Organism(context.Background(), *orgID)
		if err != nil {
			fmt.Fprintln(os.Stderr, "organism:", err)
			os.Exit(1)
		}
	}

	if *rf.asJSON {
		_ = json.NewEncoder(os.Stdout).Encode(rows)
		return
	}
	printLineage(os.Stdout, *orgID, rows)
}

func printLineage(out io.Writer, orgID int64, rows []indexdb.LineageRow) {
	if len(rows) == 0 {
		fmt.Fprintf(out, "organism %d: no lineage events\n", orgID)
		return
	}
	for _, e := range rows {
		switch {
		case e.Event == "BIRTH" && e.OrgID == orgID:
			fmt.Fprintf(out, "update %s: born in slot %d from %d\n", humanize.Comma(e.Update), e.Slot, e.ParentID)
		case e.Event == "BIRTH":
			fmt.Fprintf(out, "update %s: offspring %d placed in slot %d\n", humanize.Comma(e.Update), e.OrgID, e.Slot)
		default:
			fmt.Fprintf(out, "update %s: died (%s) at age %s with %d cells\n",
				humanize.Comma(e.Update), e.Reason, humanize.Comma(e.Age), e.Cells)
		}
	}
}
