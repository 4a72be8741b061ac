package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	persistlog "dolworld.ai/internal/persistence/log"
	"dolworld.ai/internal/sim/tuning"
	"dolworld.ai/internal/sim/world"
)

func main() {
	var (
		runDir     = flag.String("run", "", "run directory containing run.json and updates/")
		tuningPath = flag.String("tuning", "", "tuning file (optional, overrides run.json)")
		fromUpdate = flag.Uint64("from_update", 0, "start verifying from update (inclusive, optional)")
		toUpdate   = flag.Uint64("to_update", 0, "stop at update (inclusive, optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[replay] ", log.LstdFlags)

	if *runDir == "" {
		fmt.Fprintln(os.Stderr, "missing -run")
		os.Exit(2)
	}

	man, err := persistlog.ReadManifest(*runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read manifest:", err)
		os.Exit(1)
	}
	tune := man.Tuning
	if *tuningPath != "" {
		tune, err = tuning.Load(*tuningPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune.Seed = man.Seed
	}

	entries, err := persistlog.ReadUpdates(*runDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read updates:", err)
		os.Exit(1)
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no update log entries in", *runDir)
		os.Exit(1)
	}
	logger.Printf("run=%s seed=%d entries=%s", man.RunID, man.Seed, humanize.Comma(int64(len(entries))))

	checked, err := verify(tune, entries, *fromUpdate, *toUpdate)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	logger.Printf("replay ok: checked=%s updates", humanize.Comma(int64(checked)))
}

// verify rebuilds the world from tune and steps it alongside the logged
// entries, comparing state digests. Entries must be contiguous from update 0.
func verify(tune tuning.Tuning, entries []world.UpdateLogEntry, from, to uint64) (uint64, error) {
	cfg, err := tune.WorldConfig()
	if err != nil {
		return 0, err
	}
	w, err := world.New(cfg)
	if err != nil {
		return 0, err
	}

	var checked uint64
	for _, e := range entries {
		if to != 0 && e.Update > to {
			break
		}
		if e.Seed != cfg.Seed {
			return checked, fmt.Errorf("seed mismatch at update %d: log=%d tuning=%d", e.Update, e.Seed, cfg.Seed)
		}
		if e.Update != w.CurrentUpdate() {
			return checked, fmt.Errorf("update mismatch: want=%d got=%d", w.CurrentUpdate(), e.Update)
		}
		update, digest := w.Step()
		if update != e.Update {
			return checked, fmt.Errorf("internal update mismatch: stepped=%d entry=%d", update, e.Update)
		}
		if update < from {
			continue
		}
		checked++
		if digest != e.Digest {
			return checked, fmt.Errorf("digest mismatch at update %d: got=%s want=%s", update, digest, e.Digest)
		}
	}
	return checked, nil
}
