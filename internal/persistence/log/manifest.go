package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dolworld.ai/internal/sim/tuning"
)

const ManifestFile = "run.json"

// Manifest identifies a run and holds the exact tuning it was started with,
// which is everything replay needs to rebuild the world.
type Manifest struct {
	RunID     string        `json:"run_id"`
	Seed      int64         `json:"seed"`
	StartedAt string        `json:"started_at"`
	Tuning    tuning.Tuning `json:"tuning"`
}

func WriteManifest(runDir, runID string, tune tuning.Tuning) error {
	m := Manifest{
		RunID:     runID,
		Seed:      tune.Seed,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Tuning:    tune,
	}
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(runDir, ManifestFile+".tmp")
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(runDir, ManifestFile))
}

func ReadManifest(runDir string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(filepath.Join(runDir, ManifestFile))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("%s: %w", ManifestFile, err)
	}
	return m, nil
}
