package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"dolworld.ai/internal/sim/world"
)

// ReadJSONL calls fn for every line of every <prefix>-*.jsonl.zst file in dir,
// oldest file first.
func ReadJSONL(dir, prefix string, fn func(line []byte) error) error {
	files, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		return err
	}
	sort.Strings(files)
	for _, p := range files {
		if err := readFile(p, fn); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func readFile(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadUpdates loads every update entry written under runDir.
func ReadUpdates(runDir string) ([]world.UpdateLogEntry, error) {
	var out []world.UpdateLogEntry
	err := ReadJSONL(filepath.Join(runDir, UpdatesDir), UpdatesPrefix, func(line []byte) error {
		var e world.UpdateLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// ReadLineage loads every lineage entry written under runDir.
func ReadLineage(runDir string) ([]world.LineageEntry, error) {
	var out []world.LineageEntry
	err := ReadJSONL(filepath.Join(runDir, LineageDir), LineagePrefix, func(line []byte) error {
		var e world.LineageEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}
