package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"dolworld.ai/internal/sim/tuning"
	"dolworld.ai/internal/sim/world"
)

// SQLiteIndex is a secondary, queryable copy of the update and lineage logs.
// Writes are queued and applied by one goroutine; the simulation never waits
// on it.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropUpdates atomic.Uint64
	dropLineage atomic.Uint64
}

type reqKind int

const (
	reqUpdate reqKind = iota + 1
	reqLineage
)

type req struct {
	kind reqKind

	update  world.UpdateLogEntry
	lineage world.LineageEntry
}

// Stats reports queue pressure.
type Stats struct {
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
	DropUpdateTotal  uint64 `json:"drop_update_total"`
	DropLineageTotal uint64 `json:"drop_lineage_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Large enough to absorb a burst of births and deaths in one update.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS updates (
			update_id INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			organisms INTEGER NOT NULL,
			active_cells INTEGER NOT NULL,
			mean_cells REAL NOT NULL,
			mean_pool REAL NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			divisions INTEGER NOT NULL,
			pulses INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS lineage (
			update_id INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			event TEXT NOT NULL,
			slot INTEGER NOT NULL,
			org_id INTEGER NOT NULL,
			parent_id INTEGER NOT NULL,
			reason TEXT,
			age INTEGER NOT NULL,
			cells INTEGER NOT NULL,
			PRIMARY KEY (update_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lineage_org ON lineage(org_id, update_id);`,
		`CREATE INDEX IF NOT EXISTS idx_lineage_parent ON lineage(parent_id);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropUpdateTotal:  s.dropUpdates.Load(),
		DropLineageTotal: s.dropLineage.Load(),
	}
}

func (s *SQLiteIndex) WriteUpdate(entry world.UpdateLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqUpdate, update: entry}:
	default:
		// Drop if the indexer falls behind; the JSONL logs remain the source of truth.
		s.dropUpdates.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteLineage(entry world.LineageEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqLineage, lineage: entry}:
	default:
		s.dropLineage.Add(1)
	}
	return nil
}

// UpsertRun records the run identity and the tuning actually applied.
func (s *SQLiteIndex) UpsertRun(runID string, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	b, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	rows := [][2]string{
		{"schema_version", "1"},
		{"run_id", runID},
		{"seed", strconv.FormatInt(tune.Seed, 10)},
		{"tuning", string(b)},
		{"tuning_digest", hex.EncodeToString(sum[:])},
		{"started_at", time.Now().UTC().Format(time.RFC3339Nano)},
	}
	for _, r := range rows {
		if _, err := stmt.Exec(r[0], r[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertUpdate, _ := s.db.Prepare(`INSERT OR REPLACE INTO updates(update_id,digest,organisms,active_cells,mean_cells,mean_pool,births,deaths,divisions,pulses,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	insertLineage, _ := s.db.Prepare(`INSERT OR REPLACE INTO lineage(update_id,seq,event,slot,org_id,parent_id,reason,age,cells) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertUpdate != nil {
			_ = insertUpdate.Close()
		}
		if insertLineage != nil {
			_ = insertLineage.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastLineageUpdate uint64
		lineageSeq        int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqUpdate:
			u := r.update
			raw, _ := json.Marshal(u)
			if insertUpdate != nil {
				if _, err := tx.Stmt(insertUpdate).Exec(
					int64(u.Update),
					u.Digest,
					u.Stats.Organisms,
					u.Stats.ActiveCells,
					u.Stats.MeanCells,
					u.Stats.MeanPool,
					u.Stats.Births,
					u.Stats.Deaths,
					u.Stats.Divisions,
					u.Stats.Pulses,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqLineage:
			l := r.lineage
			if l.Update != lastLineageUpdate {
				lastLineageUpdate = l.Update
				lineageSeq = 0
			}
			seq := lineageSeq
			lineageSeq++
			if insertLineage != nil {
				if _, err := tx.Stmt(insertLineage).Exec(
					int64(l.Update),
					seq,
					l.Event,
					l.Slot,
					int64(l.OrgID),
					int64(l.ParentID),
					l.Reason,
					int64(l.Age),
					l.Cells,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
