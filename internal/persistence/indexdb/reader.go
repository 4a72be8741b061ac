package indexdb

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Reader is the query side of the index, used by inspection tools while a
// run is writing or after it has finished.
type Reader struct {
	conn *sqlx.DB
}

type UpdateRow struct {
	Update      int64   `db:"update_id" json:"update"`
	Digest      string  `db:"digest" json:"digest"`
	Organisms   int     `db:"organisms" json:"organisms"`
	ActiveCells int     `db:"active_cells" json:"active_cells"`
	MeanCells   float64 `db:"mean_cells" json:"mean_cells"`
	MeanPool    float64 `db:"mean_pool" json:"mean_pool"`
	Births      int     `db:"births" json:"births"`
	Deaths      int     `db:"deaths" json:"deaths"`
	Divisions   int     `db:"divisions" json:"divisions"`
	Pulses      int     `db:"pulses" json:"pulses"`
}

type LineageRow struct {
	Update   int64  `db:"update_id" json:"update"`
	Seq      int    `db:"seq" json:"seq"`
	Event    string `db:"event" json:"event"`
	Slot     int    `db:"slot" json:"slot"`
	OrgID    int64  `db:"org_id" json:"org_id"`
	ParentID int64  `db:"parent_id" json:"parent_id"`
	Reason   string `db:"reason" json:"reason,omitempty"`
	Age      int64  `db:"age" json:"age"`
	Cells    int    `db:"cells" json:"cells"`
}

type Summary struct {
	Updates      int     `db:"updates" json:"updates"`
	LastUpdate   int64   `db:"last_update" json:"last_update"`
	Births       int     `db:"births" json:"births"`
	Deaths       int     `db:"deaths" json:"deaths"`
	MaxOrganisms int     `db:"max_organisms" json:"max_organisms"`
	MeanCells    float64 `db:"mean_cells" json:"mean_cells"`
}

func OpenReader(path string) (*Reader, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	return &Reader{conn: conn}, nil
}

func (r *Reader) Close() error {
	return r.conn.Close()
}

func (r *Reader) Meta(ctx context.Context, key string) (string, error) {
	var value string
	err := r.conn.GetContext(ctx, &value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// Updates returns up to limit update rows starting at update from.
func (r *Reader) Updates(ctx context.Context, from int64, limit int) ([]UpdateRow, error) {
	var rows []UpdateRow
	err := r.conn.SelectContext(ctx, &rows,
		`SELECT update_id, digest, organisms, active_cells, mean_cells, mean_pool, births, deaths, divisions, pulses
		FROM updates WHERE update_id >= ? ORDER BY update_id LIMIT ?`,
		from, limit,
	)
	return rows, err
}

// Organism returns every lineage event of one organism plus its direct
// offspring's births.
func (r *Reader) Organism(ctx context.Context, orgID int64) ([]LineageRow, error) {
	var rows []LineageRow
	err := r.conn.SelectContext(ctx, &rows,
		`SELECT update_id, seq, event, slot, org_id, parent_id, COALESCE(reason, '') AS reason, age, cells
		FROM lineage WHERE org_id = ? OR parent_id = ? ORDER BY update_id, seq`,
		orgID, orgID,
	)
	return rows, err
}

func (r *Reader) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	err := r.conn.GetContext(ctx, &s,
		`SELECT COUNT(*) AS updates,
			COALESCE(MAX(update_id), 0) AS last_update,
			COALESCE(SUM(births), 0) AS births,
			COALESCE(SUM(deaths), 0) AS deaths,
			COALESCE(MAX(organisms), 0) AS max_organisms,
			COALESCE(AVG(mean_cells), 0) AS mean_cells
		FROM updates`,
	)
	return s, err
}
