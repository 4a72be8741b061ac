package world

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type updateCounters struct {
	metabolized int
	penalized   int
	duplicates  int
	consumed    float64
	divisions   int
	messages    int
	pulses      int
	alerts      int
	births      int
	deaths      int
}

// UpdateStats summarizes one update across the whole population.
type UpdateStats struct {
	Update    uint64 `json:"update"`
	Organisms int    `json:"organisms"`

	ActiveCells int     `json:"active_cells"`
	MeanCells   float64 `json:"mean_cells"`
	VarCells    float64 `json:"var_cells"`
	MaxCells    float64 `json:"max_cells"`

	MeanPool       float64 `json:"mean_pool"`
	TotalLocal     float64 `json:"total_local"`
	TotalEnv       float64 `json:"total_env"`
	MeanLevelScale float64 `json:"mean_level_scale"`

	Metabolized int     `json:"metabolized"`
	Penalized   int     `json:"penalized"`
	Duplicates  int     `json:"duplicates"`
	Consumed    float64 `json:"consumed"`
	Divisions   int     `json:"divisions"`
	Messages    int     `json:"messages"`
	Pulses      int     `json:"pulses"`
	Alerts      int     `json:"alerts"`
	Births      int     `json:"births"`
	Deaths      int     `json:"deaths"`
}

func (w *World) computeStats(now uint64) UpdateStats {
	var cells, pools, local, env, scales []float64
	for _, s := range w.slots {
		if !s.occupied {
			continue
		}
		cells = append(cells, float64(s.deme.ActiveCellCount()))
		pools = append(pools, s.deme.Pool)
		local = append(local, s.deme.TotalLocalResources())
		env = append(env, s.env.Total())
		scales = append(scales, s.env.LevelScale)
	}

	st := UpdateStats{
		Update:      now,
		Organisms:   len(cells),
		Metabolized: w.counters.metabolized,
		Penalized:   w.counters.penalized,
		Duplicates:  w.counters.duplicates,
		Consumed:    w.counters.consumed,
		Divisions:   w.counters.divisions,
		Messages:    w.counters.messages,
		Pulses:      w.counters.pulses,
		Alerts:      w.counters.alerts,
		Births:      w.counters.births,
		Deaths:      w.counters.deaths,
	}
	if len(cells) == 0 {
		return st
	}
	st.ActiveCells = int(floats.Sum(cells))
	st.MaxCells = floats.Max(cells)
	if len(cells) > 1 {
		st.MeanCells, st.VarCells = stat.MeanVariance(cells, nil)
	} else {
		st.MeanCells = cells[0]
	}
	st.MeanPool = stat.Mean(pools, nil)
	st.TotalLocal = floats.Sum(local)
	st.TotalEnv = floats.Sum(env)
	st.MeanLevelScale = stat.Mean(scales, nil)
	return st
}
