package main

import (
	"fmt"
	"net/http"

	"dolworld.ai/internal/persistence/artifacts"
	"dolworld.ai/internal/persistence/indexdb"
	"dolworld.ai/internal/sim/world"
)

func metricsHandler(w *world.World, idx *indexdb.SQLiteIndex, mirror *artifacts.Mirror) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		m := w.Metrics()
		run := w.RunID()
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP dolworld_update Next update to simulate.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_update gauge\n")
		fmt.Fprintf(rw, "dolworld_update{run=%q} %d\n", run, m.Update)

		fmt.Fprintf(rw, "# HELP dolworld_organisms Occupied population slots.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_organisms gauge\n")
		fmt.Fprintf(rw, "dolworld_organisms{run=%q} %d\n", run, m.Organisms)

		fmt.Fprintf(rw, "# HELP dolworld_observers Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_observers gauge\n")
		fmt.Fprintf(rw, "dolworld_observers{run=%q} %d\n", run, m.Observers)

		fmt.Fprintf(rw, "# HELP dolworld_step_ms Last update step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_step_ms gauge\n")
		fmt.Fprintf(rw, "dolworld_step_ms{run=%q} %.3f\n", run, m.StepMS)

		st := m.Stats
		fmt.Fprintf(rw, "# HELP dolworld_cells Active cell statistics across organisms.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_cells gauge\n")
		fmt.Fprintf(rw, "dolworld_cells{run=%q,stat=%q} %d\n", run, "active", st.ActiveCells)
		fmt.Fprintf(rw, "dolworld_cells{run=%q,stat=%q} %.6f\n", run, "mean", st.MeanCells)
		fmt.Fprintf(rw, "dolworld_cells{run=%q,stat=%q} %.6f\n", run, "var", st.VarCells)
		fmt.Fprintf(rw, "dolworld_cells{run=%q,stat=%q} %.0f\n", run, "max", st.MaxCells)

		fmt.Fprintf(rw, "# HELP dolworld_resources Resource totals after the last update.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_resources gauge\n")
		fmt.Fprintf(rw, "dolworld_resources{run=%q,store=%q} %.6f\n", run, "mean_pool", st.MeanPool)
		fmt.Fprintf(rw, "dolworld_resources{run=%q,store=%q} %.6f\n", run, "local", st.TotalLocal)
		fmt.Fprintf(rw, "dolworld_resources{run=%q,store=%q} %.6f\n", run, "env", st.TotalEnv)

		fmt.Fprintf(rw, "# HELP dolworld_events Events during the last update.\n")
		fmt.Fprintf(rw, "# TYPE dolworld_events gauge\n")
		for _, e := range []struct {
			name string
			v    int
		}{
			{"metabolized", st.Metabolized},
			{"penalized", st.Penalized},
			{"duplicates", st.Duplicates},
			{"divisions", st.Divisions},
			{"messages", st.Messages},
			{"pulses", st.Pulses},
			{"alerts", st.Alerts},
			{"births", st.Births},
			{"deaths", st.Deaths},
		} {
			fmt.Fprintf(rw, "dolworld_events{run=%q,event=%q} %d\n", run, e.name, e.v)
		}

		if idx != nil {
			is := idx.Stats()
			fmt.Fprintf(rw, "# HELP dolworld_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE dolworld_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "dolworld_index_queue_depth{run=%q} %d\n", run, is.QueueDepth)
			fmt.Fprintf(rw, "# HELP dolworld_index_drops_total Entries dropped because the index queue was full.\n")
			fmt.Fprintf(rw, "# TYPE dolworld_index_drops_total counter\n")
			fmt.Fprintf(rw, "dolworld_index_drops_total{run=%q,kind=%q} %d\n", run, "update", is.DropUpdateTotal)
			fmt.Fprintf(rw, "dolworld_index_drops_total{run=%q,kind=%q} %d\n", run, "lineage", is.DropLineageTotal)
		}

		if mirror != nil {
			ms := mirror.Stats()
			fmt.Fprintf(rw, "# HELP dolworld_artifacts_total Run artifact mirror outcomes.\n")
			fmt.Fprintf(rw, "# TYPE dolworld_artifacts_total counter\n")
			fmt.Fprintf(rw, "dolworld_artifacts_total{run=%q,result=%q} %d\n", run, "uploaded", ms.UploadedTotal)
			fmt.Fprintf(rw, "dolworld_artifacts_total{run=%q,result=%q} %d\n", run, "failed", ms.FailedTotal)
			fmt.Fprintf(rw, "dolworld_artifacts_total{run=%q,result=%q} %d\n", run, "dropped", ms.DroppedTotal)
		}
	}
}
