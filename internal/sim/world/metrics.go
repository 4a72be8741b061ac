package world

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	// Update is the next update to simulate.
	Update uint64 `json:"update"`
	RunID  string `json:"run_id"`

	Organisms int `json:"organisms"`
	Observers int `json:"observers"`

	StepMS float64 `json:"step_ms"`

	// Stats is the summary of the last completed update.
	Stats UpdateStats `json:"stats"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}
