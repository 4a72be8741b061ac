package world

import (
	"time"
)

// Step advances the population by one update and returns the update number
// that was simulated and the state digest after it.
//
// Per occupied slot the environment advances first (pulses alert sensing
// cells), then the deme runs its cycle budget. Deaths and births follow
// in slot order.
func (w *World) Step() (update uint64, digest string) {
	stepStart := time.Now()
	now := w.update.Load()
	w.counters = updateCounters{}

	for _, s := range w.slots {
		if !s.occupied {
			continue
		}
		s.env.Advance(w.cfg.Economy, s.rng, func(resID int) {
			w.counters.pulses++
			w.counters.alerts += s.deme.AlertSensingCells(resID, w.resTags[resID])
		})
		s.deme.Advance(w.cfg.CyclesPerUpdate)
	}

	w.reapOld(now)
	w.scheduleBirths(now)

	st := w.computeStats(now)
	digest = w.stateDigest(now)
	if w.updateLogger != nil {
		_ = w.updateLogger.WriteUpdate(UpdateLogEntry{RunID: w.runID, Seed: w.cfg.Seed, Update: now, Digest: digest, Stats: st})
	}
	w.stepObservers(now, digest, st)

	w.update.Add(1)
	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.publishMetrics(now+1, st, stepMS)
	return now, digest
}

// RunUpdates steps n times without a ticker. It is meant for tests and
// batch runs from the calling goroutine.
func (w *World) RunUpdates(n int) string {
	var digest string
	for i := 0; i < n; i++ {
		_, digest = w.Step()
	}
	return digest
}

func (w *World) reapOld(now uint64) {
	if w.cfg.MaxOrgAge == 0 {
		return
	}
	for _, s := range w.slots {
		if s.occupied && now-s.birthUpdate >= w.cfg.MaxOrgAge {
			w.killOrganism(s, now, "age")
			w.counters.deaths++
		}
	}
}

// scheduleBirths lets every organism whose pool covers the reproduction cost
// place one offspring. Empty slots are preferred; otherwise a random other
// slot is overwritten. Organisms born this update do not reproduce.
func (w *World) scheduleBirths(now uint64) {
	if w.cfg.OrgReproCost <= 0 {
		return
	}
	born := map[int]bool{}
	for _, parent := range w.slots {
		if !parent.occupied || born[parent.id] || parent.deme.Pool < w.cfg.OrgReproCost {
			continue
		}
		target := w.pickBirthSlot(parent.id)
		if target == nil {
			continue
		}
		parent.deme.Pool -= w.cfg.OrgReproCost
		if target.occupied {
			w.killOrganism(target, now, "replaced")
			w.counters.deaths++
		}
		w.placeOrganism(target, parent.genome, parent.orgID, now+1)
		born[target.id] = true
		w.counters.births++
	}
}

func (w *World) pickBirthSlot(parentID int) *slot {
	var empty []*slot
	for _, s := range w.slots {
		if !s.occupied {
			empty = append(empty, s)
		}
	}
	if len(empty) > 0 {
		return empty[w.rng.Intn(len(empty))]
	}
	if len(w.slots) < 2 {
		return nil
	}
	i := w.rng.Intn(len(w.slots) - 1)
	if i >= parentID {
		i++
	}
	return w.slots[i]
}

func (w *World) publishMetrics(update uint64, st UpdateStats, stepMS float64) {
	w.metrics.Store(WorldMetrics{
		Update:    update,
		RunID:     w.runID,
		Organisms: st.Organisms,
		Observers: len(w.observers),
		StepMS:    stepMS,
		Stats:     st,
	})
}
