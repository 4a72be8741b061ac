package world

import (
	"context"
	"log"

	"dolworld.ai/internal/sim/deme"
	"dolworld.ai/internal/sim/program"
	"dolworld.ai/internal/sim/resource"
	"dolworld.ai/internal/sim/tag"
)

func (w *World) SetLogger(l *log.Logger)          { w.logger = l }
func (w *World) SetUpdateLogger(l UpdateLogger)   { w.updateLogger = l }
func (w *World) SetLineageLogger(l LineageLogger) { w.lineageLogger = l }

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSub }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func (w *World) CurrentUpdate() uint64 { return w.update.Load() }
func (w *World) RunID() string         { return w.runID }
func (w *World) Config() Config        { return w.cfg }
func (w *World) NumSlots() int         { return len(w.slots) }

func (w *World) ResourceTags() []tag.Tag {
	out := make([]tag.Tag, len(w.resTags))
	copy(out, w.resTags)
	return out
}

func (w *World) Library() *program.Library { return w.lib }

// ---- Test/inspection helpers ----
//
// These are NOT safe to call concurrently with Run(). Use them only from the
// goroutine that drives the world via Step().

func (w *World) Deme(org int) *deme.Deme                   { return w.slotAt(org).deme }
func (w *World) Environment(org int) *resource.Environment { return w.slotAt(org).env }
func (w *World) Occupied(org int) bool                     { return w.slotAt(org).occupied }
func (w *World) Genome(org int) Genome                     { return w.slotAt(org).genome }

// Population is the number of occupied slots.
func (w *World) Population() int {
	n := 0
	for _, s := range w.slots {
		if s.occupied {
			n++
		}
	}
	return n
}

// StateView is a point-in-time copy of per-slot organism state.
type StateView struct {
	RunID  string     `json:"run_id"`
	Update uint64     `json:"update"`
	Slots  []SlotView `json:"slots"`
}

type SlotView struct {
	Slot        int     `json:"slot"`
	OrgID       uint64  `json:"org_id"`
	ParentID    uint64  `json:"parent_id,omitempty"`
	BirthUpdate uint64  `json:"birth_update"`
	Pool        float64 `json:"pool"`
	ActiveCells int     `json:"active_cells"`
	LocalTotal  float64 `json:"local_total"`
	EnvTotal    float64 `json:"env_total"`
	LevelScale  float64 `json:"level_scale"`
	ProgramSize int     `json:"program_size"`
	BirthTag    string  `json:"birth_tag"`
}

// State builds a StateView of the occupied slots. Call it only from the world
// loop goroutine; other goroutines use RequestState.
func (w *World) State() StateView {
	v := StateView{RunID: w.runID, Update: w.update.Load()}
	for _, s := range w.slots {
		if !s.occupied {
			continue
		}
		v.Slots = append(v.Slots, SlotView{
			Slot:        s.id,
			OrgID:       s.orgID,
			ParentID:    s.parentID,
			BirthUpdate: s.birthUpdate,
			Pool:        s.deme.Pool,
			ActiveCells: s.deme.ActiveCellCount(),
			LocalTotal:  s.deme.TotalLocalResources(),
			EnvTotal:    s.env.Total(),
			LevelScale:  s.env.LevelScale,
			ProgramSize: s.genome.Program.Size(),
			BirthTag:    s.genome.BirthTag.String(),
		})
	}
	return v
}

// RequestState asks the running world loop for a StateView.
func (w *World) RequestState(ctx context.Context) (StateView, error) {
	resp := make(chan StateView, 1)
	select {
	case w.stateReq <- resp:
	case <-ctx.Done():
		return StateView{}, ctx.Err()
	}
	select {
	case v := <-resp:
		return v, nil
	case <-ctx.Done():
		return StateView{}, ctx.Err()
	}
}
