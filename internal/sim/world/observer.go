package world

import (
	"encoding/json"
	"strings"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/encoding"
)

// ObserverJoinRequest registers a read-only observer session that receives an
// UPDATE message every update and, while FocusSlot is a valid slot, a
// DEME_FRAME for that slot.
//
// All observer state is maintained by the world loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
	FocusSlot int
}

// ObserverSubscribeRequest changes the focused slot of an existing session.
type ObserverSubscribeRequest struct {
	SessionID string
	FocusSlot int
}

type observerClient struct {
	id        string
	out       chan []byte
	focusSlot int
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if w == nil || strings.TrimSpace(req.SessionID) == "" || req.Out == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	w.observers[req.SessionID] = &observerClient{
		id:        req.SessionID,
		out:       req.Out,
		focusSlot: req.FocusSlot,
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	if c := w.observers[req.SessionID]; c != nil {
		c.focusSlot = req.FocusSlot
	}
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.out)
}

func (w *World) stepObservers(now uint64, digest string, st UpdateStats) {
	if len(w.observers) == 0 {
		return
	}

	msg := observerproto.UpdateMsg{
		Type:            observerproto.TypeUpdate,
		ProtocolVersion: observerproto.Version,
		Update:          now,
		Digest:          digest,
		Organisms:       st.Organisms,
		ActiveCells:     st.ActiveCells,
		MeanCells:       st.MeanCells,
		Births:          st.Births,
		Deaths:          st.Deaths,
		Divisions:       st.Divisions,
		Pulses:          st.Pulses,
		Slots:           w.slotStates(now),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	frames := map[int][]byte{}
	for _, c := range w.observers {
		sendLatest(c.out, b)
		if c.focusSlot < 0 || c.focusSlot >= len(w.slots) {
			continue
		}
		fb, ok := frames[c.focusSlot]
		if !ok {
			fb = w.demeFrame(now, c.focusSlot)
			frames[c.focusSlot] = fb
		}
		if fb != nil {
			sendLatest(c.out, fb)
		}
	}
}

func (w *World) slotStates(now uint64) []observerproto.SlotState {
	out := make([]observerproto.SlotState, 0, len(w.slots))
	for _, s := range w.slots {
		if !s.occupied {
			continue
		}
		var age uint64
		if now >= s.birthUpdate {
			age = now - s.birthUpdate
		}
		out = append(out, observerproto.SlotState{
			Slot:        s.id,
			OrgID:       s.orgID,
			Age:         age,
			Pool:        s.deme.Pool,
			ActiveCells: s.deme.ActiveCellCount(),
			EnvTotal:    s.env.Total(),
		})
	}
	return out
}

func (w *World) demeFrame(now uint64, slotID int) []byte {
	s := w.slots[slotID]
	msg := observerproto.DemeFrameMsg{
		Type:            observerproto.TypeDemeFrame,
		ProtocolVersion: observerproto.Version,
		Update:          now,
		Slot:            slotID,
		Width:           w.grid.Width(),
		Height:          w.grid.Height(),
		Encoding:        observerproto.EncodingRLE16,
		Data:            encoding.EncodeRLE(s.deme.CellCodes()),
		Resources:       make([]observerproto.ResourceState, 0, s.env.Len()),
	}
	for i := range s.env.Resources {
		r := &s.env.Resources[i]
		msg.Resources = append(msg.Resources, observerproto.ResourceState{
			ID:          r.ID,
			Kind:        r.Kind.String(),
			Amount:      r.Amount,
			Available:   r.Available,
			TimeInState: r.TimeInState,
		})
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return b
}
