package world

import (
	"encoding/json"
	"testing"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/encoding"
)

func TestObserver_UpdateAndFocusFrame(t *testing.T) {
	cfg := ancestorConfig(t, nopAncestor)
	cfg.MaxPopSize = 2
	cfg.NumStatic = 1
	cfg.Economy.StaticLevel = 5
	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := make(chan []byte, 8)
	w.handleObserverJoin(ObserverJoinRequest{SessionID: "s1", Out: out, FocusSlot: 0})
	_, digest := w.Step()

	var upd observerproto.UpdateMsg
	if err := json.Unmarshal(<-out, &upd); err != nil {
		t.Fatalf("unmarshal update: %v", err)
	}
	if upd.Type != observerproto.TypeUpdate || upd.Update != 0 || upd.Digest != digest {
		t.Fatalf("update msg: %+v", upd)
	}
	if upd.Organisms != 1 || len(upd.Slots) != 1 || upd.Slots[0].OrgID != 1 {
		t.Fatalf("update population: %+v", upd)
	}

	var frame observerproto.DemeFrameMsg
	if err := json.Unmarshal(<-out, &frame); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if frame.Type != observerproto.TypeDemeFrame || frame.Slot != 0 || frame.Width != 3 || frame.Height != 3 {
		t.Fatalf("frame header: %+v", frame)
	}
	codes, err := encoding.DecodeFrame(frame.Data, 9)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	for id, code := range codes {
		want := uint16(0)
		if id == seedCell {
			want = 1
		}
		if code != want {
			t.Fatalf("cell %d code: got %d want %d", id, code, want)
		}
	}
	if len(frame.Resources) != 1 || frame.Resources[0].Kind != "STATIC" || !frame.Resources[0].Available {
		t.Fatalf("frame resources: %+v", frame.Resources)
	}

	// Focusing an out-of-range slot stops frames but keeps updates.
	w.handleObserverSubscribe(ObserverSubscribeRequest{SessionID: "s1", FocusSlot: -1})
	w.Step()
	if len(out) != 1 {
		t.Fatalf("queued messages: got %d want 1", len(out))
	}
	<-out

	w.handleObserverLeave("s1")
	if _, ok := <-out; ok {
		t.Fatalf("leave should close the session channel")
	}
	w.Step()
	if got := w.Metrics().Observers; got != 0 {
		t.Fatalf("observers: got %d want 0", got)
	}
}

func TestSendLatest_DropsOldest(t *testing.T) {
	ch := make(chan []byte, 1)
	sendLatest(ch, []byte("a"))
	sendLatest(ch, []byte("b"))
	if got := string(<-ch); got != "b" {
		t.Fatalf("got %q want b", got)
	}
}
