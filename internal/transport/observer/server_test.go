package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/world"
)

func newRunningWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{
		Seed:        5,
		TickRateHz:  100,
		InitPopSize: 2,
		MaxPopSize:  4,
		DemeWidth:   3,
		DemeHeight:  3,
		NumStatic:   1,
	})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func TestWS_SubscribeReceivesUpdatesAndFrames(t *testing.T) {
	w := newRunningWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).WSHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version, FocusSlot: 1}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	var sawUpdate, sawFrame bool
	deadline := time.Now().Add(5 * time.Second)
	for !(sawUpdate && sawFrame) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (update=%v frame=%v)", err, sawUpdate, sawFrame)
		}
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		switch head.Type {
		case observerproto.TypeUpdate:
			sawUpdate = true
		case observerproto.TypeDemeFrame:
			var f observerproto.DemeFrameMsg
			if err := json.Unmarshal(msg, &f); err != nil {
				t.Fatalf("frame: %v", err)
			}
			if f.Slot != 1 || f.Width != 3 || f.Encoding != observerproto.EncodingRLE16 {
				t.Fatalf("frame header: %+v", f)
			}
			sawFrame = true
		default:
			t.Fatalf("unexpected message type %q", head.Type)
		}
	}
}

func TestWS_RejectsBadHandshake(t *testing.T) {
	w := newRunningWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).WSHandler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestBootstrapHandler(t *testing.T) {
	w := newRunningWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).BootstrapHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	var b observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.RunID != w.RunID() || b.WorldParams.DemeWidth != 3 || b.WorldParams.MaxPopSize != 4 || len(b.WorldParams.ResourceTags) != 1 {
		t.Fatalf("bootstrap: %+v", b)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("%s: got %v want %v", in, got, want)
		}
	}
}
