package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gorilla/websocket"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/encoding"
)

func main() {
	var (
		url   = flag.String("url", "ws://127.0.0.1:8080/admin/v1/observer/ws", "observer ws url")
		focus = flag.Int("focus", -1, "population slot to render (-1 disables frames)")
		every = flag.Uint64("every", 1, "print every Nth update")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := observerproto.SubscribeMsg{
		Type:            observerproto.TypeSubscribe,
		ProtocolVersion: observerproto.Version,
		FocusSlot:       *focus,
	}
	if err := conn.WriteJSON(sub); err != nil {
		logger.Fatalf("send SUBSCRIBE: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	n := *every
	if n == 0 {
		n = 1
	}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var base struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}
		switch base.Type {
		case observerproto.TypeUpdate:
			var u observerproto.UpdateMsg
			if err := json.Unmarshal(msg, &u); err != nil || u.Update%n != 0 {
				continue
			}
			logger.Print(formatUpdate(u))

		case observerproto.TypeDemeFrame:
			var f observerproto.DemeFrameMsg
			if err := json.Unmarshal(msg, &f); err != nil || f.Update%n != 0 {
				continue
			}
			grid, err := renderFrame(f)
			if err != nil {
				logger.Printf("frame: %v", err)
				continue
			}
			fmt.Print(grid)
		}
	}
}

func formatUpdate(u observerproto.UpdateMsg) string {
	digest := u.Digest
	if len(digest) > 12 {
		digest = digest[:12]
	}
	return fmt.Sprintf("update=%d organisms=%d cells=%d mean_cells=%.2f births=%d deaths=%d divisions=%d pulses=%d digest=%s",
		u.Update, u.Organisms, u.ActiveCells, u.MeanCells, u.Births, u.Deaths, u.Divisions, u.Pulses, digest)
}

// facingGlyphs maps a frame cell code (0 inactive, 1+facing) to a glyph.
var facingGlyphs = []rune{'.', '^', '/', '>', '\\', 'v', ',', '<', '`'}

// renderFrame draws one deme row per line, followed by its resources.
func renderFrame(f observerproto.DemeFrameMsg) (string, error) {
	codes, err := encoding.DecodeFrame(f.Data, f.Width*f.Height)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "slot %d @ update %d\n", f.Slot, f.Update)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			c := codes[y*f.Width+x]
			if int(c) >= len(facingGlyphs) {
				b.WriteRune('?')
				continue
			}
			b.WriteRune(facingGlyphs[c])
		}
		b.WriteByte('\n')
	}
	for _, r := range f.Resources {
		state := "off"
		if r.Available {
			state = "on"
		}
		fmt.Fprintf(&b, "  res %d %-8s %-3s amount=%.2f for %d\n", r.ID, r.Kind, state, r.Amount, r.TimeInState)
	}
	return b.String(), nil
}
