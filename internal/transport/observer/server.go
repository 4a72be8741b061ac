package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"dolworld.ai/internal/observerproto"
	"dolworld.ai/internal/sim/world"
)

// Server streams read-only population updates to websocket observers.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(Bootstrap(s.world))
	}
}

// Bootstrap describes the run to a new observer. It only reads fields that
// are fixed when the world is built, so it is safe off the world loop.
func Bootstrap(w *world.World) observerproto.BootstrapResponse {
	cfg := w.Config()
	tags := w.ResourceTags()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.String()
	}
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		RunID:           w.RunID(),
		Update:          w.CurrentUpdate(),
		WorldParams: observerproto.WorldParams{
			Seed:            cfg.Seed,
			TickRateHz:      cfg.TickRateHz,
			CyclesPerUpdate: cfg.CyclesPerUpdate,
			DemeWidth:       cfg.DemeWidth,
			DemeHeight:      cfg.DemeHeight,
			MaxPopSize:      cfg.MaxPopSize,
			NumStatic:       cfg.NumStatic,
			NumPeriodic:     cfg.NumPeriodic,
			ResourceTags:    names,
		},
	}
}

const (
	handshakeTimeout = 5 * time.Second
	writeTimeout     = 5 * time.Second
	pongWait         = 60 * time.Second
	pingEvery        = pongWait / 2
	sessionBuffer    = 16
)

// WSHandler upgrades loopback clients, waits for a SUBSCRIBE and then streams
// the session channel until either side goes away. Later SUBSCRIBE messages
// move the focus slot.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sub, err := s.readSubscribe(conn, handshakeTimeout)
		if err != nil {
			closeWith(conn, websocket.ClosePolicyViolation, err.Error())
			return
		}

		sid := fmt.Sprintf("O%d", s.nextID.Add(1))
		out := make(chan []byte, sessionBuffer)
		select {
		case s.world.ObserverJoin() <- world.ObserverJoinRequest{SessionID: sid, Out: out, FocusSlot: sub.FocusSlot}:
		default:
			closeWith(conn, websocket.CloseTryAgainLater, "server busy")
			return
		}
		s.logf("observer %s joined focus=%d remote=%s", sid, sub.FocusSlot, r.RemoteAddr)
		defer func() {
			select {
			case s.world.ObserverLeave() <- sid:
			default:
			}
			s.logf("observer %s left", sid)
		}()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			s.writeLoop(ctx, conn, out)
		}()

		s.readLoop(conn, sid)

		cancel()
		closeWith(conn, websocket.CloseNormalClosure, "bye")
		select {
		case <-writerDone:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) readSubscribe(conn *websocket.Conn, timeout time.Duration) (observerproto.SubscribeMsg, error) {
	var sub observerproto.SubscribeMsg
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return sub, err
	}
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, fmt.Errorf("bad subscribe")
	}
	if sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
		return sub, fmt.Errorf("expected SUBSCRIBE")
	}
	s.normalizeSubscribe(&sub)
	return sub, nil
}

// writeLoop is the only writer on conn after the handshake. It forwards
// session messages and keeps the connection alive with pings.
func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, out <-chan []byte) {
	ping := time.NewTicker(pingEvery)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		case b, ok := <-out:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// readLoop applies focus changes until the client disconnects or stops
// answering pings. Malformed messages are ignored.
func (s *Server) readLoop(conn *websocket.Conn, sid string) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		var sub observerproto.SubscribeMsg
		if json.Unmarshal(msg, &sub) != nil || sub.Type != observerproto.TypeSubscribe || sub.ProtocolVersion != observerproto.Version {
			continue
		}
		s.normalizeSubscribe(&sub)
		select {
		case s.world.ObserverSubscribe() <- world.ObserverSubscribeRequest{SessionID: sid, FocusSlot: sub.FocusSlot}:
		default:
			// World loop busy; the client may resend.
		}
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

// normalizeSubscribe maps any out-of-range focus slot to -1 (no frames).
func (s *Server) normalizeSubscribe(sub *observerproto.SubscribeMsg) {
	if sub.FocusSlot < 0 || sub.FocusSlot >= s.world.NumSlots() {
		sub.FocusSlot = -1
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
