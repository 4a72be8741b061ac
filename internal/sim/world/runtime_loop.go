package world

import (
	"context"
	"time"
)

// Run steps the world until ctx is cancelled, Stop is called, the configured
// number of updates is reached or the population dies out. With a tick rate
// of 0 it steps as fast as it can while still serving observer requests.
func (w *World) Run(ctx context.Context) error {
	var tickC <-chan time.Time
	if w.cfg.TickRateHz > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(w.cfg.TickRateHz))
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		if w.cfg.Updates > 0 && w.update.Load() >= w.cfg.Updates {
			w.logf("reached %d updates", w.cfg.Updates)
			return nil
		}
		if w.Population() == 0 {
			w.logf("population extinct at update %d", w.update.Load())
			return nil
		}

		if tickC == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.stop:
				return nil
			default:
			}
			w.serveRequests()
			w.Step()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case resp := <-w.stateReq:
			resp <- w.State()
		case <-tickC:
			w.Step()
		}
	}
}

// serveRequests drains pending observer and state requests without blocking.
func (w *World) serveRequests() {
	for {
		select {
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSub:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case resp := <-w.stateReq:
			resp <- w.State()
		default:
			return
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
