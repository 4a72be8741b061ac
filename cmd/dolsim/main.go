package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"dolworld.ai/internal/persistence/artifacts"
	"dolworld.ai/internal/persistence/indexdb"
	persistlog "dolworld.ai/internal/persistence/log"
	"dolworld.ai/internal/sim/tuning"
	"dolworld.ai/internal/sim/world"
	"dolworld.ai/internal/transport/observer"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address (empty disables HTTP)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "tuning file (empty uses built-in defaults)")
		seed       = flag.Int64("seed", 0, "override the tuning seed (0 keeps the file value)")
		updates    = flag.Uint64("updates", 0, "override the number of updates to run (0 keeps the file value)")
		tickRate   = flag.Int("tick_rate_hz", -1, "override the tick rate (-1 keeps the file value, 0 runs unthrottled)")
		disableDB  = flag.Bool("disable_db", false, "disable the SQLite run index")
		progress   = flag.Duration("progress", 5*time.Second, "progress log interval (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[dolsim] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	if *updates != 0 {
		tune.Updates = *updates
	}
	if *tickRate >= 0 {
		tune.TickRateHz = *tickRate
	}
	cfg, err := tune.WorldConfig()
	if err != nil {
		logger.Fatalf("tuning: %v", err)
	}

	w, err := world.New(cfg)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	w.SetLogger(logger)
	runID := w.RunID()
	runDir := filepath.Join(*dataDir, "runs", runID)
	if err := persistlog.WriteManifest(runDir, runID, tune); err != nil {
		logger.Fatalf("manifest: %v", err)
	}

	var mirror *artifacts.Mirror
	if s3cfg, ok := artifacts.S3ConfigFromEnv(); ok {
		client, err := artifacts.NewS3Client(s3cfg)
		if err != nil {
			logger.Fatalf("artifacts: %v", err)
		}
		mirror = artifacts.NewMirror(client, *dataDir, artifacts.MirrorOptions{
			Prefix: os.Getenv("DOL_ARTIFACTS_PREFIX"),
			Logger: logger,
		})
	}

	var (
		updSinks []world.UpdateLogger
		linSinks []world.LineageLogger
		closers  []func() error
		flushers []func() error
	)
	if tune.Output.UpdateLog {
		ul := persistlog.NewUpdateLogger(runDir)
		if mirror != nil {
			ul.OnClosed(mirror.Enqueue)
		}
		updSinks = append(updSinks, ul)
		closers = append(closers, ul.Close)
		flushers = append(flushers, ul.Flush)
	}
	if tune.Output.LineageLog {
		ll := persistlog.NewLineageLogger(runDir)
		if mirror != nil {
			ll.OnClosed(mirror.Enqueue)
		}
		linSinks = append(linSinks, ll)
		closers = append(closers, ll.Close)
		flushers = append(flushers, ll.Flush)
	}

	var idx *indexdb.SQLiteIndex
	idxPath := filepath.Join(runDir, "index", "run.sqlite")
	if tune.Output.Index && !*disableDB {
		idx, err = indexdb.OpenSQLite(idxPath)
		if err != nil {
			logger.Fatalf("index db: %v", err)
		}
		if err := idx.UpsertRun(runID, tune); err != nil {
			logger.Printf("index upsert run: %v", err)
		}
		updSinks = append(updSinks, idx)
		linSinks = append(linSinks, idx)
		closers = append(closers, idx.Close)
	}
	if len(updSinks) > 0 {
		w.SetUpdateLogger(multiUpdateLogger(updSinks))
	}
	if len(linSinks) > 0 {
		w.SetLineageLogger(multiLineageLogger(linSinks))
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Printf("run=%s seed=%d slots=%s deme=%dx%d dir=%s",
		runID, cfg.Seed, humanize.Comma(int64(w.NumSlots())), cfg.DemeWidth, cfg.DemeHeight, runDir)

	runDone := make(chan error, 1)
	go func() {
		runDone <- w.Run(ctx)
	}()
	if *progress > 0 {
		go logProgress(ctx, logger, w, idx, flushers, *progress)
	}

	var srv *http.Server
	if strings.TrimSpace(*addr) != "" {
		srv = &http.Server{
			Addr:              *addr,
			Handler:           newMux(w, idx, mirror, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Printf("listening on %s", *addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Printf("http: %v", err)
				cancel()
			}
		}()
	}

	if err := <-runDone; err != nil && err != context.Canceled {
		logger.Printf("world: %v", err)
	}
	m := w.Metrics()
	logger.Printf("run finished: updates=%s organisms=%d births=%d deaths=%d",
		humanize.Comma(int64(m.Update)), m.Organisms, m.Stats.Births, m.Stats.Deaths)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}

	for _, c := range closers {
		if err := c(); err != nil {
			logger.Printf("close: %v", err)
		}
	}
	if mirror != nil {
		mirror.Enqueue(filepath.Join(runDir, persistlog.ManifestFile))
		if idx != nil {
			mirror.Enqueue(idxPath)
		}
		mirror.Close()
		st := mirror.Stats()
		logger.Printf("artifacts uploaded=%d failed=%d dropped=%d", st.UploadedTotal, st.FailedTotal, st.DroppedTotal)
	}
}

func newMux(w *world.World, idx *indexdb.SQLiteIndex, mirror *artifacts.Mirror, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, idx, mirror))

	if envBool("DOL_ENABLE_ADMIN_HTTP", true) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			v, err := w.RequestState(ctx)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusServiceUnavailable)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(v)
		})

		obs := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obs.WSHandler())
	}

	if envBool("DOL_ENABLE_PPROF", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// logProgress prints one status line per tick and flushes the run logs so
// their compressed blocks reach disk between rotations.
func logProgress(ctx context.Context, logger *log.Logger, w *world.World, idx *indexdb.SQLiteIndex, flushers []func() error, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	last := w.Metrics().Update
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		m := w.Metrics()
		rate := float64(m.Update-last) / every.Seconds()
		last = m.Update
		line := "update " + humanize.Comma(int64(m.Update)) +
			" organisms=" + humanize.Comma(int64(m.Organisms)) +
			" cells=" + humanize.Comma(int64(m.Stats.ActiveCells)) +
			" mean_pool=" + humanize.FormatFloat("#,###.##", m.Stats.MeanPool) +
			" rate=" + humanize.FormatFloat("#,###.#", rate) + "/s" +
			" step=" + humanize.FormatFloat("#.###", m.StepMS) + "ms"
		if idx != nil {
			st := idx.Stats()
			line += " index_queue=" + humanize.Comma(int64(st.QueueDepth))
			if drops := st.DropUpdateTotal + st.DropLineageTotal; drops > 0 {
				line += " index_drops=" + humanize.Comma(int64(drops))
			}
		}
		logger.Print(line)
		for _, flush := range flushers {
			if err := flush(); err != nil {
				logger.Printf("flush run log: %v", err)
			}
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
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
