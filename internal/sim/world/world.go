package world

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/ojrac/opensimplex-go"

	"dolworld.ai/internal/sim/deme"
	"dolworld.ai/internal/sim/program"
	"dolworld.ai/internal/sim/resource"
	"dolworld.ai/internal/sim/substrate"
	"dolworld.ai/internal/sim/tag"
	"dolworld.ai/internal/sim/topology"
)

// Genome is what an organism passes to its offspring: the program shared by
// every cell and the tag its seed cell starts at.
type Genome struct {
	Program  *program.Program
	BirthTag tag.Tag
}

// slot is one population position. Its deme and environment are built once
// and reused for every organism that occupies it.
type slot struct {
	id   int
	rng  *rand.Rand
	deme *deme.Deme
	env  *resource.Environment

	occupied    bool
	orgID       uint64
	parentID    uint64
	birthUpdate uint64
	genome      Genome
}

// World is a single-threaded population of multicellular organisms.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg   Config
	runID string

	rng     *rand.Rand
	grid    *topology.Grid
	lib     *program.Library
	resTags []tag.Tag
	slots   []*slot

	update    atomic.Uint64
	nextOrgID uint64

	// Counters for the update in progress.
	counters updateCounters

	logger        *log.Logger
	updateLogger  UpdateLogger
	lineageLogger LineageLogger

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerSub   chan ObserverSubscribeRequest
	observerLeave chan string
	stateReq      chan chan StateView
	stop          chan struct{}

	metrics atomic.Value
}

type UpdateLogger interface {
	WriteUpdate(entry UpdateLogEntry) error
}

type LineageLogger interface {
	WriteLineage(entry LineageEntry) error
}

type UpdateLogEntry struct {
	RunID  string      `json:"run_id"`
	Seed   int64       `json:"seed"`
	Update uint64      `json:"update"`
	Digest string      `json:"digest"`
	Stats  UpdateStats `json:"stats"`
}

// LineageEntry records an organism entering or leaving a slot.
type LineageEntry struct {
	Update   uint64 `json:"update"`
	Event    string `json:"event"` // BIRTH or DEATH
	Slot     int    `json:"slot"`
	OrgID    uint64 `json:"org_id"`
	ParentID uint64 `json:"parent_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Age      uint64 `json:"age,omitempty"`
	Cells    int    `json:"cells,omitempty"`
}

// New builds every slot, draws the resource tags and seeds the initial
// population. Configuration errors are returned before anything runs.
func New(cfg Config) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	grid, err := topology.New(cfg.DemeWidth, cfg.DemeHeight)
	if err != nil {
		return nil, err
	}

	w := &World{
		cfg:           cfg,
		runID:         uuid.NewString(),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		grid:          grid,
		lib:           program.NewLibrary(),
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerSub:   make(chan ObserverSubscribeRequest, 16),
		observerLeave: make(chan string, 16),
		stateReq:      make(chan chan StateView, 4),
		stop:          make(chan struct{}),
	}
	w.registerInstructions()

	if err := w.initResourceTags(); err != nil {
		return nil, err
	}

	noise := opensimplex.New(cfg.Seed)
	numRes := cfg.NumStatic + cfg.NumPeriodic
	w.slots = make([]*slot, cfg.MaxPopSize)
	for i := range w.slots {
		s := &slot{
			id:  i,
			rng: rand.New(rand.NewSource(w.rng.Int63())),
			env: resource.NewEnvironment(cfg.NumStatic, cfg.NumPeriodic),
		}
		s.deme = deme.New(i, grid, numRes, s.rng, func(addr substrate.Address) substrate.Unit {
			return program.New(addr, w.lib, s.rng, cfg.Hardware)
		})
		s.deme.ConfigureUnits(func(u substrate.Unit) { u.SetMaxCores(cfg.Hardware.MaxCores) })
		if cfg.LevelNoiseAmplitude > 0 {
			n := noise.Eval2(float64(i)*cfg.LevelNoiseScale, 0)
			s.env.LevelScale = math.Max(0, 1+cfg.LevelNoiseAmplitude*n)
		}
		w.slots[i] = s
	}

	if err := w.initPopulation(); err != nil {
		return nil, err
	}
	w.publishMetrics(0, UpdateStats{}, 0)
	return w, nil
}

func (w *World) initResourceTags() error {
	n := w.cfg.NumStatic + w.cfg.NumPeriodic
	if w.cfg.TagScheme == TagSchemeHadamard {
		w.resTags = tag.Hadamard()[:n]
		return nil
	}
	tags, err := tag.RandomUnique(w.rng, n, nil)
	if err != nil {
		return fmt.Errorf("resource tags: %w", err)
	}
	w.resTags = tags
	return nil
}

func (w *World) initPopulation() error {
	var ancestor Genome
	if w.cfg.InitPopMode == InitPopAncestor {
		p, birth, err := program.LoadYAML(w.cfg.AncestorPath, w.lib)
		if err != nil {
			return fmt.Errorf("ancestor: %w", err)
		}
		if err := w.cfg.Constraints.Validate(p, w.lib); err != nil {
			return fmt.Errorf("ancestor: %w", err)
		}
		ancestor = Genome{Program: p, BirthTag: birth}
	}

	for i := 0; i < w.cfg.InitPopSize; i++ {
		g := ancestor
		if w.cfg.InitPopMode == InitPopRandom {
			p, err := program.Random(w.rng, w.lib, w.cfg.Constraints)
			if err != nil {
				return fmt.Errorf("random genome: %w", err)
			}
			g = Genome{Program: p, BirthTag: tag.Random(w.rng)}
		}
		w.placeOrganism(w.slots[i], g, 0, 0)
	}
	return nil
}

// placeOrganism wipes s and starts a new organism there from a single seed
// cell at the grid center.
func (w *World) placeOrganism(s *slot, g Genome, parentID, now uint64) {
	s.deme.DeactivateDeme()
	s.env.Reset()

	w.nextOrgID++
	s.occupied = true
	s.orgID = w.nextOrgID
	s.parentID = parentID
	s.birthUpdate = now
	s.genome = g

	seed := w.grid.ID(w.grid.Width()/2, w.grid.Height()/2)
	s.deme.GetCell(seed).ActivateCell(g.Program, g.BirthTag, substrate.Memory{}, true, false)
	s.deme.ActivateDeme()

	if w.lineageLogger != nil {
		_ = w.lineageLogger.WriteLineage(LineageEntry{Update: now, Event: "BIRTH", Slot: s.id, OrgID: s.orgID, ParentID: parentID})
	}
}

func (w *World) killOrganism(s *slot, now uint64, reason string) {
	var age uint64
	if now > s.birthUpdate {
		age = now - s.birthUpdate
	}
	if w.lineageLogger != nil {
		_ = w.lineageLogger.WriteLineage(LineageEntry{
			Update: now,
			Event:  "DEATH",
			Slot:   s.id,
			OrgID:  s.orgID,
			Reason: reason,
			Age:    age,
			Cells:  s.deme.ActiveCellCount(),
		})
	}
	s.deme.DeactivateDeme()
	s.env.Reset()
	s.occupied = false
	s.orgID = 0
	s.parentID = 0
	s.genome = Genome{}
}

func (w *World) slotAt(org int) *slot {
	if org < 0 || org >= len(w.slots) {
		panic(fmt.Sprintf("world: population slot %d out of range [0,%d)", org, len(w.slots)))
	}
	return w.slots[org]
}
