// Package simulate drives the two-phase per-cycle tick — bus phase, then
// core phase — across a fixed set of cores until every trace is
// exhausted, and aggregates the resulting statistics.
package simulate

import (
	"fmt"

	"github.com/sarchlab/mesi4sim/bus"
	"github.com/sarchlab/mesi4sim/cache"
	"github.com/sarchlab/mesi4sim/coherence"
	"github.com/sarchlab/mesi4sim/core"
	"github.com/sarchlab/mesi4sim/trace"
)

// NumCores is fixed by the spec: this is a four-core system.
const NumCores = 4

// Config describes one simulation run.
type Config struct {
	TracePrefix string
	Geometry    cache.Geometry
	Recorder    bus.Recorder

	// OnTick, if set, is called once per cycle after both simulation
	// phases complete, for an observer (e.g. the monitor package) to take
	// a read-only snapshot. It must not mutate anything it is given.
	OnTick func(cycle uint64, s *Simulation)
}

// Simulation is a fully wired, ready-to-run instance: four cores, four
// caches, and the shared bus connecting them.
type Simulation struct {
	bus    *bus.Bus
	cores  [NumCores]*core.Core
	caches [NumCores]*cache.Cache
	cycle  uint64
	onTick func(cycle uint64, s *Simulation)
}

// New builds a Simulation from cfg, opening each core's trace file.
func New(cfg Config) (*Simulation, error) {
	s := &Simulation{
		bus:    bus.New(cfg.Geometry.BlockSize()),
		onTick: cfg.OnTick,
	}

	if cfg.Recorder != nil {
		s.bus.SetRecorder(cfg.Recorder)
	}

	readers := make([]*trace.Reader, 0, NumCores)

	for id := 0; id < NumCores; id++ {
		path := trace.FileName(cfg.TracePrefix, id)

		r, err := trace.Open(path)
		if err != nil {
			closeAll(readers)
			return nil, fmt.Errorf("simulate: core %d: %w", id, err)
		}

		readers = append(readers, r)

		c, err := cache.MakeBuilder().
			WithID(id).
			WithGeometry(cfg.Geometry).
			WithBus(s.bus).
			Build()
		if err != nil {
			closeAll(readers)
			return nil, fmt.Errorf("simulate: core %d: %w", id, err)
		}

		s.caches[id] = c
		s.bus.Attach(c)

		reader := r
		next := func() (coherence.Op, uint64, bool) {
			entry, ok := reader.Next()
			if !ok {
				return 0, 0, false
			}

			return entry.Op, entry.Addr, true
		}

		s.cores[id] = core.New(id, c, next)
	}

	return s, nil
}

func closeAll(readers []*trace.Reader) {
	for _, r := range readers {
		_ = r.Close()
	}
}

// Run executes the simulation to completion and returns the final cycle
// count reached.
func (s *Simulation) Run() uint64 {
	for !s.allFinished() {
		s.bus.Tick(s.cycle)

		for _, c := range s.cores {
			c.Tick(s.cycle)
		}

		if s.onTick != nil {
			s.onTick(s.cycle, s)
		}

		s.cycle++
	}

	for _, c := range s.cores {
		c.Finalize(s.cycle)
	}

	return s.cycle
}

func (s *Simulation) allFinished() bool {
	for _, c := range s.cores {
		if !c.Finished() {
			return false
		}
	}

	return true
}

// Cores returns the simulation's cores, in id order.
func (s *Simulation) Cores() [NumCores]*core.Core {
	return s.cores
}

// Caches returns the simulation's caches, in id order.
func (s *Simulation) Caches() [NumCores]*cache.Cache {
	return s.caches
}

// Bus returns the simulation's shared bus.
func (s *Simulation) Bus() *bus.Bus {
	return s.bus
}

// Cycle returns the current (or, after Run, final) global cycle count.
func (s *Simulation) Cycle() uint64 {
	return s.cycle
}
