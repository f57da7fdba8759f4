// Package core drives one cache from a trace: fetch the next instruction,
// issue it, block if the cache misses, and unblock on the cache's own
// schedule.
package core

import (
	"github.com/sarchlab/mesi4sim/coherence"
)

// Cache is the subset of *cache.Cache a Core drives.
type Cache interface {
	Blocked() bool
	ReadyCycle() uint64
	Access(atCycle uint64, op coherence.Op, addr uint64) bool
}

// Counters holds the per-core statistics the report package reads at the
// end of a run.
type Counters struct {
	Instructions uint64
	Reads        uint64
	Writes       uint64
	IdleCycles   uint64
	TotalCycles  uint64
}

// Core drives one cache from a trace of memory operations.
type Core struct {
	id    int
	cache Cache
	next  func() (op coherence.Op, addr uint64, ok bool)

	finished bool
	blocked  bool

	counters Counters
}

// New creates a Core that drives cache using next to fetch trace entries.
// next must return ok=false once the trace is exhausted or unreadable.
func New(id int, c Cache, next func() (op coherence.Op, addr uint64, ok bool)) *Core {
	return &Core{id: id, cache: c, next: next}
}

// ID returns the core's identifier.
func (c *Core) ID() int {
	return c.id
}

// Finished reports whether the core has exhausted its trace and is no
// longer blocked on an in-flight access.
func (c *Core) Finished() bool {
	return c.finished
}

// Counters returns a snapshot of this core's statistics.
func (c *Core) Counters() Counters {
	return c.counters
}

// Tick advances the core by at most one instruction at cycle atCycle.
func (c *Core) Tick(atCycle uint64) {
	if c.finished {
		return
	}

	if c.blocked {
		if !c.cache.Blocked() && atCycle >= c.cache.ReadyCycle() {
			c.blocked = false
		} else {
			c.counters.IdleCycles++
			return
		}
	}

	op, addr, ok := c.next()
	if !ok {
		c.finished = true
		return
	}

	c.counters.Instructions++

	if op == coherence.Write {
		c.counters.Writes++
	} else {
		c.counters.Reads++
	}

	hit := c.cache.Access(atCycle, op, addr)
	if !hit {
		c.blocked = true
	}
}

// Finalize records the global ending cycle as this core's total execution
// cycle count, per the spec's documented convention (see DESIGN.md): the
// final cycle, not that minus idle cycles.
func (c *Core) Finalize(finalCycle uint64) {
	c.counters.TotalCycles = finalCycle
}
