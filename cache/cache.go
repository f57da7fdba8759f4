// Package cache implements a per-core write-back, write-allocate L1 cache
// controller that keeps its lines coherent with the MESI protocol over a
// shared snooping bus.
package cache

import (
	"github.com/sarchlab/mesi4sim/cache/internal/tagging"
	"github.com/sarchlab/mesi4sim/cache/internal/victim"
	"github.com/sarchlab/mesi4sim/coherence"
)

// BusPort is the single outbound call a Cache makes on the bus: enqueue a
// request. Caches never call anything else on the bus.
type BusPort interface {
	PushRequest(requesterID int, reqType coherence.ReqType, addr uint64, atCycle uint64)
}

// Counters holds the per-cache statistics the report package reads at the
// end of a run.
type Counters struct {
	Accesses              uint64
	Hits                  uint64
	Misses                uint64
	Upgrades              uint64 // write-to-shared upgrades; not counted as misses
	Evictions             uint64
	Writebacks            uint64
	InvalidationsReceived uint64
}

// Cache is one core's private L1 cache controller.
type Cache struct {
	id           int
	geometry     Geometry
	tags         tagging.TagArray
	victimFinder victim.Finder
	bus          BusPort

	blocked    bool
	readyCycle uint64

	counters Counters
}

// ID returns the identifier of the core this cache belongs to.
func (c *Cache) ID() int {
	return c.id
}

// Blocked reports whether this cache is waiting on a miss or write-to-shared
// upgrade it issued; while blocked the owning core cannot issue new
// accesses. Any completion notification clears it, including a WriteBack
// acknowledgement; a WriteBack queued by an eviction does not set it.
func (c *Cache) Blocked() bool {
	return c.blocked
}

// ReadyCycle returns the cycle from which the owning core may issue again:
// one cycle after the most recent completion notification.
func (c *Cache) ReadyCycle() uint64 {
	return c.readyCycle
}

// Counters returns a snapshot of this cache's statistics.
func (c *Cache) Counters() Counters {
	return c.counters
}

// MissRate returns the fraction of accesses that missed, or 0 if there were
// no accesses.
func (c *Cache) MissRate() float64 {
	if c.counters.Accesses == 0 {
		return 0
	}

	return float64(c.counters.Misses) / float64(c.counters.Accesses)
}

// Access services one core-issued memory operation at cycle atCycle. It
// returns true on a hit (the core may proceed immediately) and false on a
// miss or write-to-shared upgrade (the core must block).
func (c *Cache) Access(atCycle uint64, op coherence.Op, addr uint64) bool {
	c.counters.Accesses++

	tag, index, _ := c.geometry.Decode(addr)

	block, found := c.tags.Lookup(tag, index)
	if !found {
		c.counters.Misses++
		c.issueMiss(atCycle, op, addr)

		return false
	}

	block.LastUsed = atCycle
	c.tags.Update(block)

	if op == coherence.Read {
		c.counters.Hits++
		return true
	}

	switch block.State {
	case coherence.Modified:
		c.counters.Hits++
		return true
	case coherence.Exclusive:
		block.State = coherence.Modified
		c.tags.Update(block)
		c.counters.Hits++

		return true
	case coherence.Shared:
		c.counters.Upgrades++
		c.bus.PushRequest(c.id, coherence.BusRdX, addr, atCycle)
		c.blocked = true

		return false
	default:
		panic("cache: hit resolved to an Invalid line")
	}
}

func (c *Cache) issueMiss(atCycle uint64, op coherence.Op, addr uint64) {
	reqType := coherence.BusRd
	if op == coherence.Write {
		reqType = coherence.BusRdX
	}

	c.bus.PushRequest(c.id, reqType, addr, atCycle)
	c.blocked = true
}

// Snoop reacts to another cache's bus request at cycle atCycle and reports
// whether this cache will supply the block's data.
func (c *Cache) Snoop(reqType coherence.ReqType, addr uint64, atCycle uint64) bool {
	tag, index, _ := c.geometry.Decode(addr)

	block, found := c.tags.Lookup(tag, index)
	if !found {
		return false
	}

	switch block.State {
	case coherence.Modified:
		supply := true

		if reqType == coherence.BusRdX {
			block.State = coherence.Invalid
			c.counters.InvalidationsReceived++
		} else {
			block.State = coherence.Shared
		}

		block.LastUsed = atCycle
		c.tags.Update(block)

		return supply

	case coherence.Exclusive:
		supply := reqType == coherence.BusRd

		if reqType == coherence.BusRdX {
			block.State = coherence.Invalid
			c.counters.InvalidationsReceived++
		} else {
			block.State = coherence.Shared
		}

		block.LastUsed = atCycle
		c.tags.Update(block)

		return supply

	case coherence.Shared:
		if reqType == coherence.BusRdX {
			block.State = coherence.Invalid
			block.LastUsed = atCycle
			c.tags.Update(block)
			c.counters.InvalidationsReceived++
		}

		return false

	default:
		panic("cache: snoop resolved to an Invalid line")
	}
}

// NotifyCompletion is called by the bus when this cache's outstanding
// request finishes.
func (c *Cache) NotifyCompletion(addr uint64, newState coherence.State, atCycle uint64) {
	if newState == coherence.Invalid {
		// Writeback-complete acknowledgement: no line changes.
		c.blocked = false
		c.readyCycle = atCycle + 1

		return
	}

	tag, index, _ := c.geometry.Decode(addr)

	if block, found := c.tags.Lookup(tag, index); found {
		block.State = newState
		block.LastUsed = atCycle
		c.tags.Update(block)
		c.blocked = false
		c.readyCycle = atCycle + 1

		return
	}

	c.allocate(atCycle, tag, index, addr, newState)
	c.blocked = false
	c.readyCycle = atCycle + 1
}

func (c *Cache) allocate(atCycle uint64, tag uint64, index int, addr uint64, newState coherence.State) {
	set := c.tags.GetSet(index)
	evicted := c.victimFinder.FindVictim(set)

	if evicted.State.Valid() {
		c.counters.Evictions++

		if evicted.State == coherence.Modified {
			victimAddr := c.geometry.BlockAddress(evicted.Tag, index)
			c.bus.PushRequest(c.id, coherence.WriteBack, victimAddr, atCycle)
			c.counters.Writebacks++
		}
	}

	evicted.Tag = tag
	evicted.State = newState
	evicted.LastUsed = atCycle
	_ = addr

	c.tags.Update(evicted)
}
