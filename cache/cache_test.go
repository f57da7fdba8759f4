package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/mesi4sim/cache"
	"github.com/sarchlab/mesi4sim/coherence"
)

// fakeBus records every PushRequest call so tests can assert on what a
// Cache asked the bus to do, without needing a real bus.Bus.
type fakeBus struct {
	requests []request
}

type request struct {
	requesterID int
	reqType     coherence.ReqType
	addr        uint64
	atCycle     uint64
}

func (b *fakeBus) PushRequest(requesterID int, reqType coherence.ReqType, addr uint64, atCycle uint64) {
	b.requests = append(b.requests, request{requesterID, reqType, addr, atCycle})
}

var geom2x2x16 = cache.Geometry{IndexBits: 2, Ways: 2, OffsetBits: 4}

var _ = Describe("Cache", func() {
	var (
		bus *fakeBus
		c   *cache.Cache
	)

	BeforeEach(func() {
		bus = &fakeBus{}

		var err error
		c, err = cache.MakeBuilder().WithID(0).WithGeometry(geom2x2x16).WithBus(bus).Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("misses on a cold read and issues BusRd", func() {
		hit := c.Access(0, coherence.Read, 0x1000)
		Expect(hit).To(BeFalse())
		Expect(c.Blocked()).To(BeTrue())
		Expect(bus.requests).To(HaveLen(1))
		Expect(bus.requests[0].reqType).To(Equal(coherence.BusRd))
		Expect(c.Counters().Misses).To(Equal(uint64(1)))
	})

	It("misses on a cold write and issues BusRdX", func() {
		hit := c.Access(0, coherence.Write, 0x1000)
		Expect(hit).To(BeFalse())
		Expect(bus.requests[0].reqType).To(Equal(coherence.BusRdX))
	})

	It("hits without bus traffic after allocating Exclusive", func() {
		c.Access(0, coherence.Read, 0x1000)
		c.NotifyCompletion(0x1000, coherence.Exclusive, 1)

		hit := c.Access(2, coherence.Read, 0x1000)
		Expect(hit).To(BeTrue())
		Expect(bus.requests).To(HaveLen(1))
	})

	It("upgrades Exclusive to Modified on write without bus traffic", func() {
		c.Access(0, coherence.Read, 0x1000)
		c.NotifyCompletion(0x1000, coherence.Exclusive, 1)

		hit := c.Access(2, coherence.Write, 0x1000)
		Expect(hit).To(BeTrue())
		Expect(bus.requests).To(HaveLen(1))
	})

	It("issues BusRdX and blocks on a write-to-Shared upgrade, without counting a miss", func() {
		c.Access(0, coherence.Read, 0x1000)
		c.NotifyCompletion(0x1000, coherence.Shared, 1)

		hit := c.Access(2, coherence.Write, 0x1000)
		Expect(hit).To(BeFalse())
		Expect(c.Blocked()).To(BeTrue())
		Expect(bus.requests).To(HaveLen(2))
		Expect(bus.requests[1].reqType).To(Equal(coherence.BusRdX))
		Expect(c.Counters().Misses).To(Equal(uint64(1)), "the upgrade itself must not be counted as a miss")
		Expect(c.Counters().Upgrades).To(Equal(uint64(1)))

		c.NotifyCompletion(0x1000, coherence.Modified, 3)
		Expect(c.Blocked()).To(BeFalse())
	})

	// Three addresses sharing set index 0 but distinct tags, under
	// geom2x2x16 (s=2, b=4): index = (addr>>4)&3, tag = addr>>6.
	const sameSetA, sameSetB, sameSetC = 0x40, 0x80, 0xC0

	It("evicts the LRU way and enqueues no writeback for a clean victim", func() {
		c.Access(0, coherence.Read, sameSetA)
		c.NotifyCompletion(sameSetA, coherence.Exclusive, 1)

		c.Access(2, coherence.Read, sameSetB)
		c.NotifyCompletion(sameSetB, coherence.Exclusive, 3)

		c.Access(4, coherence.Read, sameSetC)
		Expect(bus.requests).To(HaveLen(3))
		c.NotifyCompletion(sameSetC, coherence.Exclusive, 5)

		Expect(c.Counters().Evictions).To(Equal(uint64(1)))
		Expect(c.Counters().Writebacks).To(Equal(uint64(0)))
	})

	It("writes back a dirty victim on eviction", func() {
		c = mustBuild(cache.MakeBuilder().
			WithID(0).
			WithGeometry(cache.Geometry{IndexBits: 2, Ways: 1, OffsetBits: 4}).
			WithBus(bus))

		c.Access(0, coherence.Write, sameSetA)
		c.NotifyCompletion(sameSetA, coherence.Modified, 1)

		c.Access(2, coherence.Read, sameSetB) // collides in same set, E=1
		Expect(bus.requests).To(HaveLen(2))
		Expect(bus.requests[1].reqType).To(Equal(coherence.BusRd))

		// Allocating the new block evicts the dirty victim, which enqueues
		// the writeback as a side effect of this same completion.
		c.NotifyCompletion(sameSetB, coherence.Exclusive, 3)
		Expect(bus.requests).To(HaveLen(3))
		Expect(bus.requests[2].reqType).To(Equal(coherence.WriteBack))
		Expect(c.Counters().Evictions).To(Equal(uint64(1)))
		Expect(c.Counters().Writebacks).To(Equal(uint64(1)))
	})

	Describe("Snoop", func() {
		It("supplies data and downgrades Modified to Shared on BusRd", func() {
			c.Access(0, coherence.Write, 0x1000)
			c.NotifyCompletion(0x1000, coherence.Modified, 1)

			supplied := c.Snoop(coherence.BusRd, 0x1000, 2)
			Expect(supplied).To(BeTrue())
			Expect(c.Access(3, coherence.Read, 0x1000)).To(BeTrue())
		})

		It("invalidates Modified on BusRdX and supplies data, without a separate writeback", func() {
			c.Access(0, coherence.Write, 0x1000)
			c.NotifyCompletion(0x1000, coherence.Modified, 1)

			supplied := c.Snoop(coherence.BusRdX, 0x1000, 2)
			Expect(supplied).To(BeTrue())
			Expect(c.Counters().InvalidationsReceived).To(Equal(uint64(1)))
			Expect(c.Counters().Writebacks).To(Equal(uint64(0)))
		})

		It("supplies data and downgrades Exclusive to Shared on BusRd", func() {
			c.Access(0, coherence.Read, 0x1000)
			c.NotifyCompletion(0x1000, coherence.Exclusive, 1)

			Expect(c.Snoop(coherence.BusRd, 0x1000, 2)).To(BeTrue())
			Expect(c.Counters().InvalidationsReceived).To(Equal(uint64(0)))

			// The line is now Shared, like both copies in spec scenario 2.
			Expect(c.Access(3, coherence.Read, 0x1000)).To(BeTrue())
			Expect(c.Snoop(coherence.BusRd, 0x1000, 4)).To(BeFalse(), "a Shared line never supplies data")
		})

		It("invalidates Exclusive on BusRdX without supplying data", func() {
			c.Access(0, coherence.Read, 0x1000)
			c.NotifyCompletion(0x1000, coherence.Exclusive, 1)

			Expect(c.Snoop(coherence.BusRdX, 0x1000, 2)).To(BeFalse())
			Expect(c.Counters().InvalidationsReceived).To(Equal(uint64(1)))
		})

		It("does not supply data from Shared, and invalidates it on BusRdX", func() {
			c.Access(0, coherence.Read, 0x1000)
			c.NotifyCompletion(0x1000, coherence.Shared, 1)

			Expect(c.Snoop(coherence.BusRd, 0x1000, 2)).To(BeFalse())
			Expect(c.Snoop(coherence.BusRdX, 0x1000, 3)).To(BeFalse())
			Expect(c.Counters().InvalidationsReceived).To(Equal(uint64(1)))
		})

		It("is a no-op for an address the cache does not hold", func() {
			Expect(c.Snoop(coherence.BusRd, 0x9000, 0)).To(BeFalse())
		})
	})
})

func mustBuild(b cache.Builder) *cache.Cache {
	c, err := b.Build()
	Expect(err).NotTo(HaveOccurred())

	return c
}

var _ = Describe("Geometry", func() {
	It("round-trips block addresses through decode (P6)", func() {
		g := cache.Geometry{IndexBits: 3, Ways: 4, OffsetBits: 5}

		addrs := []uint64{0, 1, 0xdeadbeef, 0xffffffff, 0x12345678}
		for _, addr := range addrs {
			tag, index, _ := g.Decode(addr)
			got := g.BlockAddress(tag, index)
			want := addr &^ (g.BlockSize() - 1)
			Expect(got).To(Equal(want), "addr=0x%x", addr)
		}
	})

	It("rejects non-positive geometry at build time", func() {
		_, err := cache.MakeBuilder().WithGeometry(cache.Geometry{IndexBits: 0, Ways: 2, OffsetBits: 4}).Build()
		Expect(err).To(HaveOccurred())

		_, err = cache.MakeBuilder().WithGeometry(cache.Geometry{IndexBits: 2, Ways: 0, OffsetBits: 4}).Build()
		Expect(err).To(HaveOccurred())

		_, err = cache.MakeBuilder().WithGeometry(cache.Geometry{IndexBits: 2, Ways: 2, OffsetBits: 0}).Build()
		Expect(err).To(HaveOccurred())
	})
})
