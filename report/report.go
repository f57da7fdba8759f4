// Package report formats simulation statistics as the human-readable text
// contract the spec defines: a parameters block, one block per core, and
// an overall bus summary.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/sarchlab/mesi4sim/bus"
	"github.com/sarchlab/mesi4sim/cache"
	"github.com/sarchlab/mesi4sim/core"
)

// Params is the simulation geometry echoed at the top of the report.
type Params struct {
	TracePrefix string
	Geometry    cache.Geometry
}

// Write renders the full statistics report for a finished simulation to w.
func Write(w io.Writer, params Params, cores [4]*core.Core, caches [4]*cache.Cache, b *bus.Bus) error {
	var sb strings.Builder

	writeParams(&sb, params)

	for i := range cores {
		writeCore(&sb, cores[i], caches[i], b)
	}

	writeBusSummary(&sb, b)

	_, err := io.WriteString(w, sb.String())

	return err
}

func writeParams(sb *strings.Builder, p Params) {
	fmt.Fprintf(sb, "Simulation Parameters:\n")
	fmt.Fprintf(sb, "  Trace Prefix: %s\n", p.TracePrefix)
	fmt.Fprintf(sb, "  Set Index Bits (s): %d\n", p.Geometry.IndexBits)
	fmt.Fprintf(sb, "  Associativity (E): %d\n", p.Geometry.Ways)
	fmt.Fprintf(sb, "  Block Bits (b): %d\n", p.Geometry.OffsetBits)
	fmt.Fprintf(sb, "  Number of Sets (S): %d\n", p.Geometry.Sets())
	fmt.Fprintf(sb, "  Block Size (B): %d\n", p.Geometry.BlockSize())
	fmt.Fprintf(sb, "\n")
}

func writeCore(sb *strings.Builder, c *core.Core, cc *cache.Cache, b *bus.Bus) {
	cn := c.Counters()
	stat := cc.Counters()

	fmt.Fprintf(sb, "Core %d:\n", c.ID())
	fmt.Fprintf(sb, "  Total Instructions: %d\n", cn.Instructions)
	fmt.Fprintf(sb, "  Total Reads: %d\n", cn.Reads)
	fmt.Fprintf(sb, "  Total Writes: %d\n", cn.Writes)
	fmt.Fprintf(sb, "  Total Execution Cycles: %d\n", cn.TotalCycles)
	fmt.Fprintf(sb, "  Idle Cycles: %d\n", cn.IdleCycles)
	fmt.Fprintf(sb, "  Cache Misses: %d\n", stat.Misses)
	fmt.Fprintf(sb, "  Cache Miss Rate: %.2f%%\n", cc.MissRate()*100)
	fmt.Fprintf(sb, "  Cache Evictions: %d\n", stat.Evictions)
	fmt.Fprintf(sb, "  Writebacks: %d\n", stat.Writebacks)
	fmt.Fprintf(sb, "  Bus Invalidations: %d\n", stat.InvalidationsReceived)
	fmt.Fprintf(sb, "  Data Traffic (Bytes): %d\n", b.DataBytesFor(c.ID()))
	fmt.Fprintf(sb, "\n")
}

func writeBusSummary(sb *strings.Builder, b *bus.Bus) {
	counters := b.Counters()

	fmt.Fprintf(sb, "Bus Summary:\n")
	fmt.Fprintf(sb, "  Total Bus Transactions: %d\n", counters.TotalTransactions)
	fmt.Fprintf(sb, "  Total Bus Traffic (Bytes): %d\n", counters.TotalDataBytes)
}
