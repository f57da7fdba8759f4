// Package bus implements the shared snooping bus: request queue,
// fixed-priority arbitration, snoop broadcast and transaction timing.
package bus

import (
	"github.com/rs/xid"
	"github.com/sarchlab/mesi4sim/coherence"
)

const (
	memoryLatencyCycles    = 100
	cacheToCacheWordFactor = 2 // latency = 2 * W words
	bytesPerWord           = 4
)

// Snoopable is the inbound surface a Bus drives on every attached cache:
// a snoop broadcast, and a completion notification for the cache's own
// outstanding request.
type Snoopable interface {
	ID() int
	Snoop(reqType coherence.ReqType, addr uint64, atCycle uint64) bool
	NotifyCompletion(addr uint64, newState coherence.State, atCycle uint64)
}

// Recorder observes every transaction the bus retires. It is optional;
// a nil Recorder is never invoked. See the tracing package for a SQLite
// implementation.
type Recorder interface {
	RecordTransaction(t Transaction)
}

// Request is a cache's enqueued bus request, from pushRequest until it is
// dequeued into Current.
type Request struct {
	RequesterID int
	Type        coherence.ReqType
	Addr        uint64
	AtCycle     uint64
}

// Transaction is a dequeued Request, tracked from arbitration through
// completion.
type Transaction struct {
	ID              xid.ID
	RequesterID     int
	Type            coherence.ReqType
	Addr            uint64
	StartCycle      uint64
	CompletionCycle uint64
	ServedByCache   bool
}

// Counters holds the bus's aggregate statistics.
type Counters struct {
	TotalTransactions uint64
	TotalDataBytes    uint64
}

// Bus is the single shared, exclusive snooping bus connecting every
// attached cache.
type Bus struct {
	blockSize uint64
	caches    []Snoopable
	recorder  Recorder

	queue     []Request
	current   *Transaction
	busyUntil uint64

	counters      Counters
	dataBytesByID map[int]uint64
}

// New creates a Bus whose cache-to-cache transfer latency is derived from
// blockSize (B bytes per block).
func New(blockSize uint64) *Bus {
	return &Bus{
		blockSize:     blockSize,
		dataBytesByID: make(map[int]uint64),
	}
}

// Attach registers a cache as a bus participant, eligible to be snooped
// and to have its requests arbitrated.
func (b *Bus) Attach(c Snoopable) {
	b.caches = append(b.caches, c)
}

// SetRecorder installs an optional transaction recorder.
func (b *Bus) SetRecorder(r Recorder) {
	b.recorder = r
}

// Counters returns a snapshot of the bus's aggregate statistics.
func (b *Bus) Counters() Counters {
	return b.counters
}

// PushRequest enqueues a new bus request on behalf of requesterID. A
// request issued at atCycle is not visible to snoops until the next Tick,
// simulating the one-cycle round trip to the bus.
func (b *Bus) PushRequest(requesterID int, reqType coherence.ReqType, addr uint64, atCycle uint64) {
	b.queue = append(b.queue, Request{
		RequesterID: requesterID,
		Type:        reqType,
		Addr:        addr,
		AtCycle:     atCycle,
	})
}

// Tick advances the bus by one cycle: it first retires the in-flight
// transaction if its deadline has passed, then — if now idle and requests
// are queued — arbitrates and dispatches the next one. It returns whether
// either sub-step made progress.
func (b *Bus) Tick(atCycle uint64) bool {
	madeProgress := b.retire(atCycle)
	madeProgress = b.dispatch(atCycle) || madeProgress

	return madeProgress
}

func (b *Bus) retire(atCycle uint64) bool {
	if b.current == nil || atCycle < b.current.CompletionCycle {
		return false
	}

	txn := *b.current
	b.current = nil

	requester := b.findCache(txn.RequesterID)
	if requester != nil {
		requester.NotifyCompletion(txn.Addr, completionState(txn), atCycle)
	}

	if b.recorder != nil {
		b.recorder.RecordTransaction(txn)
	}

	return true
}

func (b *Bus) dispatch(atCycle uint64) bool {
	if b.current != nil || len(b.queue) == 0 {
		return false
	}

	winner := b.arbitrate()

	txn := Transaction{
		ID:          xid.New(),
		RequesterID: winner.RequesterID,
		Type:        winner.Type,
		Addr:        winner.Addr,
		StartCycle:  atCycle,
	}

	txn.ServedByCache = b.broadcastSnoop(winner, atCycle)
	latency := b.completionLatency(txn.Type, txn.ServedByCache)
	b.busyUntil = atCycle + latency
	txn.CompletionCycle = b.busyUntil

	b.current = &txn
	b.counters.TotalTransactions++
	b.counters.TotalDataBytes += b.blockSize
	b.dataBytesByID[txn.RequesterID] += b.blockSize

	return true
}

// DataBytesFor returns the total bytes transferred by transactions
// requested by the given core id.
func (b *Bus) DataBytesFor(id int) uint64 {
	return b.dataBytesByID[id]
}

// arbitrate picks the highest-priority queued request (BusRdX > BusRd >
// WriteBack; ties broken by the lowest requester id) and removes it from
// the queue. This fixed-priority policy is the canonical, documented
// choice among the two the spec allows (the alternative being
// round-robin); see DESIGN.md.
func (b *Bus) arbitrate() Request {
	bestIdx := 0

	for i := 1; i < len(b.queue); i++ {
		if requestPriority(b.queue[i]) > requestPriority(b.queue[bestIdx]) {
			bestIdx = i
			continue
		}

		if requestPriority(b.queue[i]) == requestPriority(b.queue[bestIdx]) &&
			b.queue[i].RequesterID < b.queue[bestIdx].RequesterID {
			bestIdx = i
		}
	}

	winner := b.queue[bestIdx]
	b.queue = append(b.queue[:bestIdx], b.queue[bestIdx+1:]...)

	return winner
}

func requestPriority(r Request) int {
	switch r.Type {
	case coherence.BusRdX:
		return 2
	case coherence.BusRd:
		return 1
	default: // WriteBack
		return 0
	}
}

func (b *Bus) broadcastSnoop(req Request, atCycle uint64) bool {
	if req.Type == coherence.WriteBack {
		return false
	}

	servedByCache := false

	for _, c := range b.caches {
		if c.ID() == req.RequesterID {
			continue
		}

		if c.Snoop(req.Type, req.Addr, atCycle) {
			servedByCache = true
		}
	}

	return servedByCache
}

func (b *Bus) completionLatency(reqType coherence.ReqType, servedByCache bool) uint64 {
	if reqType == coherence.BusRd && servedByCache {
		words := b.blockSize / bytesPerWord
		return cacheToCacheWordFactor * words
	}

	return memoryLatencyCycles
}

func completionState(txn Transaction) coherence.State {
	switch txn.Type {
	case coherence.BusRd:
		if txn.ServedByCache {
			return coherence.Shared
		}

		return coherence.Exclusive
	case coherence.BusRdX:
		return coherence.Modified
	default: // WriteBack
		return coherence.Invalid
	}
}

func (b *Bus) findCache(id int) Snoopable {
	for _, c := range b.caches {
		if c.ID() == id {
			return c
		}
	}

	return nil
}

// QueueLength returns the number of requests currently waiting for
// arbitration (not counting an in-flight transaction).
func (b *Bus) QueueLength() int {
	return len(b.queue)
}

// Busy reports whether a transaction is currently in flight.
func (b *Bus) Busy() bool {
	return b.current != nil
}
