// Package tagging holds the set-indexed tag storage a Cache uses to track
// which blocks it currently holds and in which MESI state.
package tagging

import "github.com/sarchlab/mesi4sim/coherence"

// Block is the information a cache keeps about one line.
type Block struct {
	Tag      uint64
	State    coherence.State
	LastUsed uint64
	SetID    int
	WayID    int
}

// Set is one associativity-way group of blocks.
type Set struct {
	Blocks []Block
}

// TagArray is the tag-storage contract a Cache controller drives. A
// tag-to-way lookup acceleration structure is an implementation detail of a
// TagArray, never part of this interface.
type TagArray interface {
	// Lookup finds the valid block for addr's set/tag, if any.
	Lookup(tag uint64, setID int) (Block, bool)
	// GetSet returns the set at setID.
	GetSet(setID int) *Set
	// Update overwrites the block at block.SetID/block.WayID.
	Update(block Block)
	// Reset marks every line Invalid.
	Reset()
}

// NewTagArray creates a TagArray with numSets sets of numWays ways each.
func NewTagArray(numSets, numWays int) TagArray {
	t := &tagArrayImpl{
		numSets: numSets,
		numWays: numWays,
	}
	t.Reset()

	return t
}

type tagArrayImpl struct {
	numSets int
	numWays int
	sets    []Set
}

// Lookup finds the block whose tag matches within the given set. A valid
// tag appears in at most one line of a set.
func (t *tagArrayImpl) Lookup(tag uint64, setID int) (Block, bool) {
	set := &t.sets[setID]

	for _, block := range set.Blocks {
		if block.State.Valid() && block.Tag == tag {
			return block, true
		}
	}

	return Block{}, false
}

// GetSet returns the set at setID.
func (t *tagArrayImpl) GetSet(setID int) *Set {
	return &t.sets[setID]
}

// Update writes block back into its set at its WayID.
func (t *tagArrayImpl) Update(block Block) {
	t.sets[block.SetID].Blocks[block.WayID] = block
}

// Reset marks every line of every set Invalid, as on cache power-on.
func (t *tagArrayImpl) Reset() {
	t.sets = make([]Set, t.numSets)

	for i := 0; i < t.numSets; i++ {
		t.sets[i].Blocks = make([]Block, t.numWays)

		for j := 0; j < t.numWays; j++ {
			t.sets[i].Blocks[j] = Block{
				State: coherence.Invalid,
				SetID: i,
				WayID: j,
			}
		}
	}
}
