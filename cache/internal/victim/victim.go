// Package victim selects which way of a cache set to evict on a miss.
package victim

import "github.com/sarchlab/mesi4sim/cache/internal/tagging"

// Finder decides which block of a set should be evicted.
type Finder interface {
	FindVictim(set *tagging.Set) tagging.Block
}

// LRUFinder evicts the least-recently-used way, preferring any Invalid way
// unconditionally over the recency of valid ways.
type LRUFinder struct{}

// NewLRUFinder returns an LRUFinder.
func NewLRUFinder() *LRUFinder {
	return &LRUFinder{}
}

// FindVictim returns the block LRU should evict. Any Invalid block wins
// over every valid block regardless of last-used cycle; among valid blocks
// the one with the smallest last-used cycle wins.
func (f *LRUFinder) FindVictim(set *tagging.Set) tagging.Block {
	for _, block := range set.Blocks {
		if !block.State.Valid() {
			return block
		}
	}

	victim := set.Blocks[0]
	for _, block := range set.Blocks[1:] {
		if block.LastUsed < victim.LastUsed {
			victim = block
		}
	}

	return victim
}
