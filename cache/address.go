package cache

// Geometry is the fixed shape of a cache: S = 2^s sets, E-way
// associativity, and B = 2^b bytes per block.
type Geometry struct {
	IndexBits  int // s
	Ways       int // E
	OffsetBits int // b
}

// Sets returns S = 2^s.
func (g Geometry) Sets() int {
	return 1 << g.IndexBits
}

// BlockSize returns B = 2^b, in bytes.
func (g Geometry) BlockSize() uint64 {
	return 1 << g.OffsetBits
}

// Decode splits an address into (tag, set index, block offset) per
// tag = addr >> (s+b); index = (addr >> b) & (S-1); offset = addr & (B-1).
func (g Geometry) Decode(addr uint64) (tag uint64, index int, offset uint64) {
	shift := uint(g.IndexBits + g.OffsetBits)
	tag = addr >> shift
	index = int((addr >> uint(g.OffsetBits)) & uint64(g.Sets()-1))
	offset = addr & (g.BlockSize() - 1)

	return tag, index, offset
}

// BlockAddress reconstructs the block-aligned address a (tag, index) pair
// refers to: (tag << (s+b)) | (index << b).
func (g Geometry) BlockAddress(tag uint64, index int) uint64 {
	shift := uint(g.IndexBits + g.OffsetBits)

	return (tag << shift) | (uint64(index) << uint(g.OffsetBits))
}
