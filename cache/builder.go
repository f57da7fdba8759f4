package cache

import (
	"fmt"

	"github.com/sarchlab/mesi4sim/cache/internal/tagging"
	"github.com/sarchlab/mesi4sim/cache/internal/victim"
)

// Builder builds Cache controllers. Zero-value Builders are not usable;
// start from MakeBuilder.
type Builder struct {
	id       int
	geometry Geometry
	bus      BusPort
}

// MakeBuilder creates a new Builder with a default geometry matching the
// spec's seed-suite geometry (s=2, E=2, b=4).
func MakeBuilder() Builder {
	return Builder{
		geometry: Geometry{IndexBits: 2, Ways: 2, OffsetBits: 4},
	}
}

// WithID sets the core/cache identifier of the builder.
func (b Builder) WithID(id int) Builder {
	b.id = id
	return b
}

// WithGeometry sets the set/associativity/block geometry of the builder.
func (b Builder) WithGeometry(g Geometry) Builder {
	b.geometry = g
	return b
}

// WithBus sets the bus the built cache will issue requests to.
func (b Builder) WithBus(bus BusPort) Builder {
	b.bus = bus
	return b
}

// Build constructs the Cache. Geometry bit counts must be positive, since a
// non-positive s, E or b cannot be decoded into a valid address split; this
// is a configuration error, reported to the caller rather than panicking,
// so the CLI can fail fast with a descriptive message before any
// simulation begins.
func (b Builder) Build() (*Cache, error) {
	if b.geometry.IndexBits <= 0 {
		return nil, fmt.Errorf("cache: index bits (s) must be positive, got %d", b.geometry.IndexBits)
	}

	if b.geometry.Ways <= 0 {
		return nil, fmt.Errorf("cache: associativity (E) must be positive, got %d", b.geometry.Ways)
	}

	if b.geometry.OffsetBits <= 0 {
		return nil, fmt.Errorf("cache: block offset bits (b) must be positive, got %d", b.geometry.OffsetBits)
	}

	c := &Cache{
		id:           b.id,
		geometry:     b.geometry,
		tags:         tagging.NewTagArray(b.geometry.Sets(), b.geometry.Ways),
		victimFinder: victim.NewLRUFinder(),
		bus:          b.bus,
	}

	return c, nil
}
